package chat

import (
	"context"
	"time"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/storage"
)

// Service bundles the chat components over one store.
type Service struct {
	Directory *RoomDirectory
	Log       *MessageLog
	Tracker   *ReadTracker
	Profiles  ProfileLookup

	MessageWindow   int
	UnreadWindow    int
	ProfileCacheTTL time.Duration
}

// NewService wires the directory, message log and read tracker over s.
func NewService(s storage.Storage, cfg config.Config, opts ...DirectoryOption) *Service {
	directory := NewRoomDirectory(s, opts...)
	messageLog := NewMessageLog(s, directory)
	return &Service{
		Directory:       directory,
		Log:             messageLog,
		Tracker:         NewReadTracker(s, messageLog),
		Profiles:        StoreProfiles{Storage: s},
		MessageWindow:   cfg.MessageWindow,
		UnreadWindow:    cfg.UnreadWindow,
		ProfileCacheTTL: cfg.ProfileCacheTTL,
	}
}

// NewAggregator creates a room list aggregator for one session.
func (s *Service) NewAggregator() *RoomListAggregator {
	return NewRoomListAggregator(s.Directory, s.Tracker, s.Profiles,
		WithProfileTTL(s.ProfileCacheTTL),
		WithUnreadWindow(s.UnreadWindow),
	)
}

// Session builds the caller's session, resolving the name copied onto sent messages.
func (s *Service) Session(ctx context.Context, userID string, expiresAt time.Time) (Session, error) {
	return NewSession(ctx, userID, expiresAt, s.Profiles)
}
