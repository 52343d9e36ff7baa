package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/google/uuid"
)

// TokenMinter produces the opaque video-call join key for a new room.
type TokenMinter func() string

// RoomDirectory maps an unordered pair of users to their single ChatRoom.
type RoomDirectory struct {
	Storage storage.Storage

	mintToken TokenMinter
	now       func() time.Time
}

// DirectoryOption configures a RoomDirectory.
type DirectoryOption func(*RoomDirectory)

// WithTokenMinter replaces the default UUID video room token.
func WithTokenMinter(m TokenMinter) DirectoryOption {
	return func(d *RoomDirectory) { d.mintToken = m }
}

// WithClock replaces time.Now for room timestamps.
func WithClock(now func() time.Time) DirectoryOption {
	return func(d *RoomDirectory) { d.now = now }
}

// NewRoomDirectory creates a directory over s.
func NewRoomDirectory(s storage.Storage, opts ...DirectoryOption) *RoomDirectory {
	d := &RoomDirectory{
		Storage:   s,
		mintToken: uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureRoom returns the id of the caller's room with otherID, creating it on first contact.
// An existing room is returned without any write.
func (d *RoomDirectory) EnsureRoom(ctx context.Context, sess Session, otherID string) (string, error) {
	if !sess.Authenticated() {
		return "", ErrUnauthenticated
	}
	if otherID == "" || otherID == sess.UserID {
		return "", ErrInvalidTarget
	}

	rooms, err := d.Storage.FindRoomsForMember(ctx, sess.UserID)
	if err != nil {
		return "", storeErr(err)
	}
	for _, room := range rooms {
		if room.HasMember(otherID) {
			return room.ID, nil
		}
	}

	now := d.now().UTC()
	room := &models.ChatRoom{
		Members:        models.CanonicalMembers(sess.UserID, otherID),
		PairKey:        models.PairKeyFor(sess.UserID, otherID),
		CreatedAt:      now,
		UpdatedAt:      now,
		LastMessage:    "",
		VideoRoomToken: d.mintToken(),
	}
	err = d.Storage.CreateRoom(ctx, room)
	if errors.Is(err, storage.ErrDuplicateRoom) {
		// The other member created the room between our scan and our insert.
		existing, lookupErr := d.Storage.GetRoomByPairKey(ctx, room.PairKey)
		if lookupErr != nil {
			return "", storeErr(lookupErr)
		}
		log.Printf("INFO: Room for pair %s already created concurrently, reusing %s", room.PairKey, existing.ID)
		return existing.ID, nil
	}
	if err != nil {
		return "", storeErr(err)
	}

	log.Printf("INFO: Created room %s for %s and %s", room.ID, room.Members[0], room.Members[1])
	return room.ID, nil
}

// Room returns the room if viewerID is one of its members.
func (d *RoomDirectory) Room(ctx context.Context, roomID, viewerID string) (*models.ChatRoom, error) {
	room, err := d.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !room.HasMember(viewerID) {
		return nil, ErrNotMember
	}
	return room, nil
}

// Rooms returns the user's rooms once, most recently updated first.
func (d *RoomDirectory) Rooms(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rooms, err := d.Storage.FindRoomsForMember(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return rooms, nil
}

// ListRoomsForUser is the live form of Rooms: the full ordered list is
// re-emitted whenever any of the user's rooms is created or updated.
func (d *RoomDirectory) ListRoomsForUser(ctx context.Context, userID string) (*Feed[[]models.ChatRoom], error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return startFeed(ctx, d.Storage, []string{storage.MemberTopic(userID)}, func(ctx context.Context) ([]models.ChatRoom, error) {
		return d.Rooms(ctx, userID)
	})
}
