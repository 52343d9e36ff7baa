package chat

import (
	"context"
	"time"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"golang.org/x/sync/errgroup"
)

// maxSummaryLoads bounds concurrent unread queries per recompute.
const maxSummaryLoads = 8

// RoomListAggregator builds the room list one user sees. Create one per session:
// the counterpart name cache lives as long as the aggregator.
type RoomListAggregator struct {
	Directory *RoomDirectory
	Tracker   *ReadTracker

	profiles     *ProfileCache
	unreadWindow int
}

// AggregatorOption configures a RoomListAggregator.
type AggregatorOption func(*aggregatorOptions)

type aggregatorOptions struct {
	profileTTL   time.Duration
	unreadWindow int
}

// WithProfileTTL sets how long a resolved counterpart name is reused (0 = for the aggregator's lifetime).
func WithProfileTTL(ttl time.Duration) AggregatorOption {
	return func(o *aggregatorOptions) { o.profileTTL = ttl }
}

// WithUnreadWindow sets how many recent messages are inspected for the unread count.
func WithUnreadWindow(n int) AggregatorOption {
	return func(o *aggregatorOptions) { o.unreadWindow = n }
}

// NewRoomListAggregator creates an aggregator for one session.
func NewRoomListAggregator(d *RoomDirectory, t *ReadTracker, profiles ProfileLookup, opts ...AggregatorOption) *RoomListAggregator {
	o := aggregatorOptions{unreadWindow: config.DefaultUnreadWindow}
	for _, opt := range opts {
		opt(&o)
	}
	if o.unreadWindow <= 0 {
		o.unreadWindow = config.DefaultUnreadWindow
	}
	return &RoomListAggregator{
		Directory:    d,
		Tracker:      t,
		profiles:     NewProfileCache(profiles, o.profileTTL),
		unreadWindow: o.unreadWindow,
	}
}

// Snapshot computes the room list once.
func (a *RoomListAggregator) Snapshot(ctx context.Context, sess Session) ([]models.RoomSummary, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	rooms, err := a.Directory.Rooms(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return a.summarize(ctx, sess.UserID, rooms)
}

// Watch keeps the room list live. Every change to any of the viewer's rooms,
// including the viewer's own reads, triggers a full recompute.
// A counterpart's send reaches the viewer's member topic through the room touch.
func (a *RoomListAggregator) Watch(ctx context.Context, sess Session) (*Feed[[]models.RoomSummary], error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return startFeed(ctx, a.Directory.Storage, []string{storage.MemberTopic(sess.UserID)}, func(ctx context.Context) ([]models.RoomSummary, error) {
		return a.Snapshot(ctx, sess)
	})
}

func (a *RoomListAggregator) summarize(ctx context.Context, viewerID string, rooms []models.ChatRoom) ([]models.RoomSummary, error) {
	summaries := make([]models.RoomSummary, len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSummaryLoads)
	for i := range rooms {
		g.Go(func() error {
			room := rooms[i]
			counterpart := room.Counterpart(viewerID)
			unread, err := a.Tracker.UnreadSummary(gctx, room.ID, viewerID, a.unreadWindow)
			if err != nil {
				return err
			}
			summaries[i] = models.RoomSummary{
				Room:                   room,
				CounterpartID:          counterpart,
				CounterpartDisplayName: a.profiles.Name(gctx, counterpart),
				LastMessage:            room.LastMessage,
				UpdatedAt:              room.UpdatedAt,
				UnreadCount:            unread.Count,
				IsUnread:               unread.IsUnread,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
