package chat

import (
	"context"
	"log"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"
)

// Unread is the unread state of one room for one viewer.
type Unread struct {
	Count    int  `json:"unread_count"`
	IsUnread bool `json:"is_unread"`
}

// ReadTracker records which users have observed which messages.
type ReadTracker struct {
	Storage storage.Storage
	Log     *MessageLog
}

// NewReadTracker creates a read tracker over s.
func NewReadTracker(s storage.Storage, l *MessageLog) *ReadTracker {
	return &ReadTracker{Storage: s, Log: l}
}

// MarkObservedIfUnread adds viewerID to read_by of every message in messages
// that someone else sent and the viewer has not read yet. The caller's copies are
// updated in place. Returns how many messages were newly marked.
func (t *ReadTracker) MarkObservedIfUnread(ctx context.Context, roomID string, messages []models.Message, viewerID string) (int, error) {
	if viewerID == "" {
		return 0, ErrUnauthenticated
	}
	marked := 0
	for i := range messages {
		msg := &messages[i]
		if !msg.IsUnreadFor(viewerID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		added, err := t.Storage.AddReader(ctx, roomID, msg.ID, viewerID)
		if err != nil {
			return marked, storeErr(err)
		}
		msg.ReadBy = append(msg.ReadBy, viewerID)
		if added {
			marked++
		}
	}
	return marked, nil
}

// UnreadSummary counts unread messages for viewerID among the newest window
// messages only. Rooms with more unread messages than window report window.
func (t *ReadTracker) UnreadSummary(ctx context.Context, roomID, viewerID string, window int) (Unread, error) {
	if viewerID == "" {
		return Unread{}, ErrUnauthenticated
	}
	if window <= 0 {
		window = config.DefaultUnreadWindow
	}
	messages, err := t.Storage.RecentMessages(ctx, roomID, window)
	if err != nil {
		return Unread{}, storeErr(err)
	}
	return countUnread(messages, viewerID), nil
}

func countUnread(messages []models.Message, viewerID string) Unread {
	count := 0
	for i := range messages {
		if messages[i].IsUnreadFor(viewerID) {
			count++
		}
	}
	return Unread{Count: count, IsUnread: count > 0}
}

// ReadWindow fetches the room window for a member and marks it observed,
// the one-shot equivalent of a single ObserveRoom delivery.
func (t *ReadTracker) ReadWindow(ctx context.Context, sess Session, roomID string, limit int) ([]models.Message, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := t.Log.Directory.Room(ctx, roomID, sess.UserID); err != nil {
		return nil, err
	}
	messages, err := t.Log.Window(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	if _, err := t.MarkObservedIfUnread(ctx, roomID, messages, sess.UserID); err != nil {
		return nil, err
	}
	return messages, nil
}

// ObserveRoom subscribes a member to the room window and marks every delivered
// window as observed by them. After the feed is closed nothing more is marked.
func (t *ReadTracker) ObserveRoom(ctx context.Context, sess Session, roomID string, limit int) (*Feed[[]models.Message], error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := t.Log.Directory.Room(ctx, roomID, sess.UserID); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)
	return startFeed(ctx, t.Storage, []string{storage.RoomTopic(roomID)}, func(ctx context.Context) ([]models.Message, error) {
		messages, err := t.Log.Window(ctx, roomID, limit)
		if err != nil {
			return nil, err
		}
		if _, err := t.MarkObservedIfUnread(ctx, roomID, messages, sess.UserID); err != nil && ctx.Err() == nil {
			// The window is still worth showing; the next delivery retries the marks.
			log.Printf("WARNING: Failed to mark room %s read for %s: %v", roomID, sess.UserID, err)
		}
		return messages, nil
	})
}
