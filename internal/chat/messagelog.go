package chat

import (
	"context"
	"log"
	"strings"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/lib/pq"
)

// MessageLog appends and reads the ordered messages of a room and keeps the
// room's last_message/updated_at in step with sends.
type MessageLog struct {
	Storage   storage.Storage
	Directory *RoomDirectory
}

// NewMessageLog creates a message log over s.
func NewMessageLog(s storage.Storage, d *RoomDirectory) *MessageLog {
	return &MessageLog{Storage: s, Directory: d}
}

// Send appends a message from the session's user. The sender is always the first reader.
//
// The room summary update after the append is best effort: if it fails the
// message is kept and the summary stays stale until the next send.
func (l *MessageLog) Send(ctx context.Context, sess Session, roomID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := l.Directory.Room(ctx, roomID, sess.UserID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		RoomID:            roomID,
		SenderID:          sess.UserID,
		SenderDisplayName: sess.DisplayName,
		Text:              text,
		ReadBy:            pq.StringArray{sess.UserID},
	}
	if err := l.Storage.AppendMessage(ctx, msg); err != nil {
		return nil, storeErr(err)
	}

	if err := l.Storage.TouchRoom(ctx, roomID, text); err != nil {
		log.Printf("WARNING: Message %s saved but room %s summary not updated: %v", msg.ID, roomID, err)
	}
	return msg, nil
}

// Window returns the newest limit messages of the room in ascending order.
func (l *MessageLog) Window(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	messages, err := l.Storage.RecentMessages(ctx, roomID, normalizeLimit(limit))
	if err != nil {
		return nil, storeErr(err)
	}
	return messages, nil
}

// Subscribe is the live form of Window. Every subscribe starts with the
// current window; the whole window is re-delivered on any change in the room.
func (l *MessageLog) Subscribe(ctx context.Context, roomID string, limit int) (*Feed[[]models.Message], error) {
	limit = normalizeLimit(limit)
	return startFeed(ctx, l.Storage, []string{storage.RoomTopic(roomID)}, func(ctx context.Context) ([]models.Message, error) {
		return l.Window(ctx, roomID, limit)
	})
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return config.DefaultMessageWindow
	}
	if limit > config.MaxMessageWindow {
		return config.MaxMessageWindow
	}
	return limit
}
