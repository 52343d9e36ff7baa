package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message is a single text message in a ChatRoom.
// Only ReadBy changes after creation, and it only grows.
type Message struct {
	// ID is unique within the room (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// Seq is the store-assigned insertion order, used to break SentAt ties.
	Seq int64 `gorm:"autoIncrement;not null;index" json:"seq"`
	// RoomID is the owning room.
	RoomID string `gorm:"type:text;not null;index:idx_room_sent" json:"room_id"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// SenderDisplayName is resolved once at send time and never refreshed.
	SenderDisplayName string `gorm:"type:text;not null" json:"sender_display_name"`
	// Text is the trimmed message body.
	Text string `gorm:"type:text;not null" json:"text"`
	// SentAt is assigned by the store on insert.
	SentAt time.Time `gorm:"not null;default:now();index:idx_room_sent" json:"sent_at"`
	// ReadBy is the set of users who have observed the message. Always contains SenderID.
	ReadBy pq.StringArray `gorm:"type:text[];not null" json:"read_by"`
}

// BeforeCreate generates the message id if it is not set yet.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// IsReadBy reports whether userID is in ReadBy.
func (m *Message) IsReadBy(userID string) bool {
	for _, uid := range m.ReadBy {
		if uid == userID {
			return true
		}
	}
	return false
}

// IsUnreadFor reports whether the message counts as unread for viewerID:
// somebody else sent it and viewerID has not observed it yet.
func (m *Message) IsUnreadFor(viewerID string) bool {
	return m.SenderID != viewerID && !m.IsReadBy(viewerID)
}

// Before orders messages by SentAt, then by Seq.
func (m *Message) Before(other *Message) bool {
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.Seq < other.Seq
}

// Clone returns a copy that does not share the ReadBy backing array.
func (m *Message) Clone() Message {
	c := *m
	c.ReadBy = append(pq.StringArray(nil), m.ReadBy...)
	return c
}
