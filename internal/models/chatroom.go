package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ChatRoom is the direct conversation between exactly two users.
// Members are always stored sorted so that PairKey identifies the unordered pair.
type ChatRoom struct {
	// ID is the opaque room identifier (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// Members holds the two user ids in canonical (sorted) order.
	Members pq.StringArray `gorm:"type:text[];not null" json:"members"`
	// PairKey is the canonical pair, unique across all rooms.
	PairKey string `gorm:"uniqueIndex;not null" json:"-"`
	// CreatedAt is set once when the room is first created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt bumps on every message sent into the room.
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
	// LastMessage is a denormalized copy of the most recent message text.
	LastMessage string `gorm:"type:text;not null;default:''" json:"last_message"`
	// VideoRoomToken keys the video-call collaborator; minted once at creation.
	VideoRoomToken string `gorm:"type:text;not null" json:"video_room_token"`
}

// BeforeCreate generates the room id if it is not set yet.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// CanonicalMembers returns the pair sorted, the way it is persisted.
func CanonicalMembers(a, b string) []string {
	members := []string{a, b}
	sort.Strings(members)
	return members
}

// PairKeyFor builds the dedup key for an unordered pair of users.
func PairKeyFor(a, b string) string {
	members := CanonicalMembers(a, b)
	return members[0] + "|" + members[1]
}

// HasMember reports whether userID is one of the room's members.
func (r *ChatRoom) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the member that is not viewerID.
func (r *ChatRoom) Counterpart(viewerID string) string {
	for _, m := range r.Members {
		if m != viewerID {
			return m
		}
	}
	return ""
}
