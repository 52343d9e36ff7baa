package models

import "time"

// RoomSummary is one row of a user's room list. It is derived, never stored.
type RoomSummary struct {
	Room                   ChatRoom  `json:"room"`
	CounterpartID          string    `json:"counterpart_id"`
	CounterpartDisplayName string    `json:"counterpart_display_name"`
	LastMessage            string    `json:"last_message"`
	UpdatedAt              time.Time `json:"updated_at"`
	UnreadCount            int       `json:"unread_count"`
	IsUnread               bool      `json:"is_unread"`
}

// Frame types pushed over the websocket.
const (
	FrameRooms    = "rooms"
	FrameMessages = "messages"
	FrameError    = "error"
	FrameSend     = "send"
)

// LiveFrame is the envelope written to websocket clients.
type LiveFrame struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"room_id,omitempty"`
	Rooms    []RoomSummary `json:"rooms,omitempty"`
	Messages []Message     `json:"messages,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ClientFrame is what a websocket client may send on a room socket.
type ClientFrame struct {
	Type string `json:"type"` // "send"
	Text string `json:"text"`
}
