package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ensureRoomRequest struct {
	OtherID string `json:"other_id"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// EnsureRoom returns the caller's room with other_id, creating it on first contact.
func (h *Handler) EnsureRoom(c *gin.Context) {
	var req ensureRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roomID, err := h.Chat.Directory.EnsureRoom(c.Request.Context(), sessionFrom(c), req.OtherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

// ListRooms returns the caller's room list with names and unread state.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Chat.NewAggregator().Snapshot(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetMessages returns the newest window of the room and marks it read for the caller.
func (h *Handler) GetMessages(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	if limit == 0 {
		limit = h.Chat.MessageWindow
	}
	messages, err := h.Chat.Tracker.ReadWindow(c.Request.Context(), sessionFrom(c), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": c.Param("id"), "messages": messages})
}

// SendMessage appends a message from the caller.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.Chat.Log.Send(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetUnread returns the caller's unread summary for one room.
func (h *Handler) GetUnread(c *gin.Context) {
	window, ok := intQuery(c, "window")
	if !ok {
		return
	}
	if window == 0 {
		window = h.Chat.UnreadWindow
	}
	sess := sessionFrom(c)
	// Membership first, so outsiders learn nothing about the room.
	if _, err := h.Chat.Directory.Room(c.Request.Context(), c.Param("id"), sess.UserID); err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.Chat.Tracker.UnreadSummary(c.Request.Context(), c.Param("id"), sess.UserID, window)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unread)
}
