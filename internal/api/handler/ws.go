package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const closeWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedStarter starts a socket's feed. It runs only after the upgrade succeeded,
// so a failed handshake never observes or marks anything.
type feedStarter func(ctx context.Context) (frames <-chan models.LiveFrame, stop func(), err error)

// ServeRoomListSocket streams the caller's room list.
func (h *Handler) ServeRoomListSocket(c *gin.Context) {
	sess := sessionFrom(c)
	aggregator := h.Chat.NewAggregator()
	h.serveSocket(c, sess, "", func(ctx context.Context) (<-chan models.LiveFrame, func(), error) {
		feed, err := aggregator.Watch(ctx, sess)
		if err != nil {
			return nil, nil, err
		}
		return chathub.RoomListFrames(feed), feed.Close, nil
	}, nil)
}

// ServeRoomSocket streams one room's message window, marking it read for the
// caller, and accepts {"type":"send"} frames.
func (h *Handler) ServeRoomSocket(c *gin.Context) {
	sess := sessionFrom(c)
	roomID := c.Param("id")
	// Outsiders get a plain HTTP status instead of a socket.
	if _, err := h.Chat.Directory.Room(c.Request.Context(), roomID, sess.UserID); err != nil {
		respondError(c, err)
		return
	}
	h.serveSocket(c, sess, roomID, func(ctx context.Context) (<-chan models.LiveFrame, func(), error) {
		feed, err := h.Chat.Tracker.ObserveRoom(ctx, sess, roomID, h.Chat.MessageWindow)
		if err != nil {
			return nil, nil, err
		}
		return chathub.RoomFrames(roomID, feed), feed.Close, nil
	}, h.Chat.Log)
}

func (h *Handler) serveSocket(c *gin.Context, sess chat.Session, roomID string, start feedStarter, sender chathub.MessageSender) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WARNING: Websocket upgrade failed for %s: %v", sess.UserID, err)
		return
	}

	// The socket outlives the request, so its context hangs off the session, not c.Request.
	ctx, cancel := sess.Bind(context.Background())
	frames, stopFeed, err := start(ctx)
	if err != nil {
		cancel()
		log.Printf("WARNING: Failed to start feed for %s: %v", sess.UserID, err)
		refuse(conn, roomID, err)
		return
	}
	stop := func() {
		stopFeed()
		cancel()
	}

	client := chathub.NewWebSocketClient(ctx, h.Hub, conn, sess, roomID, frames, stop, sender)
	if !h.Hub.Register(client) {
		client.Close()
		conn.Close()
		return
	}
	client.Run()
}

// refuse reports err on a freshly upgraded connection and closes it.
func refuse(conn *websocket.Conn, roomID string, err error) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(closeWait))
	if werr := conn.WriteJSON(chathub.ErrorFrame(roomID, err)); werr != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"))
}
