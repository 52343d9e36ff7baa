package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

var errReadOnlySocket = errors.New("this socket does not accept messages")

// MessageSender is the part of the message log a room socket writes through.
type MessageSender interface {
	Send(ctx context.Context, sess chat.Session, roomID, text string) (*models.Message, error)
}

// WebSocketClient реалізує інтерфейс chathub.Client.
// Snapshots of its feed are written to the peer as they arrive; a room socket
// also accepts {"type":"send"} frames from the peer.
type WebSocketClient struct {
	Session chat.Session
	RoomID  string
	Conn    *websocket.Conn
	Hub     *ManagerService
	Send    chan models.LiveFrame
	Sender  MessageSender // nil on a room list socket

	ctx    context.Context
	feed   <-chan models.LiveFrame
	stop   func()
	done   chan struct{}
	closer sync.Once
}

// NewWebSocketClient wraps conn. ctx bounds the client's writes and should end
// when the session expires; stop releases the feed behind frames.
func NewWebSocketClient(ctx context.Context, hub *ManagerService, conn *websocket.Conn, sess chat.Session, roomID string, frames <-chan models.LiveFrame, stop func(), sender MessageSender) *WebSocketClient {
	return &WebSocketClient{
		Session: sess,
		RoomID:  roomID,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan models.LiveFrame, sendBuffer),
		Sender:  sender,
		ctx:     ctx,
		feed:    frames,
		stop:    stop,
		done:    make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.Session.UserID }
func (c *WebSocketClient) GetRoomID() string { return c.RoomID }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the feed and signals writePump to say goodbye to the peer.
func (c *WebSocketClient) Close() {
	c.closer.Do(func() {
		if c.stop != nil {
			c.stop()
		}
		close(c.done)
	})
}

// push queues an out-of-band frame, dropping it if the peer is not keeping up.
func (c *WebSocketClient) push(frame models.LiveFrame) {
	select {
	case c.Send <- frame:
	case <-c.done:
	default:
		log.Printf("WARNING: Dropping %s frame for slow client %s", frame.Type, c.Session.UserID)
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ERROR: Reading from client %s: %v", c.Session.UserID, err)
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("WARNING: Bad frame from client %s: %v", c.Session.UserID, err)
			continue // Пропускаємо невірне повідомлення
		}
		c.handle(frame)
	}
}

func (c *WebSocketClient) handle(frame models.ClientFrame) {
	if frame.Type != models.FrameSend {
		return
	}
	if c.Sender == nil || c.RoomID == "" {
		c.push(ErrorFrame(c.RoomID, errReadOnlySocket))
		return
	}
	// The new message reaches the peer through the feed, not as a reply.
	if _, err := c.Sender.Send(c.ctx, c.Session, c.RoomID, frame.Text); err != nil {
		c.push(ErrorFrame(c.RoomID, err))
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.feed:
			if !ok {
				// Feed ended: the sign-in expired or the client is closing.
				c.goodbye(c.closeReason())
				return
			}
			if err := c.write(frame); err != nil {
				return
			}
		case frame := <-c.Send:
			if err := c.write(frame); err != nil {
				return
			}
		case <-c.done:
			c.goodbye(websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
			return
		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) write(frame models.LiveFrame) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteJSON(frame); err != nil {
		log.Printf("ERROR: Writing %s frame to client %s: %v", frame.Type, c.Session.UserID, err)
		return err
	}
	return nil
}

func (c *WebSocketClient) goodbye(msg []byte) {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.Conn.WriteMessage(websocket.CloseMessage, msg)
}

func (c *WebSocketClient) closeReason() []byte {
	if errors.Is(c.ctx.Err(), context.DeadlineExceeded) {
		return websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired")
	}
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
}
