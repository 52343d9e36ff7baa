package storage

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Event kinds published after successful writes.
const (
	EventRoomCreated     = "room_created"
	EventRoomTouched     = "room_touched"
	EventMessageAppended = "message_appended"
	EventMessageRead     = "message_read"
)

// Event is a change notification. It names what changed, not the new state;
// subscribers re-read the documents they care about.
type Event struct {
	Topic     string `json:"topic"`
	Kind      string `json:"kind"`
	RoomID    string `json:"room_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// RoomTopic carries message appends and read-state changes of one room.
func RoomTopic(roomID string) string { return "room:" + roomID }

// MemberTopic carries room creation/updates for a member and that member's own reads.
func MemberTopic(userID string) string { return "member:" + userID }

// Watcher is a live change subscription. Events is closed once the watcher stops.
type Watcher interface {
	Events() <-chan Event
	Close() error
}

const watcherBuffer = 64

type redisWatcher struct {
	pubsub *redis.PubSub
	events chan Event
	once   sync.Once
	done   chan struct{}
}

func newRedisWatcher(pubsub *redis.PubSub) *redisWatcher {
	return &redisWatcher{
		pubsub: pubsub,
		events: make(chan Event, watcherBuffer),
		done:   make(chan struct{}),
	}
}

func (w *redisWatcher) Events() <-chan Event { return w.events }

func (w *redisWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.pubsub.Close()
	})
	return err
}

// run переносить повідомлення Redis у канал подій до закриття підписки.
func (w *redisWatcher) run(ctx context.Context) {
	defer close(w.events)
	defer w.Close()

	ch := w.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshalling Redis event: %v", err)
				continue
			}
			ev.Topic = msg.Channel
			// Events only say "something changed", so a full buffer can drop safely.
			select {
			case w.events <- ev:
			default:
			}
		}
	}
}
