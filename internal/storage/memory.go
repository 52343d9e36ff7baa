package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"pawchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MemoryStore is an in-process Storage used for development (PAWCHAT_STORE_BACKEND=memory)
// and tests. It keeps the same guarantees as Service: unique pair key,
// store-assigned sent_at/seq, union-only read_by and change events after every write.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*models.ChatRoom
	pairs    map[string]string // pair key -> room id
	messages map[string][]*models.Message
	users    map[string]*models.User
	seq      int64
	lastTime time.Time

	// Now is the store clock. Values never go backwards even if Now does.
	Now func() time.Time

	subMu    sync.Mutex
	watchers map[*memoryWatcher]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*models.ChatRoom),
		pairs:    make(map[string]string),
		messages: make(map[string][]*models.Message),
		users:    make(map[string]*models.User),
		Now:      time.Now,
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

var _ Storage = (*MemoryStore)(nil)

// now must be called with mu held.
func (s *MemoryStore) now() time.Time {
	t := s.Now().UTC()
	if t.Before(s.lastTime) {
		t = s.lastTime
	}
	s.lastTime = t
	return t
}

func cloneRoom(r *models.ChatRoom) models.ChatRoom {
	c := *r
	c.Members = append(pq.StringArray(nil), r.Members...)
	return c
}

func (s *MemoryStore) FindRoomsForMember(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.ChatRoom, 0)
	for _, r := range s.rooms {
		if r.HasMember(userID) {
			rooms = append(rooms, cloneRoom(r))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].UpdatedAt.Equal(rooms[j].UpdatedAt) {
			return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (s *MemoryStore) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneRoom(r)
	return &c, nil
}

func (s *MemoryStore) GetRoomByPairKey(ctx context.Context, pairKey string) (*models.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	id, ok := s.pairs[pairKey]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetRoomByID(ctx, id)
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, taken := s.pairs[room.PairKey]; taken {
		s.mu.Unlock()
		return ErrDuplicateRoom
	}
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	now := s.now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}
	stored := cloneRoom(room)
	s.rooms[room.ID] = &stored
	s.pairs[room.PairKey] = room.ID
	s.mu.Unlock()

	topics := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		topics = append(topics, MemberTopic(m))
	}
	s.publish(Event{Kind: EventRoomCreated, RoomID: room.ID}, topics...)
	return nil
}

func (s *MemoryStore) TouchRoom(ctx context.Context, roomID, lastMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	r.LastMessage = lastMessage
	if now := s.now(); now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
	members := append([]string(nil), r.Members...)
	s.mu.Unlock()

	topics := make([]string, 0, len(members))
	for _, m := range members {
		topics = append(topics, MemberTopic(m))
	}
	s.publish(Event{Kind: EventRoomTouched, RoomID: roomID}, topics...)
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	s.seq++
	msg.Seq = s.seq
	msg.SentAt = s.now()
	stored := msg.Clone()
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &stored)
	s.mu.Unlock()

	s.publish(Event{Kind: EventMessageAppended, RoomID: msg.RoomID, MessageID: msg.ID}, RoomTopic(msg.RoomID))
	return nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Appends happen under the lock with a non-decreasing clock and increasing seq,
	// so the slice is already in (sent_at, seq) order.
	all := s.messages[roomID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]models.Message, 0, len(all)-start)
	for _, m := range all[start:] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *MemoryStore) AddReader(ctx context.Context, roomID, messageID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	var target *models.Message
	for _, m := range s.messages[roomID] {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if target.IsReadBy(userID) {
		s.mu.Unlock()
		return false, nil
	}
	target.ReadBy = append(target.ReadBy, userID)
	s.mu.Unlock()

	s.publish(Event{Kind: EventMessageRead, RoomID: roomID, MessageID: messageID, UserID: userID},
		RoomTopic(roomID), MemberTopic(userID))
	return true, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	s.mu.Lock()
	c := *user
	s.users[user.ID] = &c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, topics ...string) (Watcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &memoryWatcher{
		store:  s,
		topics: make(map[string]struct{}, len(topics)),
		events: make(chan Event, watcherBuffer),
		done:   make(chan struct{}),
	}
	for _, t := range topics {
		w.topics[t] = struct{}{}
	}

	s.subMu.Lock()
	s.watchers[w] = struct{}{}
	s.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()
	return w, nil
}

func (s *MemoryStore) publish(ev Event, topics ...string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for w := range s.watchers {
		for _, topic := range topics {
			if _, ok := w.topics[topic]; !ok {
				continue
			}
			ev.Topic = topic
			select {
			case w.events <- ev:
			default:
			}
		}
	}
}

type memoryWatcher struct {
	store  *MemoryStore
	topics map[string]struct{}
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (w *memoryWatcher) Events() <-chan Event { return w.events }

func (w *memoryWatcher) Close() error {
	w.once.Do(func() {
		w.store.subMu.Lock()
		delete(w.store.watchers, w)
		close(w.events)
		w.store.subMu.Unlock()
		close(w.done)
	})
	return nil
}

// WatcherCount reports how many watchers are registered. Used to verify that
// closed feeds release their subscriptions.
func (s *MemoryStore) WatcherCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.watchers)
}
