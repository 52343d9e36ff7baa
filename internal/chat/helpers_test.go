package chat_test

import (
	"context"
	"errors"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection refused")

func testConfig() config.Config {
	return config.Config{
		StoreBackend:  config.BackendMemory,
		JWTSecret:     "test",
		MessageWindow: config.DefaultMessageWindow,
		UnreadWindow:  config.DefaultUnreadWindow,
	}
}

func newTestService(t *testing.T) (*chat.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return chat.NewService(store, testConfig()), store
}

func session(userID string) chat.Session {
	return chat.Session{UserID: userID, DisplayName: userID + "'s human"}
}

// nextSnapshot waits until the feed delivers a snapshot matching ok.
func nextSnapshot[T any](t *testing.T, feed *chat.Feed[T], ok func(chat.Snapshot[T]) bool) chat.Snapshot[T] {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-feed.Updates():
			require.True(t, open, "feed closed before expected snapshot")
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*storage.MemoryStore

	mu       sync.Mutex
	failing  map[string]bool
	hideRoom bool // FindRoomsForMember returns nothing, as if another writer raced us
	calls    map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: storage.NewMemoryStore(),
		failing:     make(map[string]bool),
		calls:       make(map[string]int),
	}
}

func (f *flakyStore) fail(op string) {
	f.mu.Lock()
	f.failing[op] = true
	f.mu.Unlock()
}

func (f *flakyStore) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.failing[op] {
		return errStoreDown
	}
	return nil
}

func (f *flakyStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *flakyStore) FindRoomsForMember(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	if err := f.check("FindRoomsForMember"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	hide := f.hideRoom
	f.mu.Unlock()
	if hide {
		return nil, nil
	}
	return f.MemoryStore.FindRoomsForMember(ctx, userID)
}

func (f *flakyStore) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := f.check("CreateRoom"); err != nil {
		return err
	}
	return f.MemoryStore.CreateRoom(ctx, room)
}

func (f *flakyStore) TouchRoom(ctx context.Context, roomID, lastMessage string) error {
	if err := f.check("TouchRoom"); err != nil {
		return err
	}
	return f.MemoryStore.TouchRoom(ctx, roomID, lastMessage)
}

func (f *flakyStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := f.check("AppendMessage"); err != nil {
		return err
	}
	return f.MemoryStore.AppendMessage(ctx, msg)
}

func (f *flakyStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if err := f.check("RecentMessages"); err != nil {
		return nil, err
	}
	return f.MemoryStore.RecentMessages(ctx, roomID, limit)
}

func (f *flakyStore) AddReader(ctx context.Context, roomID, messageID, userID string) (bool, error) {
	if err := f.check("AddReader"); err != nil {
		return false, err
	}
	return f.MemoryStore.AddReader(ctx, roomID, messageID, userID)
}

// MockProfiles is a testify mock of chat.ProfileLookup.
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) DisplayName(ctx context.Context, userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}
