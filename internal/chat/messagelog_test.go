package chat_test

import (
	"context"
	"fmt"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(t *testing.T, svc *chat.Service, a, b string) string {
	t.Helper()
	id, err := svc.Directory.EnsureRoom(context.Background(), session(a), b)
	require.NoError(t, err)
	return id
}

func TestSend_StoresMessageAndUpdatesRoom(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	msg, err := svc.Log.Send(ctx, session("alice"), roomID, "  park at 5?  ")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "park at 5?", msg.Text)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "alice's human", msg.SenderDisplayName)
	assert.Equal(t, []string{"alice"}, []string(msg.ReadBy))
	assert.False(t, msg.SentAt.IsZero())

	room, err := store.GetRoomByID(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "park at 5?", room.LastMessage)
	assert.False(t, room.UpdatedAt.Before(room.CreatedAt))
}

func TestSend_RejectsBlankText(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := svc.Log.Send(ctx, session("alice"), roomID, text)
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	}

	messages, err := store.RecentMessages(ctx, roomID, 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
	room, err := store.GetRoomByID(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "", room.LastMessage)
}

func TestSend_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	tests := []struct {
		name    string
		sess    chat.Session
		roomID  string
		wantErr error
	}{
		{name: "No caller", sess: chat.Session{}, roomID: roomID, wantErr: chat.ErrUnauthenticated},
		{name: "Unknown room", sess: session("alice"), roomID: "gone", wantErr: chat.ErrNotFound},
		{name: "Outsider", sess: session("carol"), roomID: roomID, wantErr: chat.ErrNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Log.Send(ctx, tt.sess, tt.roomID, "hi")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSend_AppendFailure(t *testing.T) {
	store := newFlakyStore()
	svc := chat.NewService(store, testConfig())
	roomID := newRoom(t, svc, "alice", "bob")
	store.fail("AppendMessage")

	_, err := svc.Log.Send(context.Background(), session("alice"), roomID, "hi")

	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
	assert.Equal(t, 0, store.count("TouchRoom"))
}

func TestSend_SummaryFailureKeepsMessage(t *testing.T) {
	store := newFlakyStore()
	svc := chat.NewService(store, testConfig())
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")
	store.fail("TouchRoom")

	msg, err := svc.Log.Send(ctx, session("alice"), roomID, "hi")
	require.NoError(t, err)

	messages, err := store.MemoryStore.RecentMessages(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.ID, messages[0].ID)

	room, err := store.GetRoomByID(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "", room.LastMessage, "summary stays stale")
}

func TestWindow_OrdersBySentAtThenSeq(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	frozen := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return frozen }

	for i := 0; i < 5; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		_, err := svc.Log.Send(ctx, session(sender), roomID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	messages, err := svc.Log.Window(ctx, roomID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i := range messages {
		assert.Equal(t, fmt.Sprintf("msg %d", i), messages[i].Text)
		if i > 0 {
			assert.True(t, messages[i-1].Before(&messages[i]))
		}
	}
}

func TestWindow_LimitIsNormalized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	for i := 0; i < 60; i++ {
		_, err := svc.Log.Send(ctx, session("alice"), roomID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  int
		first string
	}{
		{name: "Default", limit: 0, want: 50, first: "msg 10"},
		{name: "Explicit", limit: 3, want: 3, first: "msg 57"},
		{name: "Above max", limit: 10000, want: 60, first: "msg 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := svc.Log.Window(ctx, roomID, tt.limit)
			require.NoError(t, err)
			require.Len(t, messages, tt.want)
			assert.Equal(t, tt.first, messages[0].Text)
			assert.Equal(t, "msg 59", messages[len(messages)-1].Text)
		})
	}
}

func TestSubscribe_ReplaysThenFollows(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "first")
	require.NoError(t, err)

	feed, err := svc.Log.Subscribe(ctx, roomID, 10)
	require.NoError(t, err)

	snap := nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return true })
	require.NoError(t, snap.Err)
	require.Len(t, snap.Value, 1)
	assert.Equal(t, "first", snap.Value[0].Text)

	_, err = svc.Log.Send(ctx, session("bob"), roomID, "second")
	require.NoError(t, err)
	snap = nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return len(s.Value) == 2 })
	assert.Equal(t, "second", snap.Value[1].Text)

	feed.Close()
	_, open := <-feed.Updates()
	assert.False(t, open)
	assert.Equal(t, 0, store.WatcherCount())
}

func TestSubscribe_DegradedSnapshotOnStoreFailure(t *testing.T) {
	store := newFlakyStore()
	svc := chat.NewService(store, testConfig())
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	feed, err := svc.Log.Subscribe(ctx, roomID, 10)
	require.NoError(t, err)
	defer feed.Close()
	nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return s.Err == nil })

	store.fail("RecentMessages")
	_, err = svc.Log.Send(ctx, session("alice"), roomID, "hi")
	require.NoError(t, err)

	snap := nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return s.Err != nil })
	assert.ErrorIs(t, snap.Err, chat.ErrStoreUnavailable)
	assert.Empty(t, snap.Value)
}

func TestSubscribe_EndsWithContext(t *testing.T) {
	svc, store := newTestService(t)
	roomID := newRoom(t, svc, "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := svc.Log.Subscribe(ctx, roomID, 10)
	require.NoError(t, err)

	cancel()
	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
	assert.Equal(t, 0, store.WatcherCount())
}
