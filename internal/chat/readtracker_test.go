package chat_test

import (
	"context"
	"fmt"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTracker_HelloScenario(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "hello")
	require.NoError(t, err)

	forBob, err := svc.Tracker.UnreadSummary(ctx, roomID, "bob", 20)
	require.NoError(t, err)
	assert.Equal(t, chat.Unread{Count: 1, IsUnread: true}, forBob)

	forAlice, err := svc.Tracker.UnreadSummary(ctx, roomID, "alice", 20)
	require.NoError(t, err)
	assert.Equal(t, chat.Unread{Count: 0, IsUnread: false}, forAlice)

	messages, err := svc.Tracker.ReadWindow(ctx, session("bob"), roomID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string(messages[0].ReadBy))

	forBob, err = svc.Tracker.UnreadSummary(ctx, roomID, "bob", 20)
	require.NoError(t, err)
	assert.Equal(t, chat.Unread{}, forBob)

	stored, err := store.RecentMessages(ctx, roomID, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string(stored[0].ReadBy))
}

func TestMarkObservedIfUnread_OnlyAddsMissingReaders(t *testing.T) {
	store := newFlakyStore()
	svc := chat.NewService(store, testConfig())
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "from alice")
	require.NoError(t, err)
	_, err = svc.Log.Send(ctx, session("bob"), roomID, "from bob")
	require.NoError(t, err)

	messages, err := svc.Log.Window(ctx, roomID, 0)
	require.NoError(t, err)

	marked, err := svc.Tracker.MarkObservedIfUnread(ctx, roomID, messages, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, marked, "own message is never marked")
	assert.Equal(t, 1, store.count("AddReader"))
	assert.True(t, messages[0].IsReadBy("bob"), "caller copy updated")

	marked, err = svc.Tracker.MarkObservedIfUnread(ctx, roomID, messages, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, marked)
	assert.Equal(t, 1, store.count("AddReader"), "already read messages issue no write")
}

func TestMarkObservedIfUnread_ReadByNeverShrinks(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "hello")
	require.NoError(t, err)

	// A stale copy taken before bob read the message.
	stale, err := svc.Log.Window(ctx, roomID, 0)
	require.NoError(t, err)

	_, err = svc.Tracker.ReadWindow(ctx, session("bob"), roomID, 0)
	require.NoError(t, err)

	marked, err := svc.Tracker.MarkObservedIfUnread(ctx, roomID, stale, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	stored, err := store.RecentMessages(ctx, roomID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, []string(stored[0].ReadBy))
}

func TestMarkObservedIfUnread_StoreFailure(t *testing.T) {
	store := newFlakyStore()
	svc := chat.NewService(store, testConfig())
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")
	_, err := svc.Log.Send(ctx, session("alice"), roomID, "hello")
	require.NoError(t, err)
	messages, err := svc.Log.Window(ctx, roomID, 0)
	require.NoError(t, err)

	store.fail("AddReader")
	_, err = svc.Tracker.MarkObservedIfUnread(ctx, roomID, messages, "bob")

	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
	_, err = svc.Tracker.MarkObservedIfUnread(ctx, roomID, messages, "")
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)
}

func TestMarkObservedIfUnread_StaleMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	stale := []models.Message{{ID: "gone", RoomID: roomID, SenderID: "alice", Text: "hi"}}
	marked, err := svc.Tracker.MarkObservedIfUnread(ctx, roomID, stale, "bob")

	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.Zero(t, marked)
	assert.Empty(t, stale[0].ReadBy)
}

func TestUnreadSummary_CountsOnlyTheWindow(t *testing.T) {
	tests := []struct {
		name   string
		sent   int
		window int
		want   int
	}{
		{name: "Exactly the window", sent: 20, window: 20, want: 20},
		{name: "One past the window", sent: 21, window: 20, want: 20},
		{name: "Default window", sent: 25, window: 0, want: 20},
		{name: "Wider window", sent: 21, window: 50, want: 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			roomID := newRoom(t, svc, "alice", "bob")
			for i := 0; i < tt.sent; i++ {
				_, err := svc.Log.Send(ctx, session("alice"), roomID, fmt.Sprintf("woof %d", i))
				require.NoError(t, err)
			}

			unread, err := svc.Tracker.UnreadSummary(ctx, roomID, "bob", tt.window)
			require.NoError(t, err)
			assert.Equal(t, tt.want, unread.Count)
			assert.True(t, unread.IsUnread)
		})
	}
}

func TestUnreadSummary_OlderUnreadOutsideWindowIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "old and unread")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Log.Send(ctx, session("bob"), roomID, "bob talking")
		require.NoError(t, err)
	}

	unread, err := svc.Tracker.UnreadSummary(ctx, roomID, "bob", 3)
	require.NoError(t, err)
	assert.Equal(t, chat.Unread{}, unread)
}

func TestReadWindow_RejectsOutsiders(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")
	_, err := svc.Log.Send(ctx, session("alice"), roomID, "private")
	require.NoError(t, err)

	_, err = svc.Tracker.ReadWindow(ctx, session("carol"), roomID, 0)
	assert.ErrorIs(t, err, chat.ErrNotMember)

	stored, err := store.RecentMessages(ctx, roomID, 1)
	require.NoError(t, err)
	assert.False(t, stored[0].IsReadBy("carol"))
}

func TestObserveRoom_MarksDeliveredWindows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Log.Send(ctx, session("alice"), roomID, "before")
	require.NoError(t, err)

	feed, err := svc.Tracker.ObserveRoom(ctx, session("bob"), roomID, 0)
	require.NoError(t, err)
	defer feed.Close()

	snap := nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return len(s.Value) == 1 })
	assert.True(t, snap.Value[0].IsReadBy("bob"))

	_, err = svc.Log.Send(ctx, session("alice"), roomID, "while open")
	require.NoError(t, err)
	snap = nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return len(s.Value) == 2 })
	assert.True(t, snap.Value[1].IsReadBy("bob"))

	unread, err := svc.Tracker.UnreadSummary(ctx, roomID, "bob", 20)
	require.NoError(t, err)
	assert.Equal(t, 0, unread.Count)
}

func TestObserveRoom_StopsMarkingAfterClose(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	feed, err := svc.Tracker.ObserveRoom(ctx, session("bob"), roomID, 0)
	require.NoError(t, err)
	nextSnapshot(t, feed, func(s chat.Snapshot[[]models.Message]) bool { return true })
	feed.Close()
	assert.Equal(t, 0, store.WatcherCount())

	_, err = svc.Log.Send(ctx, session("alice"), roomID, "after close")
	require.NoError(t, err)

	unread, err := svc.Tracker.UnreadSummary(ctx, roomID, "bob", 20)
	require.NoError(t, err)
	assert.Equal(t, chat.Unread{Count: 1, IsUnread: true}, unread)
}

func TestObserveRoom_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	roomID := newRoom(t, svc, "alice", "bob")

	_, err := svc.Tracker.ObserveRoom(ctx, chat.Session{}, roomID, 0)
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)
	_, err = svc.Tracker.ObserveRoom(ctx, session("carol"), roomID, 0)
	assert.ErrorIs(t, err, chat.ErrNotMember)
	_, err = svc.Tracker.ObserveRoom(ctx, session("bob"), "gone", 0)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
