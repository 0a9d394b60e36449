package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chatsync/internal/chat"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *Metrics, context.CancelFunc) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	hub := NewHub(nil, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, metrics, cancel
}

// fakeClient has no socket; tests read its send queue directly.
func fakeClient(hub *Hub, userID string, queue int) *Client {
	return &Client{UserID: userID, hub: hub, send: make(chan []byte, queue)}
}

func next(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame for %s", c.UserID)
		return Envelope{}
	}
}

func requireSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame for %s: %s", c.UserID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func requireClosed(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("send queue for %s never closed", c.UserID)
		}
	}
}

func joined(t *testing.T, hub *Hub, c *Client, chatID string) {
	t.Helper()
	hub.Join(c, chatID)
	env := next(t, c)
	require.Equal(t, EventRegistered, env.Event)

	var p RegisterPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, chatID, p.ChatRoomID)
}

func TestHub_BroadcastReachesOnlyTheRoom(t *testing.T) {
	req := require.New(t)
	hub, metrics, _ := startHub(t)

	alice, bob, carol := fakeClient(hub, "alice", 8), fakeClient(hub, "bob", 8), fakeClient(hub, "carol", 8)
	for _, c := range []*Client{alice, bob, carol} {
		req.True(hub.Register(c))
	}
	joined(t, hub, alice, "room-1")
	joined(t, hub, bob, "room-1")
	joined(t, hub, carol, "room-2")
	req.Equal(2, hub.RoomSize("room-1"))
	req.Equal(2.0, testutil.ToFloat64(metrics.Rooms))

	hub.BroadcastMessage("room-1", chat.Message{ID: "m1", ChatID: "room-1", Content: "hi"})

	for _, c := range []*Client{alice, bob} {
		env := next(t, c)
		req.Equal(EventMessage, env.Event)
		var m chat.Message
		req.NoError(json.Unmarshal(env.Data, &m))
		req.Equal("hi", m.Content)
	}
	requireSilent(t, carol)
	req.Equal(1.0, testutil.ToFloat64(metrics.Events.WithLabelValues(EventMessage)))
}

func TestHub_DeletionAndStatusEvents(t *testing.T) {
	req := require.New(t)
	hub, _, _ := startHub(t)

	c := fakeClient(hub, "alice", 8)
	req.True(hub.Register(c))
	joined(t, hub, c, "room")

	hub.BroadcastDeletion("room", "m1")
	env := next(t, c)
	req.Equal(EventDeleteMessage, env.Event)
	var ref MessageRefPayload
	req.NoError(json.Unmarshal(env.Data, &ref))
	req.Equal("m1", ref.MessageID)

	hub.BroadcastStatus("room", "m1", chat.StatusRead)
	env = next(t, c)
	req.Equal(EventMessageStatus, env.Event)
	var st StatusPayload
	req.NoError(json.Unmarshal(env.Data, &st))
	req.Equal(chat.StatusRead, st.Status)
}

func TestHub_ChatDeletedTearsDownRoom(t *testing.T) {
	req := require.New(t)
	hub, metrics, _ := startHub(t)

	a, b := fakeClient(hub, "a", 8), fakeClient(hub, "b", 8)
	req.True(hub.Register(a))
	req.True(hub.Register(b))
	joined(t, hub, a, "gone")
	joined(t, hub, b, "gone")
	joined(t, hub, a, "other")
	req.Equal(2.0, testutil.ToFloat64(metrics.Rooms))

	hub.BroadcastChatDeleted("gone")
	for _, c := range []*Client{a, b} {
		env := next(t, c)
		req.Equal(EventChatDeleted, env.Event)
		var p RegisterPayload
		req.NoError(json.Unmarshal(env.Data, &p))
		req.Equal("gone", p.ChatRoomID)
	}
	req.Equal(0, hub.RoomSize("gone"))
	req.Equal(1, hub.RoomSize("other"))
	req.Equal(1.0, testutil.ToFloat64(metrics.Rooms))

	// Later events for the dead chat reach nobody; the client is still live elsewhere.
	hub.BroadcastDeletion("gone", "m1")
	requireSilent(t, a)
	hub.BroadcastDeletion("other", "m2")
	req.Equal(EventDeleteMessage, next(t, a).Event)

	// Unregister after teardown must not touch the closed room again.
	hub.Unregister(b)
	requireClosed(t, b)
	req.Equal(1.0, testutil.ToFloat64(metrics.Rooms))
}

func TestHub_JoinTwiceKeepsOneMembership(t *testing.T) {
	hub, _, _ := startHub(t)
	c := fakeClient(hub, "alice", 8)
	require.True(t, hub.Register(c))

	joined(t, hub, c, "room")
	joined(t, hub, c, "room")
	require.Equal(t, 1, hub.RoomSize("room"))

	hub.BroadcastDeletion("room", "m1")
	next(t, c)
	requireSilent(t, c)
}

func TestHub_JoinBeforeRegisterIsIgnored(t *testing.T) {
	hub, _, _ := startHub(t)
	c := fakeClient(hub, "ghost", 8)

	hub.Join(c, "room")
	require.Equal(t, 0, hub.RoomSize("room"))
	requireSilent(t, c)
}

func TestHub_UnregisterLeavesEveryRoom(t *testing.T) {
	req := require.New(t)
	hub, metrics, _ := startHub(t)

	c := fakeClient(hub, "alice", 8)
	req.True(hub.Register(c))
	joined(t, hub, c, "a")
	joined(t, hub, c, "b")
	req.Equal(1.0, testutil.ToFloat64(metrics.Clients))

	hub.Unregister(c)
	requireClosed(t, c)
	req.Equal(0, hub.RoomSize("a"))
	req.Equal(0, hub.RoomSize("b"))
	req.Equal(0.0, testutil.ToFloat64(metrics.Clients))
	req.Equal(0.0, testutil.ToFloat64(metrics.Rooms))

	// A second unregister must not close the queue again.
	hub.Unregister(c)
	req.Equal(0, hub.RoomSize("a"))
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	req := require.New(t)
	hub, metrics, _ := startHub(t)

	slow := fakeClient(hub, "slow", 1)
	fast := fakeClient(hub, "fast", 8)
	req.True(hub.Register(slow))
	req.True(hub.Register(fast))

	// The ack fills the slow queue of one; it is left unread.
	hub.Join(slow, "room")
	joined(t, hub, fast, "room")
	req.Eventually(func() bool { return hub.RoomSize("room") == 2 }, time.Second, 5*time.Millisecond)

	hub.BroadcastDeletion("room", "m1")
	env := next(t, fast)
	req.Equal(EventDeleteMessage, env.Event)

	requireClosed(t, slow)
	req.Equal(1, hub.RoomSize("room"))
	req.Equal(1.0, testutil.ToFloat64(metrics.Dropped.WithLabelValues("slow_consumer")))
}

func TestHub_ReplyGoesToOneClient(t *testing.T) {
	hub, _, _ := startHub(t)
	a, b := fakeClient(hub, "a", 8), fakeClient(hub, "b", 8)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.Reply(a, EventError, ErrorPayload{Message: "nope"})

	env := next(t, a)
	require.Equal(t, EventError, env.Event)
	requireSilent(t, b)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, _, cancel := startHub(t)
	c := fakeClient(hub, "alice", 8)
	require.True(t, hub.Register(c))

	cancel()
	requireClosed(t, c)

	<-hub.stopped
	require.False(t, hub.Register(fakeClient(hub, "late", 1)))
	require.Equal(t, 0, hub.RoomSize("room"))
	// Broadcasts after stop are dropped, never block.
	hub.BroadcastDeletion("room", "m1")
}

func TestRateLimiter(t *testing.T) {
	req := require.New(t)
	rl := NewRateLimiter(3, time.Second)
	start := time.Unix(1_700_000_000, 0)

	req.True(rl.Allow(start))
	req.True(rl.Allow(start.Add(100 * time.Millisecond)))
	req.True(rl.Allow(start.Add(200 * time.Millisecond)))
	req.False(rl.Allow(start.Add(300 * time.Millisecond)))

	// The first event falls out of the window.
	req.True(rl.Allow(start.Add(1001 * time.Millisecond)))
	req.False(rl.Allow(start.Add(1002 * time.Millisecond)))
}
