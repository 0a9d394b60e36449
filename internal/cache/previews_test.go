package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"chatsync/internal/chat"
	"chatsync/internal/user"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisPreviews_GenerationGuardsStaleStore(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := NewRedisPreviews(newTestRedis(t), time.Minute)
	userID := ulid.Make().String()

	views := []chat.ChatView{{
		ID:           "c1",
		Participants: []user.Summary{{ID: userID, DisplayName: "Alice"}},
		Messages:     []chat.Message{},
	}}

	_, gen, ok, err := c.Lookup(ctx, userID)
	req.NoError(err)
	req.False(ok)

	// A write lands between the read and the store.
	req.NoError(c.Invalidate(ctx, userID))
	req.NoError(c.Store(ctx, userID, gen, views))

	_, gen, ok, err = c.Lookup(ctx, userID)
	req.NoError(err)
	req.False(ok, "entry read before invalidation must not be served")

	req.NoError(c.Store(ctx, userID, gen, views))
	got, _, ok, err := c.Lookup(ctx, userID)
	req.NoError(err)
	req.True(ok)
	req.Equal("c1", got[0].ID)
	req.Equal("Alice", got[0].Participants[0].DisplayName)
}
