// Package cache holds the Redis-backed chat preview cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatsync/internal/chat"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chatsync:previews:"

// RedisPreviews stores each user's chat list next to a generation counter.
// Invalidate bumps the counter; an entry tagged with an older generation is a miss.
type RedisPreviews struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ chat.PreviewCache = (*RedisPreviews)(nil)

type entry struct {
	Gen   int64           `json:"gen"`
	Views []chat.ChatView `json:"views"`
}

func NewRedisPreviews(rdb *redis.Client, ttl time.Duration) *RedisPreviews {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisPreviews{rdb: rdb, ttl: ttl}
}

func genKey(userID string) string  { return keyPrefix + userID + ":gen" }
func dataKey(userID string) string { return keyPrefix + userID + ":data" }

func (c *RedisPreviews) Lookup(ctx context.Context, userID string) ([]chat.ChatView, int64, bool, error) {
	pipe := c.rdb.Pipeline()
	genCmd := pipe.Get(ctx, genKey(userID))
	dataCmd := pipe.Get(ctx, dataKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("previews lookup: %w", err)
	}

	gen, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("previews generation: %w", err)
	}

	raw, err := dataCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("previews data: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Treat a corrupt entry as a miss; the next Store overwrites it.
		return nil, gen, false, nil
	}
	if e.Gen != gen {
		return nil, gen, false, nil
	}
	if e.Views == nil {
		e.Views = []chat.ChatView{}
	}
	return e.Views, gen, true, nil
}

func (c *RedisPreviews) Store(ctx context.Context, userID string, gen int64, views []chat.ChatView) error {
	raw, err := json.Marshal(entry{Gen: gen, Views: views})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, dataKey(userID), raw, c.ttl).Err()
}

func (c *RedisPreviews) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, id := range userIDs {
		pipe.Incr(ctx, genKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}
