package service

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanbandash/internal/kanban"
)

var errStaleSnapshot = errors.New("snapshot generation moved")

// SnapshotCache keeps the last built board snapshot per user in Redis.
// Any Redis failure degrades to a cache miss.
//
// Every write bumps a per-user generation. A snapshot is only stored when
// the generation it was built under is still current, so a slow build never
// overwrites a later change.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl < 0 {
		ttl = 0
	}
	return &SnapshotCache{redis: client, ttl: ttl}
}

func (c *SnapshotCache) Get(ctx context.Context, userID string) (*kanban.NormalizedState, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, BoardKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var state kanban.NormalizedState
	if err := sonic.Unmarshal(data, &state); err != nil {
		_ = c.redis.Del(ctx, BoardKey(userID)).Err()
		return nil, false
	}
	return &state, true
}

// Generation returns the current write generation of userID's board. Take
// it before reading the rows a snapshot is built from. It is -1 when Redis
// is unavailable, which makes the following Set a no-op.
func (c *SnapshotCache) Generation(ctx context.Context, userID string) int64 {
	if c == nil || c.redis == nil {
		return -1
	}
	gen, err := c.redis.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		return -1
	}
	return gen
}

// Set stores state if no write happened since gen was read.
func (c *SnapshotCache) Set(ctx context.Context, userID string, gen int64, state *kanban.NormalizedState) {
	if c == nil || c.redis == nil || c.ttl == 0 || gen < 0 {
		return
	}
	data, err := sonic.Marshal(state)
	if err != nil {
		return
	}
	genKey := generationKey(userID)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleSnapshot
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, BoardKey(userID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

// Evict drops the snapshot and moves the generation on.
func (c *SnapshotCache) Evict(ctx context.Context, userID string) {
	if c == nil || c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey(userID))
		p.Del(ctx, BoardKey(userID))
		return nil
	})
}

// BoardKey is the logical resource name of a user's board, shared with the
// client cache.
func BoardKey(userID string) string {
	return "board:" + userID
}

func generationKey(userID string) string {
	return BoardKey(userID) + ":gen"
}
