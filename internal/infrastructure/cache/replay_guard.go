package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "settlement:replay:"

// ReplayGuard records identifiers with SET NX and lets Redis expire them, so
// every instance sharing the Redis sees the same set.
type ReplayGuard struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewReplayGuard(rdb redis.UniversalClient, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{rdb: rdb, ttl: ttl}
}

func (g *ReplayGuard) CheckReplay(ctx context.Context, id string) (bool, error) {
	created, err := g.rdb.SetNX(ctx, replayKeyPrefix+id, time.Now().UnixMilli(), g.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

func (g *ReplayGuard) Release(ctx context.Context, id string) error {
	return g.rdb.Del(ctx, replayKeyPrefix+id).Err()
}

// Sweep is a no-op; Redis expires entries itself.
func (g *ReplayGuard) Sweep(context.Context) (int, error) {
	return 0, nil
}
