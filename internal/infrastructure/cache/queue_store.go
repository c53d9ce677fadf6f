package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const scanBatch = 100

// QueueStore implements domain.QueueStore on a Redis list and plain keys.
// Values are pushed on the left and popped from the right.
type QueueStore struct {
	rdb redis.UniversalClient
}

func NewQueueStore(rdb redis.UniversalClient) *QueueStore {
	return &QueueStore{rdb: rdb}
}

func (s *QueueStore) Push(ctx context.Context, list string, value []byte) error {
	return s.rdb.LPush(ctx, list, value).Err()
}

func (s *QueueStore) Pop(ctx context.Context, list string) ([]byte, error) {
	v, err := s.rdb.RPop(ctx, list).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrQueueEmpty
	}
	return v, err
}

func (s *QueueStore) Len(ctx context.Context, list string) (int64, error) {
	return s.rdb.LLen(ctx, list).Result()
}

func (s *QueueStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRecordNotFound
	}
	return v, err
}

func (s *QueueStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *QueueStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Keys walks the keyspace with SCAN so large record sets never block Redis.
func (s *QueueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *QueueStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
