package cache

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := InitRedis(config.Redis{Addr: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	mr.Close()
	_, err = InitRedis(config.Redis{Addr: mr.Addr()}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestQueueStoreFIFO(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	s := NewQueueStore(rdb)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Push(ctx, "q", []byte(fmt.Sprintf("m%d", i))))
	}
	n, err := s.Len(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for i := 1; i <= 3; i++ {
		v, err := s.Pop(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), string(v))
	}

	_, err = s.Pop(ctx, "q")
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestQueueStoreRecords(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	s := NewQueueStore(rdb)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("q:completed:%03d", i), []byte("{}")))
	}
	require.NoError(t, s.Set(ctx, "q:failed:x", []byte(`{"id":"x"}`)))

	keys, err := s.Keys(ctx, "q:completed:")
	require.NoError(t, err)
	assert.Len(t, keys, 250)

	v, err := s.Get(ctx, "q:failed:x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x"}`, string(v))

	require.NoError(t, s.Delete(ctx, "q:failed:x", "q:completed:000"))
	require.NoError(t, s.Delete(ctx))

	keys, err = s.Keys(ctx, "q:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Len(t, keys, 249)
	assert.Equal(t, "q:completed:001", keys[0])
}

func TestReplayGuard(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	g := NewReplayGuard(rdb, 24*time.Hour)

	replayed, err := g.CheckReplay(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	replayed, err = g.CheckReplay(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, replayed)

	other := NewReplayGuard(rdb, 24*time.Hour)
	replayed, err = other.CheckReplay(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, replayed, "guards sharing a store share the set")

	mr.FastForward(25 * time.Hour)
	replayed, err = g.CheckReplay(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	removed, err := g.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReplayGuardRelease(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	g := NewReplayGuard(rdb, time.Hour)

	_, err := g.CheckReplay(ctx, "token-2")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, "token-2"))

	replayed, err := g.CheckReplay(ctx, "token-2")
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestReplayGuardStoreDown(t *testing.T) {
	mr, rdb := newTestClient(t)
	mr.Close()

	_, err := NewReplayGuard(rdb, time.Hour).CheckReplay(context.Background(), "x")
	assert.Error(t, err)
}
