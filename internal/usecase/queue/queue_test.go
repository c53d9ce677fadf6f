package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/cache"
)

type fixture struct {
	mr  *miniredis.Miniredis
	q   *WorkQueue
	now *time.Time
	rec *stubRecorder
}

type stubRecorder struct {
	mu      sync.Mutex
	results map[string]int
	depth   float64
}

func (s *stubRecorder) RecordQueueResult(msgType, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[msgType+"/"+result]++
}

func (s *stubRecorder) SetQueueDepth(d float64) { s.depth = d }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{mr: mr, now: &now, rec: &stubRecorder{results: map[string]int{}}}
	f.q = NewWorkQueue(cache.NewQueueStore(rdb), "test:queue", zaptest.NewLogger(t),
		WithClock(func() time.Time { return *f.now }),
		WithRecorder(f.rec),
	)
	return f
}

func TestEnqueueThenProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.q.Enqueue(ctx, "email", map[string]string{"to": "a@example.com"})
	require.NoError(t, err)

	var got *domain.QueueMessage
	processed, err := f.q.ProcessNext(ctx, Handlers{
		"email": func(_ context.Context, msg *domain.QueueMessage) error {
			got = msg
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, processed)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(got.Payload))

	rec, err := f.q.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCompleted, rec.Status)
	require.NotNil(t, rec.ProcessedAt)
	assert.True(t, rec.ProcessedAt.Equal(*f.now))
	assert.False(t, f.mr.Exists("test:queue:processing:"+id))

	processed, err = f.q.ProcessNext(ctx, Handlers{})
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 1, f.rec.results["email/completed"])
}

func TestAlwaysFailingHandlerEndsFailedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.q.Enqueue(ctx, "email", struct{}{})
	require.NoError(t, err)

	calls := 0
	handlers := Handlers{"email": func(context.Context, *domain.QueueMessage) error {
		calls++
		return errors.New("smtp down")
	}}

	for i := 0; i < DefaultMaxAttempts; i++ {
		processed, err := f.q.ProcessNext(ctx, handlers)
		require.NoError(t, err)
		require.True(t, processed)
	}

	processed, err := f.q.ProcessNext(ctx, handlers)
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, DefaultMaxAttempts, calls)

	rec, err := f.q.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueFailed, rec.Status)
	assert.Equal(t, DefaultMaxAttempts, rec.Attempts)
	assert.Equal(t, "smtp down", rec.Error)
	assert.NotNil(t, rec.ProcessedAt)
	assert.Equal(t, 2, f.rec.results["email/retried"])
	assert.Equal(t, 1, f.rec.results["email/failed"])
}

func TestCancelDuringHandlerRequeuesMessage(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := f.q.Enqueue(ctx, "email", map[string]string{"to": "a@example.com"})
	require.NoError(t, err)

	processed, err := f.q.ProcessNext(ctx, Handlers{
		"email": func(hctx context.Context, _ *domain.QueueMessage) error {
			cancel()
			return hctx.Err()
		},
	})
	require.NoError(t, err)
	assert.True(t, processed)

	bg := context.Background()
	depth, err := f.q.Depth(bg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	_, err = f.q.Lookup(bg, id)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound, "processing record is cleared")

	var attempts int
	processed, err = f.q.ProcessNext(bg, Handlers{
		"email": func(_ context.Context, msg *domain.QueueMessage) error {
			attempts = msg.Attempts
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 2, attempts)
}

func TestRetryGoesToTail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.q.Enqueue(ctx, "job", "first")
	require.NoError(t, err)
	second, err := f.q.Enqueue(ctx, "job", "second")
	require.NoError(t, err)

	var order []string
	failedOnce := false
	handlers := Handlers{"job": func(_ context.Context, msg *domain.QueueMessage) error {
		order = append(order, msg.ID)
		if msg.ID == first && !failedOnce {
			failedOnce = true
			return errors.New("transient")
		}
		return nil
	}}

	for i := 0; i < 3; i++ {
		_, err := f.q.ProcessNext(ctx, handlers)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{first, second, first}, order)

	rec, err := f.q.Lookup(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, domain.QueueCompleted, rec.Status)
}

func TestUnknownMessageTypeIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.q.Enqueue(ctx, "mystery", 1)
	require.NoError(t, err)

	processed, err := f.q.ProcessNext(ctx, Handlers{})
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = f.q.ProcessNext(ctx, Handlers{})
	require.NoError(t, err)
	assert.False(t, processed)

	rec, err := f.q.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Contains(t, rec.Error, `"mystery"`)
}

func TestHandlerPanicCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.q.Enqueue(ctx, "job", nil)
	require.NoError(t, err)

	processed, err := f.q.ProcessNext(ctx, Handlers{"job": func(context.Context, *domain.QueueMessage) error {
		panic("boom")
	}})
	require.NoError(t, err)
	assert.True(t, processed)

	depth, err := f.q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
	assert.Equal(t, float64(1), f.rec.depth)

	_, err = f.q.Lookup(ctx, id)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound, "requeued message has no keyed record")
}

func TestUndecodableEntryIsRecordedFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.mr.Lpush("test:queue:pending", "{not json")
	require.NoError(t, err)

	processed, err := f.q.ProcessNext(ctx, Handlers{})
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Len(t, keysWithPrefix(f.mr, "test:queue:failed:"), 1)
}

func TestCleanupRetention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ok := Handlers{"job": func(context.Context, *domain.QueueMessage) error { return nil }}

	start := *f.now

	*f.now = start.Add(-8 * 24 * time.Hour)
	old, err := f.q.Enqueue(ctx, "job", "old")
	require.NoError(t, err)
	_, err = f.q.ProcessNext(ctx, ok)
	require.NoError(t, err)

	*f.now = start.Add(-6 * 24 * time.Hour)
	recent, err := f.q.Enqueue(ctx, "job", "recent")
	require.NoError(t, err)
	_, err = f.q.ProcessNext(ctx, ok)
	require.NoError(t, err)

	*f.now = start.Add(-9 * 24 * time.Hour)
	oldFailed, err := f.q.Enqueue(ctx, "nobody-handles-this", nil)
	require.NoError(t, err)
	_, err = f.q.ProcessNext(ctx, ok)
	require.NoError(t, err)

	// a record without processedAt is never purged
	legacy, _ := json.Marshal(domain.QueueMessage{ID: "legacy", Type: "job", Status: domain.QueueCompleted})
	f.mr.Set("test:queue:completed:legacy", string(legacy))

	*f.now = start
	purged, err := f.q.Cleanup(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	_, err = f.q.Lookup(ctx, old)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = f.q.Lookup(ctx, oldFailed)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = f.q.Lookup(ctx, recent)
	assert.NoError(t, err)
	_, err = f.q.Lookup(ctx, "legacy")
	assert.NoError(t, err)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mr.Close()

	_, err := f.q.Enqueue(ctx, "job", nil)
	var qerr *domain.QueueUnavailableError
	assert.True(t, errors.As(err, &qerr))

	_, err = f.q.ProcessNext(ctx, Handlers{})
	assert.True(t, errors.As(err, &qerr))
}

func TestConcurrentConsumersProcessEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const total = 40
	for i := 0; i < total; i++ {
		_, err := f.q.Enqueue(ctx, "job", i)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := map[string]int{}
	handlers := Handlers{"job": func(_ context.Context, msg *domain.QueueMessage) error {
		mu.Lock()
		seen[msg.ID]++
		mu.Unlock()
		return nil
	}}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				processed, err := f.q.ProcessNext(ctx, handlers)
				if err != nil || !processed {
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func keysWithPrefix(mr *miniredis.Miniredis, prefix string) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
