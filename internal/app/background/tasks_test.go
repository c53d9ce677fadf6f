package background

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
)

type countingUsecase struct {
	runs     atomic.Int32
	cleanups atomic.Int32
	batch    atomic.Int32
}

func (u *countingUsecase) InitiateOrder(context.Context, *orderdto.InitiateOrderInput, domain.RequestContext) (*orderdto.InitiateOrderOutput, error) {
	return nil, nil
}

func (u *countingUsecase) ConfirmOrder(context.Context, *orderdto.ConfirmOrderInput, domain.RequestContext) (*orderdto.ConfirmOrderOutput, error) {
	return nil, nil
}

func (u *countingUsecase) AbandonOrder(context.Context, *orderdto.AbandonOrderInput) (*orderdto.ConfirmOrderOutput, error) {
	return nil, nil
}

func (u *countingUsecase) GetOrderHistory(context.Context, string) ([]*domain.TransactionHistoryEntry, error) {
	return nil, nil
}

func (u *countingUsecase) EnqueueSettlement(context.Context, string) (string, error) { return "", nil }

func (u *countingUsecase) RunQueueOnce(_ context.Context, batch int) (int, error) {
	u.batch.Store(int32(batch))
	u.runs.Add(1)
	return 0, nil
}

func (u *countingUsecase) RunCleanup(context.Context) (int, error) {
	u.cleanups.Add(1)
	return 0, nil
}

func (u *countingUsecase) RefundOrder(context.Context, *orderdto.RefundOrderInput) (*orderdto.RefundOrderOutput, error) {
	return nil, nil
}

func (u *countingUsecase) CaptureOrder(context.Context, *orderdto.CaptureOrderInput) (*orderdto.CaptureOrderOutput, error) {
	return nil, nil
}

type countingReplay struct{ sweeps atomic.Int32 }

func (r *countingReplay) CheckReplay(context.Context, string) (bool, error) { return false, nil }

func (r *countingReplay) Release(context.Context, string) error { return nil }

func (r *countingReplay) Sweep(context.Context) (int, error) {
	r.sweeps.Add(1)
	return 1, nil
}

type countingDepth struct{ calls atomic.Int32 }

func (d *countingDepth) Depth(context.Context) (int64, error) {
	d.calls.Add(1)
	return 0, nil
}

type sweepRecorder struct{ removed atomic.Int32 }

func (s *sweepRecorder) RecordReplaySweep(n int) { s.removed.Add(int32(n)) }

func TestStartAllRunsEveryTaskUntilCancelled(t *testing.T) {
	uc := &countingUsecase{}
	replay := &countingReplay{}
	depth := &countingDepth{}
	rec := &sweepRecorder{}

	bt := NewBackgroundTasks(uc, replay, depth, rec, Intervals{
		QueuePoll:    5 * time.Millisecond,
		BatchSize:    10,
		Cleanup:      5 * time.Millisecond,
		ReplaySweep:  5 * time.Millisecond,
		DepthRefresh: 5 * time.Millisecond,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return uc.runs.Load() > 0 && uc.cleanups.Load() > 0 && replay.sweeps.Load() > 0 && depth.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	bt.Wait()

	assert.EqualValues(t, 10, uc.batch.Load())
	assert.Equal(t, replay.sweeps.Load(), rec.removed.Load())
}

func TestDisabledTaskDoesNotRun(t *testing.T) {
	uc := &countingUsecase{}
	bt := NewBackgroundTasks(uc, &countingReplay{}, &countingDepth{}, nil, Intervals{
		QueuePoll: 5 * time.Millisecond,
		BatchSize: 1,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)
	assert.Eventually(t, func() bool { return uc.runs.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	bt.Wait()

	assert.Zero(t, uc.cleanups.Load())
}
