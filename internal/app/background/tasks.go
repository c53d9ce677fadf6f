package background

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	usecase "github.com/LavaJover/shvark-settlement-service/internal/usecase/order"
)

type DepthReporter interface {
	Depth(ctx context.Context) (int64, error)
}

type SweepRecorder interface {
	RecordReplaySweep(removed int)
}

type Intervals struct {
	QueuePoll    time.Duration
	BatchSize    int
	Cleanup      time.Duration
	ReplaySweep  time.Duration
	DepthRefresh time.Duration
}

type BackgroundTasks struct {
	OrderUsecase usecase.OrderUsecase
	Replay       domain.ReplayGuard
	Queue        DepthReporter
	Recorder     SweepRecorder
	Intervals    Intervals
	logger       *zap.Logger
	wg           sync.WaitGroup
}

func NewBackgroundTasks(orderUC usecase.OrderUsecase, replay domain.ReplayGuard, queue DepthReporter, recorder SweepRecorder, intervals Intervals, logger *zap.Logger) *BackgroundTasks {
	return &BackgroundTasks{
		OrderUsecase: orderUC,
		Replay:       replay,
		Queue:        queue,
		Recorder:     recorder,
		Intervals:    intervals,
		logger:       logger.With(zap.String("component", "background")),
	}
}

// StartAll launches every periodic task. They stop when ctx is cancelled;
// Wait blocks until they have.
func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	bt.every(ctx, "queue_poll", bt.Intervals.QueuePoll, bt.pollQueue)
	bt.every(ctx, "queue_cleanup", bt.Intervals.Cleanup, bt.cleanup)
	bt.every(ctx, "replay_sweep", bt.Intervals.ReplaySweep, bt.sweepReplay)
	bt.every(ctx, "queue_depth", bt.Intervals.DepthRefresh, bt.refreshDepth)
}

func (bt *BackgroundTasks) Wait() {
	bt.wg.Wait()
}

func (bt *BackgroundTasks) every(ctx context.Context, name string, interval time.Duration, task func(context.Context)) {
	if interval <= 0 {
		bt.logger.Info("task disabled", zap.String("task", name))
		return
	}
	bt.wg.Add(1)
	go func() {
		defer bt.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

func (bt *BackgroundTasks) pollQueue(ctx context.Context) {
	if _, err := bt.OrderUsecase.RunQueueOnce(ctx, bt.Intervals.BatchSize); err != nil && ctx.Err() == nil {
		bt.logger.Error("queue poll failed", zap.Error(err))
	}
}

func (bt *BackgroundTasks) cleanup(ctx context.Context) {
	if _, err := bt.OrderUsecase.RunCleanup(ctx); err != nil && ctx.Err() == nil {
		bt.logger.Error("queue cleanup failed", zap.Error(err))
	}
}

func (bt *BackgroundTasks) sweepReplay(ctx context.Context) {
	removed, err := bt.Replay.Sweep(ctx)
	if err != nil {
		bt.logger.Error("replay sweep failed", zap.Error(err))
		return
	}
	if bt.Recorder != nil {
		bt.Recorder.RecordReplaySweep(removed)
	}
	if removed > 0 {
		bt.logger.Info("replay entries expired", zap.Int("removed", removed))
	}
}

func (bt *BackgroundTasks) refreshDepth(ctx context.Context) {
	if _, err := bt.Queue.Depth(ctx); err != nil && ctx.Err() == nil {
		bt.logger.Warn("queue depth unavailable", zap.Error(err))
	}
}
