// Package queue is a durable work queue with bounded retries over a
// domain.QueueStore.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetention   = 7 * 24 * time.Hour

	bookkeepingTimeout = 5 * time.Second
)

// Handler processes one message. A returned error counts as a failed attempt.
type Handler func(ctx context.Context, msg *domain.QueueMessage) error

type Handlers map[string]Handler

// Recorder receives per-message outcomes for metrics.
type Recorder interface {
	RecordQueueResult(msgType, result string)
	SetQueueDepth(depth float64)
}

type WorkQueue struct {
	store       domain.QueueStore
	name        string
	maxAttempts int
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*WorkQueue)

func WithMaxAttempts(n int) Option {
	return func(q *WorkQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(q *WorkQueue) { q.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(q *WorkQueue) { q.now = now }
}

func NewWorkQueue(store domain.QueueStore, name string, logger *zap.Logger, opts ...Option) *WorkQueue {
	q := &WorkQueue{
		store:       store,
		name:        name,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.With(zap.String("component", "work_queue"), zap.String("queue", name)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *WorkQueue) pendingKey() string { return q.name + ":pending" }

func (q *WorkQueue) recordPrefix(status domain.QueueStatus) string {
	return fmt.Sprintf("%s:%s:", q.name, status)
}

func (q *WorkQueue) recordKey(status domain.QueueStatus, id string) string {
	return q.recordPrefix(status) + id
}

// Enqueue appends a new pending message and returns its id.
func (q *WorkQueue) Enqueue(ctx context.Context, msgType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	msg := &domain.QueueMessage{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Status:    domain.QueuePending,
		CreatedAt: q.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	if err := q.store.Push(ctx, q.pendingKey(), data); err != nil {
		return "", &domain.QueueUnavailableError{Op: "enqueue", Err: err}
	}

	q.logger.Info("message enqueued", zap.String("message_id", msg.ID), zap.String("type", msgType))
	return msg.ID, nil
}

// ProcessNext takes one pending message and runs its handler. It reports
// false when the queue was empty. Handler failures are not returned; they
// are retried or recorded as failed.
func (q *WorkQueue) ProcessNext(ctx context.Context, handlers Handlers) (bool, error) {
	data, err := q.store.Pop(ctx, q.pendingKey())
	if errors.Is(err, domain.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, &domain.QueueUnavailableError{Op: "pop", Err: err}
	}

	// Once popped, the message only exists in the records written below, so
	// they must land even if ctx is cancelled while the handler runs.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	var msg domain.QueueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// nothing to retry; keep the raw body for inspection
		q.logger.Error("dropping undecodable queue entry", zap.Error(err), zap.ByteString("raw", data))
		body, _ := json.Marshal(string(data))
		poison := &domain.QueueMessage{
			ID:        uuid.NewString(),
			Type:      "undecodable",
			Payload:   body,
			CreatedAt: q.now().UTC(),
		}
		return true, q.markFailed(writeCtx, poison, err)
	}

	msg.Status = domain.QueueProcessing
	msg.Attempts++
	if err := q.put(writeCtx, domain.QueueProcessing, &msg); err != nil {
		// the message is already off the list; put it back before giving up
		msg.Attempts--
		msg.Status = domain.QueuePending
		if raw, mErr := json.Marshal(&msg); mErr == nil {
			_ = q.store.Push(writeCtx, q.pendingKey(), raw)
		}
		return false, &domain.QueueUnavailableError{Op: "mark processing", Err: err}
	}

	log := q.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("type", msg.Type),
		zap.Int("attempt", msg.Attempts),
	)

	handler, ok := handlers[msg.Type]
	if !ok {
		unknown := &domain.UnknownMessageTypeError{Type: msg.Type}
		log.Error("unknown message type", zap.Error(unknown))
		q.record(msg.Type, "unknown_type")
		return true, q.markFailed(writeCtx, &msg, unknown)
	}

	if herr := q.runHandler(ctx, handler, &msg); herr != nil {
		if msg.Attempts < q.maxAttempts {
			log.Warn("message failed, will retry", zap.Error(herr))
			q.record(msg.Type, "retried")
			return true, q.requeue(writeCtx, &msg, herr)
		}
		log.Error("message failed permanently", zap.Error(herr))
		q.record(msg.Type, "failed")
		return true, q.markFailed(writeCtx, &msg, herr)
	}

	now := q.now().UTC()
	msg.Status = domain.QueueCompleted
	msg.ProcessedAt = &now
	msg.Error = ""
	if err := q.put(writeCtx, domain.QueueCompleted, &msg); err != nil {
		return true, &domain.QueueUnavailableError{Op: "mark completed", Err: err}
	}
	if err := q.store.Delete(writeCtx, q.recordKey(domain.QueueProcessing, msg.ID)); err != nil {
		return true, &domain.QueueUnavailableError{Op: "clear processing", Err: err}
	}

	log.Info("message completed")
	q.record(msg.Type, "completed")
	return true, nil
}

func (q *WorkQueue) runHandler(ctx context.Context, h Handler, msg *domain.QueueMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}

// requeue pushes the message to the tail of the pending list. Ordering
// relative to newer messages is not preserved.
func (q *WorkQueue) requeue(ctx context.Context, msg *domain.QueueMessage, cause error) error {
	msg.Status = domain.QueuePending
	msg.Error = cause.Error()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.store.Push(ctx, q.pendingKey(), data); err != nil {
		return &domain.QueueUnavailableError{Op: "requeue", Err: err}
	}
	if err := q.store.Delete(ctx, q.recordKey(domain.QueueProcessing, msg.ID)); err != nil {
		return &domain.QueueUnavailableError{Op: "clear processing", Err: err}
	}
	return nil
}

func (q *WorkQueue) markFailed(ctx context.Context, msg *domain.QueueMessage, cause error) error {
	now := q.now().UTC()
	msg.Status = domain.QueueFailed
	msg.Error = cause.Error()
	msg.ProcessedAt = &now
	if err := q.put(ctx, domain.QueueFailed, msg); err != nil {
		return &domain.QueueUnavailableError{Op: "mark failed", Err: err}
	}
	if err := q.store.Delete(ctx, q.recordKey(domain.QueueProcessing, msg.ID)); err != nil {
		return &domain.QueueUnavailableError{Op: "clear processing", Err: err}
	}
	return nil
}

func (q *WorkQueue) put(ctx context.Context, status domain.QueueStatus, msg *domain.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.store.Set(ctx, q.recordKey(status, msg.ID), data)
}

// Cleanup removes completed and failed records processed before
// now-retention. Records without ProcessedAt are kept.
func (q *WorkQueue) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := q.now().Add(-retention)
	purged := 0

	for _, status := range []domain.QueueStatus{domain.QueueCompleted, domain.QueueFailed} {
		keys, err := q.store.Keys(ctx, q.recordPrefix(status))
		if err != nil {
			return purged, &domain.QueueUnavailableError{Op: "scan " + string(status), Err: err}
		}

		var stale []string
		for _, key := range keys {
			data, err := q.store.Get(ctx, key)
			if errors.Is(err, domain.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return purged, &domain.QueueUnavailableError{Op: "read record", Err: err}
			}
			var msg domain.QueueMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				q.logger.Warn("skipping undecodable record", zap.String("key", key), zap.Error(err))
				continue
			}
			if msg.ProcessedAt != nil && msg.ProcessedAt.Before(cutoff) {
				stale = append(stale, key)
			}
		}

		if err := q.store.Delete(ctx, stale...); err != nil {
			return purged, &domain.QueueUnavailableError{Op: "delete records", Err: err}
		}
		purged += len(stale)
	}

	q.logger.Info("queue cleanup finished", zap.Int("purged", purged), zap.Time("cutoff", cutoff))
	return purged, nil
}

// Lookup returns the keyed record of a message that has been dequeued at
// least once. Messages still waiting in the list yield ErrRecordNotFound.
func (q *WorkQueue) Lookup(ctx context.Context, id string) (*domain.QueueMessage, error) {
	if strings.ContainsAny(id, ":*") {
		return nil, domain.ErrRecordNotFound
	}
	for _, status := range []domain.QueueStatus{domain.QueueProcessing, domain.QueueCompleted, domain.QueueFailed} {
		data, err := q.store.Get(ctx, q.recordKey(status, id))
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, &domain.QueueUnavailableError{Op: "lookup", Err: err}
		}
		var msg domain.QueueMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	}
	return nil, domain.ErrRecordNotFound
}

// Depth returns the number of pending messages and updates the gauge.
func (q *WorkQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.store.Len(ctx, q.pendingKey())
	if err != nil {
		return 0, &domain.QueueUnavailableError{Op: "depth", Err: err}
	}
	if q.recorder != nil {
		q.recorder.SetQueueDepth(float64(n))
	}
	return n, nil
}

func (q *WorkQueue) record(msgType, result string) {
	if q.recorder == nil {
		return
	}
	q.recorder.RecordQueueResult(msgType, result)
}
