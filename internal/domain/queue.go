package domain

import (
	"context"
	"encoding/json"
	"time"
)

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

const MessageTypeSettlement = "settlement"

// QueueMessage is the unit of work persisted in the queue store.
type QueueMessage struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      QueueStatus     `json:"status"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// QueueStore is the durable list plus keyed records backing the work queue.
// Pop must be atomic across concurrent callers and returns ErrQueueEmpty
// when there is nothing to take.
type QueueStore interface {
	Push(ctx context.Context, list string, value []byte) error
	Pop(ctx context.Context, list string) ([]byte, error)
	Len(ctx context.Context, list string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// SettlementJob is the payload of a settlement queue message.
type SettlementJob struct {
	OrderID        string         `json:"order_id"`
	BuyOrder       string         `json:"buy_order"`
	Email          string         `json:"email"`
	GatewayPayload map[string]any `json:"gateway_payload"`
}
