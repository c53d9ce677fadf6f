package domain

import (
	"context"
	"time"
)

type Message struct {
	Key   []byte
	Value []byte
}

type PublisherPort interface {
	Publish(ctx context.Context, topic string, msgs ...Message) error
}

// OrderEvent is published whenever an order changes state or is settled.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	BuyOrder  string    `json:"buy_order"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
