package domain

import "context"

type OrderRepository interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	// Transition moves an INITIATED order to newStatus. applied is false when
	// the order was already terminal; in that case nothing is written.
	Transition(ctx context.Context, buyOrder string, newStatus OrderStatus, gatewayPayload map[string]any, token string) (order *Order, applied bool, err error)
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByBuyOrder(ctx context.Context, buyOrder string) (*Order, error)
	FindByToken(ctx context.Context, token string) (*Order, error)
	AppendHistory(ctx context.Context, entry *TransactionHistoryEntry) error
	History(ctx context.Context, orderID string) ([]*TransactionHistoryEntry, error)
}

type CourseFileRepository interface {
	FindByCourseIDs(ctx context.Context, courseIDs []string) ([]*CourseFile, error)
}

type SecurityEventRepository interface {
	LogSecurityEvent(ctx context.Context, event *SecurityEvent) error
}
