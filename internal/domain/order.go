package domain

import "time"

type OrderStatus string

const (
	StatusInitiated OrderStatus = "INITIATED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusFailed    OrderStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Order is a single purchase attempt tied to one gateway transaction.
// BuyOrder is the external correlation key and never changes after creation.
type Order struct {
	ID                  string
	UserID              *string
	TotalAmount         int64
	Status              OrderStatus
	BuyOrder            string
	SessionID           string
	TransactionToken    *string
	TransactionResponse map[string]any
	Metadata            OrderMetadata
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrderMetadata is written once at creation and read by settlement.
type OrderMetadata struct {
	Email     string   `json:"email"`
	CourseIDs []string `json:"course_ids"`
}

func (m OrderMetadata) ToMap() map[string]any {
	ids := make([]any, 0, len(m.CourseIDs))
	for _, id := range m.CourseIDs {
		ids = append(ids, id)
	}
	return map[string]any{
		"email":      m.Email,
		"course_ids": ids,
	}
}

func OrderMetadataFromMap(m map[string]any) OrderMetadata {
	var md OrderMetadata
	if email, ok := m["email"].(string); ok {
		md.Email = email
	}
	switch ids := m["course_ids"].(type) {
	case []any:
		for _, id := range ids {
			if s, ok := id.(string); ok {
				md.CourseIDs = append(md.CourseIDs, s)
			}
		}
	case []string:
		md.CourseIDs = append(md.CourseIDs, ids...)
	}
	return md
}

// TransactionHistoryEntry is an append-only audit record. Status is a free
// label and is not restricted to OrderStatus values.
type TransactionHistoryEntry struct {
	ID        uint
	OrderID   string
	Status    string
	Data      map[string]any
	CreatedAt time.Time
}

// History labels beyond the order statuses.
const (
	HistoryQueuedForProcessing = "QUEUED_FOR_PROCESSING"
	HistoryQueueEnqueueFailed  = "QUEUE_ENQUEUE_FAILED"
	HistoryAttachmentsMissing  = "ATTACHMENTS_MISSING"
	HistoryReceiptSent         = "RECEIPT_SENT"
	HistoryConfirmationSent    = "CONFIRMATION_SENT"
	HistoryNotificationFailed  = "NOTIFICATION_FAILED"
	HistorySettled             = "SETTLED"
	HistoryRefunded            = "REFUNDED"
	HistoryCaptured            = "CAPTURED"
)

// PaymentOutcome is what the purchaser is shown after the gateway returns.
type PaymentOutcome string

const (
	OutcomeSuccess    PaymentOutcome = "success"
	OutcomeFailure    PaymentOutcome = "failure"
	OutcomeProcessing PaymentOutcome = "processing"
)
