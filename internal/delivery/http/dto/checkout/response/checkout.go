package response

import (
	"time"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
)

type ErrorResponse struct {
	Error  string   `json:"error"`
	Reason string   `json:"reason,omitempty"`
	Field  string   `json:"field,omitempty"`
	Detail []string `json:"detail,omitempty"`
}

type InitiateResponse struct {
	OrderID     string                       `json:"order_id"`
	BuyOrder    string                       `json:"buy_order"`
	Token       string                       `json:"token"`
	URL         string                       `json:"url"`
	Transaction *domain.ValidatedTransaction `json:"transaction"`
	Envelope    *security.SealedPayload      `json:"envelope"`
}

type OutcomeResponse struct {
	Outcome  string `json:"outcome"`
	OrderID  string `json:"order_id,omitempty"`
	BuyOrder string `json:"buy_order,omitempty"`
	Status   string `json:"status,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
}

type HistoryEntry struct {
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type HistoryResponse struct {
	OrderID string         `json:"order_id"`
	Entries []HistoryEntry `json:"entries"`
}

type RefundResponse struct {
	OrderID           string  `json:"order_id"`
	Type              string  `json:"type"`
	AuthorizationCode string  `json:"authorization_code,omitempty"`
	NullifiedAmount   float64 `json:"nullified_amount,omitempty"`
	Balance           float64 `json:"balance,omitempty"`
	ResponseCode      int     `json:"response_code"`
}

type CaptureResponse struct {
	OrderID           string `json:"order_id"`
	AuthorizationCode string `json:"authorization_code"`
	CapturedAmount    int64  `json:"captured_amount"`
	ResponseCode      int    `json:"response_code"`
}

type QueueRunResponse struct {
	Processed int `json:"processed"`
}

type CleanupResponse struct {
	Purged int `json:"purged"`
}

type EnqueueResponse struct {
	MessageID string `json:"message_id"`
}

type QueueMessageResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type QueueDepthResponse struct {
	Pending int64 `json:"pending"`
}

type SecurityEvent struct {
	Kind      string         `json:"kind"`
	Reason    string         `json:"reason"`
	OrderRef  string         `json:"order_ref,omitempty"`
	ClientIP  string         `json:"client_ip,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
