package orderdto

import (
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
)

type InitiateOrderInput struct {
	Amount    int64
	Email     string
	CourseIDs []string
	UserID    *string
	ReturnURL string
}

// ConfirmOrderInput carries the gateway token and, when the purchase was
// started by this service, the transaction handed out at initiation, either
// sealed or in the clear. Envelope wins when both are set.
type ConfirmOrderInput struct {
	Token       string
	Transaction *domain.ValidatedTransaction
	Envelope    *security.SealedPayload
}

// AbandonOrderInput is what the gateway relays when the purchaser aborts
// (Token set) or the payment form times out (BuyOrder and SessionID only).
type AbandonOrderInput struct {
	Token     string
	BuyOrder  string
	SessionID string
}

// RefundOrderInput refunds Amount, or the whole order when Amount is zero.
type RefundOrderInput struct {
	OrderID string
	Amount  int64
}

type CaptureOrderInput struct {
	OrderID string
	Amount  int64
}
