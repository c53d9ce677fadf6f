package orderdto

import (
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
)

type InitiateOrderOutput struct {
	Order       *domain.Order
	Transaction *domain.ValidatedTransaction
	Envelope    *security.SealedPayload
	Token       string
	PaymentURL  string
}

type ConfirmOrderOutput struct {
	Outcome domain.PaymentOutcome
	Order   *domain.Order
	// Replayed is set when the token was already confirmed and the answer
	// comes from stored state.
	Replayed bool
}

type RefundOrderOutput struct {
	Order  *domain.Order
	Refund *domain.GatewayRefund
}

type CaptureOrderOutput struct {
	Order   *domain.Order
	Capture *domain.GatewayCapture
}
