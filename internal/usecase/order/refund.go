package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
)

// RefundOrder reverses all or part of a completed payment. The order keeps
// its COMPLETED status; the refund is recorded in history.
func (uc *DefaultOrderUsecase) RefundOrder(ctx context.Context, input *orderdto.RefundOrderInput) (*orderdto.RefundOrderOutput, error) {
	order, token, err := uc.settledOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	refunded, err := uc.refundedAmount(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	remaining := order.TotalAmount - refunded
	if remaining <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "order is fully refunded"}
	}

	// Zero asks for whatever is left.
	amount := input.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount < 0 || amount > remaining {
		return nil, &domain.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be between 1 and %d", remaining),
		}
	}

	refund, err := uc.Gateway.Refund(ctx, token, amount)
	if err != nil {
		uc.recordErrorMetrics("gateway")
		return nil, err
	}

	data, err := toPayload(refund)
	if err != nil {
		return nil, err
	}
	data["requested_amount"] = amount
	// The gateway has already moved the money.
	uc.appendHistory(context.WithoutCancel(ctx), order.ID, domain.HistoryRefunded, data)
	uc.publishOrderEvent(order, "order.refunded")

	uc.logger.Info("order refunded",
		zap.String("buy_order", order.BuyOrder),
		zap.Int64("amount", amount),
		zap.String("type", refund.Type),
	)
	return &orderdto.RefundOrderOutput{Order: order, Refund: refund}, nil
}

// CaptureOrder captures a deferred authorization on a completed order.
func (uc *DefaultOrderUsecase) CaptureOrder(ctx context.Context, input *orderdto.CaptureOrderInput) (*orderdto.CaptureOrderOutput, error) {
	order, token, err := uc.settledOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	authCode, _ := order.TransactionResponse["authorization_code"].(string)
	if authCode == "" {
		return nil, &domain.ValidationError{Field: "authorization_code", Reason: "order has no gateway authorization"}
	}

	amount := input.Amount
	if amount == 0 {
		amount = order.TotalAmount
	}
	if amount < 0 || amount > order.TotalAmount {
		return nil, &domain.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be between 1 and %d", order.TotalAmount),
		}
	}

	capture, err := uc.Gateway.Capture(ctx, token, order.BuyOrder, authCode, amount)
	if err != nil {
		uc.recordErrorMetrics("gateway")
		return nil, err
	}

	data, err := toPayload(capture)
	if err != nil {
		return nil, err
	}
	uc.appendHistory(ctx, order.ID, domain.HistoryCaptured, data)
	uc.publishOrderEvent(order, "order.captured")

	uc.logger.Info("order captured",
		zap.String("buy_order", order.BuyOrder),
		zap.Int64("amount", capture.CapturedAmount),
	)
	return &orderdto.CaptureOrderOutput{Order: order, Capture: capture}, nil
}

// refundedAmount sums the amounts of refunds already recorded for an order.
func (uc *DefaultOrderUsecase) refundedAmount(ctx context.Context, orderID string) (int64, error) {
	entries, err := uc.OrderRepo.History(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.Status != domain.HistoryRefunded {
			continue
		}
		total += historyAmount(e.Data["requested_amount"])
	}
	return total, nil
}

// historyAmount reads an amount back from history data, which comes out of
// JSON as float64 but is int64 before it is stored.
func historyAmount(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func (uc *DefaultOrderUsecase) settledOrder(ctx context.Context, orderID string) (*domain.Order, string, error) {
	order, err := uc.OrderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if order.Status != domain.StatusCompleted {
		return nil, "", &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("order is %s, expected %s", order.Status, domain.StatusCompleted),
		}
	}
	if order.TransactionToken == nil || *order.TransactionToken == "" {
		return nil, "", &domain.ValidationError{Field: "token", Reason: "order has no gateway token"}
	}
	return order, *order.TransactionToken, nil
}
