package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
)

const (
	abandonAborted = "aborted"
	abandonTimeout = "timeout"
)

// AbandonOrder fails an INITIATED order the purchaser aborted or let time
// out at the gateway. An aborted return carries the gateway token; a timed
// out one only the buy order, and its session id must match.
func (uc *DefaultOrderUsecase) AbandonOrder(ctx context.Context, input *orderdto.AbandonOrderInput) (*orderdto.ConfirmOrderOutput, error) {
	var (
		order  *domain.Order
		reason string
		err    error
	)
	switch {
	case input.Token != "":
		reason = abandonAborted
		order, err = uc.OrderRepo.FindByToken(ctx, input.Token)
	case input.BuyOrder != "" && input.SessionID != "":
		reason = abandonTimeout
		order, err = uc.OrderRepo.FindByBuyOrder(ctx, input.BuyOrder)
		if err == nil && order.SessionID != input.SessionID {
			err = &domain.OrderNotFoundError{Key: input.BuyOrder}
		}
	default:
		return nil, &domain.ValidationError{Field: "token", Reason: "token or buy order with session id required"}
	}
	if err != nil {
		return nil, err
	}
	if input.BuyOrder != "" && input.BuyOrder != order.BuyOrder {
		return nil, &domain.OrderNotFoundError{Key: input.BuyOrder}
	}

	payload := map[string]any{"abandoned": reason}
	updated, applied, err := uc.OrderRepo.Transition(ctx, order.BuyOrder, domain.StatusFailed, payload, "")
	if err != nil {
		uc.recordErrorMetrics("transition")
		return &orderdto.ConfirmOrderOutput{Outcome: domain.OutcomeFailure, Order: order}, err
	}
	uc.recordTransitionMetrics(updated, domain.StatusFailed, applied)

	outcome := outcomeFromStatus(updated.Status)
	uc.recordOutcomeMetrics(outcome)
	if !applied {
		return &orderdto.ConfirmOrderOutput{Outcome: outcome, Order: updated}, nil
	}

	uc.appendHistory(ctx, updated.ID, string(domain.StatusFailed), payload)
	uc.publishOrderEvent(updated, "order.failed")
	uc.logger.Info("order abandoned",
		zap.String("buy_order", updated.BuyOrder),
		zap.String("reason", reason),
	)
	return &orderdto.ConfirmOrderOutput{Outcome: outcome, Order: updated}, nil
}
