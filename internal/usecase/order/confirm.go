package usecase

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
)

// ConfirmReplayKey is the replay-guard id for a gateway token.
func ConfirmReplayKey(token string) string {
	return "confirm:" + token
}

// ConfirmOrder commits the gateway transaction behind token and settles the
// order accordingly. The returned output is non-nil whenever the outcome is
// known, even if err reports a later failure such as a persistence error.
func (uc *DefaultOrderUsecase) ConfirmOrder(ctx context.Context, input *orderdto.ConfirmOrderInput, rc domain.RequestContext) (*orderdto.ConfirmOrderOutput, error) {
	ctx, span := otel.Tracer("order").Start(ctx, "order.confirm")
	defer span.End()

	if input.Token == "" {
		return nil, &domain.ValidationError{Field: "token", Reason: "required"}
	}

	tx := input.Transaction
	if input.Envelope != nil {
		opened, err := uc.Validator.Open(ctx, input.Envelope, rc)
		if err != nil {
			return nil, err
		}
		tx = opened
	}
	if tx != nil {
		if err := uc.Validator.VerifyAndProcessTransaction(ctx, tx, rc); err != nil {
			return nil, err
		}
	}

	key := ConfirmReplayKey(input.Token)
	replayed, err := uc.Replay.CheckReplay(ctx, key)
	if err != nil {
		return nil, err
	}
	if replayed {
		return uc.answerFromState(ctx, input.Token)
	}
	// The token stays claimed only once the transition is stored; any earlier
	// failure lets the next callback ask the gateway again.
	recorded := false
	defer func() {
		if !recorded {
			uc.releaseReplay(ctx, key)
		}
	}()

	order, err := uc.OrderRepo.FindByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("buy_order", order.BuyOrder))

	if tx != nil && tx.OrderNumber != order.BuyOrder {
		uc.logSecurityEvent(ctx, &domain.SecurityEvent{
			Kind:     "confirm_rejected",
			Reason:   domain.ViolationInvalidSignature,
			OrderRef: order.BuyOrder,
			ClientIP: rc.ClientIP,
			Details:  map[string]any{"envelope_order": tx.OrderNumber},
		})
		return nil, &domain.SecurityViolationError{
			Reason:   domain.ViolationInvalidSignature,
			Findings: []string{"envelope does not belong to this token"},
		}
	}

	conf, err := uc.Gateway.Confirm(ctx, input.Token)
	if err != nil {
		uc.recordErrorMetrics("gateway")
		uc.recordOutcomeMetrics(domain.OutcomeFailure)
		uc.logger.Error("gateway confirmation failed",
			zap.String("buy_order", order.BuyOrder),
			zap.Error(err),
		)
		return &orderdto.ConfirmOrderOutput{Outcome: domain.OutcomeFailure, Order: order}, err
	}

	payload, err := toPayload(conf)
	if err != nil {
		return nil, err
	}

	status := domain.StatusFailed
	if conf.Approved() {
		status = domain.StatusCompleted
	}
	if conf.BuyOrder != order.BuyOrder || conf.Amount != order.TotalAmount {
		status = domain.StatusFailed
		uc.logSecurityEvent(ctx, &domain.SecurityEvent{
			Kind:     "gateway_mismatch",
			Reason:   domain.ViolationAmountMismatch,
			OrderRef: order.BuyOrder,
			ClientIP: rc.ClientIP,
			Details: map[string]any{
				"expected_amount":    order.TotalAmount,
				"gateway_amount":     conf.Amount,
				"gateway_buy_order":  conf.BuyOrder,
				"gateway_status":     conf.Status,
				"gateway_response":   conf.ResponseCode,
				"authorization_code": conf.AuthorizationCode,
			},
		})
	}
	outcome := outcomeFromStatus(status)
	uc.recordOutcomeMetrics(outcome)

	updated, applied, err := uc.OrderRepo.Transition(ctx, order.BuyOrder, status, payload, input.Token)
	if err != nil {
		uc.recordErrorMetrics("transition")
		uc.logger.Error("failed to record gateway outcome",
			zap.String("buy_order", order.BuyOrder),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return &orderdto.ConfirmOrderOutput{Outcome: outcome, Order: order}, err
	}
	recorded = true
	uc.recordTransitionMetrics(updated, status, applied)

	if !applied {
		uc.logger.Info("order already settled, confirmation ignored",
			zap.String("buy_order", updated.BuyOrder),
			zap.String("status", string(updated.Status)),
		)
		return &orderdto.ConfirmOrderOutput{Outcome: outcomeFromStatus(updated.Status), Order: updated}, nil
	}

	uc.appendHistory(ctx, updated.ID, string(status), payload)

	if status == domain.StatusCompleted {
		if _, err := uc.enqueue(ctx, updated); err != nil {
			uc.logger.Error("settlement not queued", zap.String("buy_order", updated.BuyOrder), zap.Error(err))
		}
		uc.publishOrderEvent(updated, "order.completed")
	} else {
		uc.publishOrderEvent(updated, "order.failed")
	}

	uc.logger.Info("order confirmed",
		zap.String("buy_order", updated.BuyOrder),
		zap.String("status", string(updated.Status)),
		zap.Int("response_code", conf.ResponseCode),
	)
	return &orderdto.ConfirmOrderOutput{Outcome: outcome, Order: updated}, nil
}

// answerFromState handles a token that was already presented. The gateway
// is not asked again; the stored order decides the outcome.
func (uc *DefaultOrderUsecase) answerFromState(ctx context.Context, token string) (*orderdto.ConfirmOrderOutput, error) {
	order, err := uc.OrderRepo.FindByToken(ctx, token)
	if err != nil {
		var nf *domain.OrderNotFoundError
		if errors.As(err, &nf) {
			return nil, &domain.SecurityViolationError{Reason: domain.ViolationReplay}
		}
		return nil, err
	}
	outcome := outcomeFromStatus(order.Status)
	uc.recordOutcomeMetrics(outcome)
	uc.logger.Info("repeated confirmation answered from stored state",
		zap.String("buy_order", order.BuyOrder),
		zap.String("status", string(order.Status)),
	)
	return &orderdto.ConfirmOrderOutput{Outcome: outcome, Order: order, Replayed: true}, nil
}
