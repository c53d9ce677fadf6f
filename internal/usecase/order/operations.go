package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const (
	idAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buyOrderLength  = 20
	sessionIDLength = 32

	publishTimeout = 10 * time.Second
)

func newIDGenerator(length int) (func() string, error) {
	gen, err := nanoid.CustomASCII(idAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("id generator: %w", err)
	}
	return gen, nil
}

// appendHistory writes an audit entry. A failure is logged and counted but
// never undoes the state change it describes.
func (uc *DefaultOrderUsecase) appendHistory(ctx context.Context, orderID, status string, data map[string]any) {
	err := uc.OrderRepo.AppendHistory(ctx, &domain.TransactionHistoryEntry{
		OrderID: orderID,
		Status:  status,
		Data:    data,
	})
	if err != nil {
		uc.recordErrorMetrics("history")
		uc.logger.Error("failed to append history",
			zap.String("order_id", orderID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (uc *DefaultOrderUsecase) publishOrderEvent(order *domain.Order, event string) {
	if uc.Publisher == nil {
		return
	}
	go func(e domain.OrderEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := uc.Publisher.PublishOrderEvent(ctx, e); err != nil {
			uc.logger.Error("failed to publish order event",
				zap.String("event", e.Event),
				zap.String("buy_order", e.BuyOrder),
				zap.Error(err),
			)
		}
	}(domain.OrderEvent{
		OrderID:   order.ID,
		BuyOrder:  order.BuyOrder,
		Event:     event,
		Status:    string(order.Status),
		Amount:    order.TotalAmount,
		Timestamp: time.Now().UTC(),
	})
}

func (uc *DefaultOrderUsecase) logSecurityEvent(ctx context.Context, event *domain.SecurityEvent) {
	uc.recordViolationMetrics(event.Reason)
	uc.logger.Warn("security event",
		zap.String("kind", event.Kind),
		zap.String("reason", event.Reason),
		zap.String("order_ref", event.OrderRef),
		zap.Any("details", event.Details),
	)
	if uc.Events == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := uc.Events.LogSecurityEvent(ctx, event); err != nil {
		uc.logger.Error("failed to persist security event", zap.Error(err))
	}
}

func (uc *DefaultOrderUsecase) releaseReplay(ctx context.Context, key string) {
	if err := uc.Replay.Release(context.WithoutCancel(ctx), key); err != nil {
		uc.logger.Warn("failed to release replay key", zap.String("key", key), zap.Error(err))
	}
}

// toPayload flattens a gateway response into the generic map stored on the
// order and in history.
func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func outcomeFromStatus(status domain.OrderStatus) domain.PaymentOutcome {
	switch status {
	case domain.StatusCompleted:
		return domain.OutcomeSuccess
	case domain.StatusFailed:
		return domain.OutcomeFailure
	default:
		return domain.OutcomeProcessing
	}
}
