package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

// EnqueueSettlement queues post-payment processing for a completed order.
func (uc *DefaultOrderUsecase) EnqueueSettlement(ctx context.Context, orderID string) (string, error) {
	order, err := uc.OrderRepo.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != domain.StatusCompleted {
		return "", &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("order is %s, only completed orders are settled", order.Status),
		}
	}
	return uc.enqueue(ctx, order)
}

// enqueue records the outcome of queueing in history either way.
func (uc *DefaultOrderUsecase) enqueue(ctx context.Context, order *domain.Order) (string, error) {
	id, err := uc.Queue.Enqueue(ctx, domain.MessageTypeSettlement, domain.SettlementJob{
		OrderID:        order.ID,
		BuyOrder:       order.BuyOrder,
		Email:          order.Metadata.Email,
		GatewayPayload: order.TransactionResponse,
	})
	if err != nil {
		uc.recordErrorMetrics("enqueue")
		uc.appendHistory(ctx, order.ID, domain.HistoryQueueEnqueueFailed, map[string]any{
			"error": err.Error(),
		})
		return "", err
	}
	uc.appendHistory(ctx, order.ID, domain.HistoryQueuedForProcessing, map[string]any{
		"message_id": id,
	})
	return id, nil
}

// RunQueueOnce processes up to batch messages and stops early when the
// queue is empty. It returns how many messages were handled.
func (uc *DefaultOrderUsecase) RunQueueOnce(ctx context.Context, batch int) (int, error) {
	processed := 0
	for i := 0; i < batch; i++ {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, err := uc.Queue.ProcessNext(ctx, uc.Handlers)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}
		processed++
	}
	if processed > 0 {
		uc.logger.Info("queue batch processed", zap.Int("processed", processed))
	}
	return processed, nil
}

func (uc *DefaultOrderUsecase) RunCleanup(ctx context.Context) (int, error) {
	purged, err := uc.Queue.Cleanup(ctx, uc.Retention)
	if err != nil {
		uc.recordErrorMetrics("cleanup")
		return purged, err
	}
	uc.recordCleanupMetrics(purged)
	uc.logger.Info("queue cleanup finished", zap.Int("purged", purged), zap.Duration("retention", uc.Retention))
	return purged, nil
}
