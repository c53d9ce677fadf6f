package usecase

import "github.com/LavaJover/shvark-settlement-service/internal/domain"

func (uc *DefaultOrderUsecase) recordOrderCreatedMetrics(order *domain.Order) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordOrderCreated(order.TotalAmount)
}

func (uc *DefaultOrderUsecase) recordTransitionMetrics(order *domain.Order, status domain.OrderStatus, applied bool) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordTransition(string(status), applied, order.TotalAmount)
}

func (uc *DefaultOrderUsecase) recordOutcomeMetrics(outcome domain.PaymentOutcome) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordOutcome(string(outcome))
}

// recordErrorMetrics counts failures per pipeline stage: initiate, gateway,
// transition, history, enqueue, cleanup.
func (uc *DefaultOrderUsecase) recordErrorMetrics(stage string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordError(stage)
}

func (uc *DefaultOrderUsecase) recordCleanupMetrics(purged int) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordCleanup(purged)
}

func (uc *DefaultOrderUsecase) recordViolationMetrics(reason string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordSecurityViolation(reason)
}
