package usecase

import (
	"context"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

func (uc *DefaultOrderUsecase) GetOrderHistory(ctx context.Context, orderID string) ([]*domain.TransactionHistoryEntry, error) {
	if _, err := uc.OrderRepo.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return uc.OrderRepo.History(ctx, orderID)
}

func (uc *DefaultOrderUsecase) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return uc.OrderRepo.FindByID(ctx, orderID)
}
