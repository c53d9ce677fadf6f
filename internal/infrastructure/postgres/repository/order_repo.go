package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/models"
)

type DefaultOrderRepository struct {
	DB *gorm.DB
}

func NewDefaultOrderRepository(db *gorm.DB) *DefaultOrderRepository {
	return &DefaultOrderRepository{DB: db}
}

func (r *DefaultOrderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order.TotalAmount <= 0 {
		return nil, &domain.ValidationError{Field: "TotalAmount", Reason: "must be positive"}
	}
	if order.BuyOrder == "" {
		return nil, &domain.ValidationError{Field: "BuyOrder", Reason: "required"}
	}
	if order.Status != "" && !order.Status.Valid() {
		return nil, &domain.ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", order.Status)}
	}

	var existing int64
	if err := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("buy_order = ?", order.BuyOrder).Count(&existing).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "check buy order", Err: err}
	}
	if existing > 0 {
		return nil, &domain.DuplicateOrderError{BuyOrder: order.BuyOrder}
	}

	model := mappers.ToGORMOrder(order)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.Status == "" {
		model.Status = domain.StatusInitiated
	}

	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		// lost a race with a concurrent create of the same buy order
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &domain.DuplicateOrderError{BuyOrder: order.BuyOrder}
		}
		return nil, &domain.PersistenceError{Op: "create order", Err: err}
	}

	return mappers.ToDomainOrder(model), nil
}

// Transition is a compare-and-swap on status: only a row still INITIATED is
// updated. Concurrent confirmations of the same buy order therefore apply at
// most once.
func (r *DefaultOrderRepository) Transition(ctx context.Context, buyOrder string, newStatus domain.OrderStatus, gatewayPayload map[string]any, token string) (*domain.Order, bool, error) {
	if !newStatus.IsTerminal() {
		return nil, false, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot transition to %s", newStatus)}
	}

	var (
		result  models.OrderModel
		applied bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("buy_order = ?", buyOrder).First(&result).Error; err != nil {
			return err
		}
		if result.Status.IsTerminal() {
			return nil
		}

		merged := datatypes.JSONMap{}
		for k, v := range result.TransactionResponse {
			merged[k] = v
		}
		for k, v := range gatewayPayload {
			merged[k] = v
		}

		updates := map[string]any{
			"status":               newStatus,
			"transaction_response": merged,
			"updated_at":           time.Now().UTC(),
		}
		if token != "" {
			updates["transaction_token"] = token
		}

		res := tx.Model(&models.OrderModel{}).
			Where("buy_order = ? AND status = ?", buyOrder, domain.StatusInitiated).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1

		return tx.Where("buy_order = ?", buyOrder).First(&result).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, &domain.OrderNotFoundError{Key: buyOrder}
	}
	if err != nil {
		return nil, false, &domain.PersistenceError{Op: "transition order", Err: err}
	}

	return mappers.ToDomainOrder(&result), applied, nil
}

func (r *DefaultOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, id, "id = ?", id)
}

func (r *DefaultOrderRepository) FindByBuyOrder(ctx context.Context, buyOrder string) (*domain.Order, error) {
	return r.findOne(ctx, buyOrder, "buy_order = ?", buyOrder)
}

func (r *DefaultOrderRepository) FindByToken(ctx context.Context, token string) (*domain.Order, error) {
	return r.findOne(ctx, token, "transaction_token = ?", token)
}

func (r *DefaultOrderRepository) findOne(ctx context.Context, key string, query string, args ...any) (*domain.Order, error) {
	var order models.OrderModel
	if err := r.DB.WithContext(ctx).Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.OrderNotFoundError{Key: key}
		}
		return nil, &domain.PersistenceError{Op: "find order", Err: err}
	}
	return mappers.ToDomainOrder(&order), nil
}

func (r *DefaultOrderRepository) AppendHistory(ctx context.Context, entry *domain.TransactionHistoryEntry) error {
	model := mappers.ToGORMHistoryEntry(entry)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		return &domain.PersistenceError{Op: "append history", Err: err}
	}
	entry.ID = model.ID
	entry.CreatedAt = model.CreatedAt
	return nil
}

func (r *DefaultOrderRepository) History(ctx context.Context, orderID string) ([]*domain.TransactionHistoryEntry, error) {
	var rows []models.TransactionHistoryModel
	if err := r.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "load history", Err: err}
	}

	entries := make([]*domain.TransactionHistoryEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, mappers.ToDomainHistoryEntry(&rows[i]))
	}
	return entries, nil
}

// Ping is used by the health check.
func (r *DefaultOrderRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
