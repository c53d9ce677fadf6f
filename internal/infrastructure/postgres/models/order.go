package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

type OrderModel struct {
	ID                  string             `gorm:"primaryKey;type:uuid"`
	UserID              *string            `gorm:"index"`
	TotalAmount         int64              `gorm:"not null"`
	Status              domain.OrderStatus `gorm:"size:16;not null;index:idx_orders_status"`
	BuyOrder            string             `gorm:"size:26;not null;uniqueIndex"`
	SessionID           string             `gorm:"size:61;not null"`
	TransactionToken    *string            `gorm:"size:128;index"`
	TransactionResponse datatypes.JSONMap
	Metadata            datatypes.JSONMap
	CreatedAt           time.Time `gorm:"index:idx_orders_created_at"`
	UpdatedAt           time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}
