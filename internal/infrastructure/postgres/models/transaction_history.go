package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionHistoryModel is append-only; rows are never updated.
type TransactionHistoryModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"type:uuid;not null;index:idx_history_order_created"`
	Status    string `gorm:"size:64;not null"`
	Data      datatypes.JSONMap
	CreatedAt time.Time `gorm:"not null;index:idx_history_order_created"`
}

func (TransactionHistoryModel) TableName() string {
	return "transaction_histories"
}
