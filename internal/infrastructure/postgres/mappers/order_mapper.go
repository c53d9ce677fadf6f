package mappers

import (
	"gorm.io/datatypes"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/models"
)

func ToDomainOrder(model *models.OrderModel) *domain.Order {
	return &domain.Order{
		ID:                  model.ID,
		UserID:              model.UserID,
		TotalAmount:         model.TotalAmount,
		Status:              model.Status,
		BuyOrder:            model.BuyOrder,
		SessionID:           model.SessionID,
		TransactionToken:    model.TransactionToken,
		TransactionResponse: map[string]any(model.TransactionResponse),
		Metadata:            domain.OrderMetadataFromMap(model.Metadata),
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	return &models.OrderModel{
		ID:                  order.ID,
		UserID:              order.UserID,
		TotalAmount:         order.TotalAmount,
		Status:              order.Status,
		BuyOrder:            order.BuyOrder,
		SessionID:           order.SessionID,
		TransactionToken:    order.TransactionToken,
		TransactionResponse: datatypes.JSONMap(order.TransactionResponse),
		Metadata:            datatypes.JSONMap(order.Metadata.ToMap()),
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
}

func ToDomainHistoryEntry(model *models.TransactionHistoryModel) *domain.TransactionHistoryEntry {
	return &domain.TransactionHistoryEntry{
		ID:        model.ID,
		OrderID:   model.OrderID,
		Status:    model.Status,
		Data:      map[string]any(model.Data),
		CreatedAt: model.CreatedAt,
	}
}

func ToGORMHistoryEntry(entry *domain.TransactionHistoryEntry) *models.TransactionHistoryModel {
	return &models.TransactionHistoryModel{
		OrderID:   entry.OrderID,
		Status:    entry.Status,
		Data:      datatypes.JSONMap(entry.Data),
		CreatedAt: entry.CreatedAt,
	}
}

func ToDomainCourseFile(model *models.CourseFileModel) *domain.CourseFile {
	return &domain.CourseFile{
		ID:          model.ID,
		CourseID:    model.CourseID,
		FileName:    model.FileName,
		StoragePath: model.StoragePath,
		ContentType: model.ContentType,
		CreatedAt:   model.CreatedAt,
	}
}
