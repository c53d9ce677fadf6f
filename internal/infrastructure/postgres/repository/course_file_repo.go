package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/models"
)

type DefaultCourseFileRepository struct {
	DB *gorm.DB
}

func NewDefaultCourseFileRepository(db *gorm.DB) *DefaultCourseFileRepository {
	return &DefaultCourseFileRepository{DB: db}
}

func (r *DefaultCourseFileRepository) FindByCourseIDs(ctx context.Context, courseIDs []string) ([]*domain.CourseFile, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var rows []models.CourseFileModel
	if err := r.DB.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Order("course_id ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "find course files", Err: err}
	}

	files := make([]*domain.CourseFile, 0, len(rows))
	for i := range rows {
		files = append(files, mappers.ToDomainCourseFile(&rows[i]))
	}
	return files, nil
}
