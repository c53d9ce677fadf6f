package models

import "time"

type CourseFileModel struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	CourseID    string `gorm:"size:64;not null;index"`
	FileName    string `gorm:"not null"`
	StoragePath string `gorm:"not null"`
	ContentType string
	CreatedAt   time.Time
}

func (CourseFileModel) TableName() string {
	return "course_files"
}
