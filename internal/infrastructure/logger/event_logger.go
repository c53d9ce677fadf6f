package logger

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

// SecurityEventModel is one rejected or flagged transaction.
type SecurityEventModel struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"size:64;index;not null"`
	Reason    string `gorm:"size:64;index;not null"`
	OrderRef  string `gorm:"size:26;index"`
	ClientIP  string `gorm:"size:64"`
	Details   datatypes.JSONMap
	Timestamp time.Time `gorm:"index"`
}

func (SecurityEventModel) TableName() string {
	return "security_events"
}

type PGSecurityEventLogger struct {
	db *gorm.DB
}

func NewPGSecurityEventLogger(db *gorm.DB) *PGSecurityEventLogger {
	return &PGSecurityEventLogger{db: db}
}

func (l *PGSecurityEventLogger) LogSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error {
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return l.db.WithContext(ctx).Create(&SecurityEventModel{
		Kind:      event.Kind,
		Reason:    event.Reason,
		OrderRef:  event.OrderRef,
		ClientIP:  event.ClientIP,
		Details:   datatypes.JSONMap(event.Details),
		Timestamp: ts,
	}).Error
}

// Recent returns the latest events, newest first.
func (l *PGSecurityEventLogger) Recent(ctx context.Context, limit int) ([]*domain.SecurityEvent, error) {
	var rows []SecurityEventModel
	if err := l.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list security events", Err: err}
	}
	events := make([]*domain.SecurityEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, &domain.SecurityEvent{
			Kind:      r.Kind,
			Reason:    r.Reason,
			OrderRef:  r.OrderRef,
			ClientIP:  r.ClientIP,
			Details:   map[string]any(r.Details),
			CreatedAt: r.Timestamp,
		})
	}
	return events, nil
}
