package domain

import (
	"context"
	"time"
)

type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

type Notification struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

type NotificationSender interface {
	Send(ctx context.Context, n *Notification) error
}

// CourseFile points at a downloadable file delivered with a receipt.
type CourseFile struct {
	ID          string
	CourseID    string
	FileName    string
	StoragePath string
	ContentType string
	CreatedAt   time.Time
}

// AttachmentLookup is the per-course result of an attachment search. Either
// Attachment is set or Reason explains why it is missing.
type AttachmentLookup struct {
	CourseID   string
	Attachment *Attachment
	Reason     string
}

func (l AttachmentLookup) Found() bool {
	return l.Attachment != nil
}

type AttachmentSource interface {
	Lookup(ctx context.Context, courseIDs []string) ([]AttachmentLookup, error)
}

type SecurityEvent struct {
	Kind      string
	Reason    string
	OrderRef  string
	ClientIP  string
	Details   map[string]any
	CreatedAt time.Time
}
