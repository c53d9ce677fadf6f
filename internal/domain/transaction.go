package domain

import "context"

// TransactionInput is the caller-supplied part of a secure transaction.
type TransactionInput struct {
	Amount      int64  `validate:"required,gt=0"`
	OrderNumber string `validate:"required,alphanum,max=26"`
	SessionID   string `validate:"required,alphanum,max=61"`
	ReturnURL   string `validate:"required,url,startswith=http"`
}

// RequestContext carries what the server observed about the caller.
type RequestContext struct {
	ClientIP  string
	UserAgent string
}

// ValidatedTransaction is a signed, transient envelope. Signature covers
// every other field.
type ValidatedTransaction struct {
	Amount      int64  `json:"amount"`
	OrderNumber string `json:"orderNumber"`
	ReturnURL   string `json:"returnUrl"`
	SessionID   string `json:"sessionId"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	ClientIP    string `json:"clientIp"`
	UserAgent   string `json:"userAgent"`
	Signature   string `json:"signature"`
}

type ReplayGuard interface {
	// CheckReplay records id and returns false on first sight, true on any
	// later call until the entry expires.
	CheckReplay(ctx context.Context, id string) (bool, error)
	// Release forgets id so the next CheckReplay sees it fresh.
	Release(ctx context.Context, id string) error
	// Sweep drops expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
