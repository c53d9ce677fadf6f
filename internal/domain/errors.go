package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQueueEmpty           = errors.New("queue is empty")
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidSealedPayload = errors.New("sealed payload failed verification")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

type DuplicateOrderError struct {
	BuyOrder string
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("order with buy order %q already exists", e.BuyOrder)
}

type OrderNotFoundError struct {
	Key string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %q not found", e.Key)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// GatewayError covers transport failures and non-2xx answers from the
// payment gateway.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("gateway ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

type QueueUnavailableError struct {
	Op  string
	Err error
}

func (e *QueueUnavailableError) Error() string {
	return fmt.Sprintf("queue unavailable: %s: %v", e.Op, e.Err)
}

func (e *QueueUnavailableError) Unwrap() error { return e.Err }

type UnknownMessageTypeError struct {
	Type string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("no handler registered for message type %q", e.Type)
}

type SecurityViolationError struct {
	Reason   string
	Findings []string
}

func (e *SecurityViolationError) Error() string {
	if len(e.Findings) == 0 {
		return "security violation: " + e.Reason
	}
	return fmt.Sprintf("security violation: %s (%s)", e.Reason, strings.Join(e.Findings, "; "))
}

// Security violation reasons.
const (
	ViolationMissingFields    = "missing_signature_fields"
	ViolationInvalidSignature = "invalid_signature"
	ViolationExpired          = "expired_timestamp"
	ViolationAnomalous        = "anomalous_transaction"
	ViolationReplay           = "replay_detected"
	ViolationAmountMismatch   = "amount_mismatch"
)
