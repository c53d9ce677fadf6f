package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

// ViolationRecorder receives counters for rejected and flagged transactions.
type ViolationRecorder interface {
	RecordSecurityViolation(reason string)
	RecordAnomaly(check string)
}

type TransactionValidator struct {
	signer   *Signer
	replay   domain.ReplayGuard
	policy   Policy
	events   domain.SecurityEventRepository
	recorder ViolationRecorder
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

type ValidatorOption func(*TransactionValidator)

func WithEventRepository(repo domain.SecurityEventRepository) ValidatorOption {
	return func(v *TransactionValidator) { v.events = repo }
}

func WithRecorder(r ViolationRecorder) ValidatorOption {
	return func(v *TransactionValidator) { v.recorder = r }
}

func WithClock(now func() time.Time) ValidatorOption {
	return func(v *TransactionValidator) { v.now = now }
}

func NewTransactionValidator(signer *Signer, replay domain.ReplayGuard, policy Policy, logger *zap.Logger, opts ...ValidatorOption) *TransactionValidator {
	v := &TransactionValidator{
		signer:   signer,
		replay:   replay,
		policy:   policy,
		validate: validator.New(),
		logger:   logger.With(zap.String("component", "transaction_validator")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CreateSecureTransaction validates input, stamps it with server-observed
// metadata and signs it. Anomalies are logged but do not fail creation.
func (v *TransactionValidator) CreateSecureTransaction(ctx context.Context, input domain.TransactionInput, rc domain.RequestContext) (*domain.ValidatedTransaction, error) {
	if err := v.validate.StructCtx(ctx, input); err != nil {
		return nil, toValidationError(err)
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	now := v.now()
	tx := &domain.ValidatedTransaction{
		Amount:      input.Amount,
		OrderNumber: input.OrderNumber,
		ReturnURL:   input.ReturnURL,
		SessionID:   input.SessionID,
		Timestamp:   now.UnixMilli(),
		Nonce:       nonce,
		ClientIP:    rc.ClientIP,
		UserAgent:   rc.UserAgent,
	}
	tx.Signature = v.signer.Sign(tx)

	report := DetectAnomalies(v.policy, tx, rc, now)
	if report.Anomalous {
		v.securityEvent(ctx, "anomaly_on_create", domain.ViolationAnomalous, tx, rc, report)
	}

	v.logger.Info("secure transaction created",
		zap.String("order_number", tx.OrderNumber),
		zap.Int64("amount", tx.Amount),
		zap.String("client_ip", tx.ClientIP),
	)
	return tx, nil
}

// VerifyAndProcessTransaction returns nil when the candidate is accepted and
// a *domain.SecurityViolationError otherwise. An accepted candidate is
// recorded in the replay guard and will be rejected if presented again.
func (v *TransactionValidator) VerifyAndProcessTransaction(ctx context.Context, tx *domain.ValidatedTransaction, rc domain.RequestContext) error {
	if tx == nil || tx.Signature == "" || tx.Nonce == "" || tx.Timestamp == 0 || tx.OrderNumber == "" {
		return v.reject(ctx, &domain.SecurityViolationError{Reason: domain.ViolationMissingFields}, tx, rc, nil)
	}

	if !v.signer.Verify(tx) {
		return v.reject(ctx, &domain.SecurityViolationError{Reason: domain.ViolationInvalidSignature}, tx, rc, nil)
	}

	now := v.now()
	age := now.Sub(time.UnixMilli(tx.Timestamp))
	if age > v.policy.MaxSkew || age < -v.policy.MaxSkew {
		return v.reject(ctx, &domain.SecurityViolationError{Reason: domain.ViolationExpired}, tx, rc, nil)
	}

	report := DetectAnomalies(v.policy, tx, rc, now)
	if report.Anomalous {
		return v.reject(ctx, &domain.SecurityViolationError{
			Reason:   domain.ViolationAnomalous,
			Findings: report.Findings(),
		}, tx, rc, report)
	}

	replayed, err := v.replay.CheckReplay(ctx, ReplayKey(tx))
	if err != nil {
		return err
	}
	if replayed {
		return v.reject(ctx, &domain.SecurityViolationError{Reason: domain.ViolationReplay}, tx, rc, nil)
	}

	return nil
}

// Seal encrypts and authenticates a signed transaction so it can travel
// through the purchaser's browser unread and unaltered.
func (v *TransactionValidator) Seal(tx *domain.ValidatedTransaction) (*SealedPayload, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	return v.signer.EncryptAndSign(raw)
}

// Open reverses Seal. The transaction it returns still has to pass
// VerifyAndProcessTransaction.
func (v *TransactionValidator) Open(ctx context.Context, sealed *SealedPayload, rc domain.RequestContext) (*domain.ValidatedTransaction, error) {
	raw, err := v.signer.VerifyAndDecrypt(sealed)
	if err != nil {
		return nil, v.reject(ctx, &domain.SecurityViolationError{
			Reason:   domain.ViolationInvalidSignature,
			Findings: []string{"envelope failed authentication"},
		}, nil, rc, nil)
	}
	var tx domain.ValidatedTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, v.reject(ctx, &domain.SecurityViolationError{
			Reason:   domain.ViolationInvalidSignature,
			Findings: []string{"envelope does not hold a transaction"},
		}, nil, rc, nil)
	}
	return &tx, nil
}

func ReplayKey(tx *domain.ValidatedTransaction) string {
	return "tx:" + tx.OrderNumber + ":" + tx.Nonce
}

func (v *TransactionValidator) reject(ctx context.Context, violation *domain.SecurityViolationError, tx *domain.ValidatedTransaction, rc domain.RequestContext, report *AnomalyReport) error {
	if v.recorder != nil {
		v.recorder.RecordSecurityViolation(violation.Reason)
	}
	v.securityEvent(ctx, "transaction_rejected", violation.Reason, tx, rc, report)
	return violation
}

// securityEvent logs and, when a repository is configured, persists the
// event. Persistence failures are logged only.
func (v *TransactionValidator) securityEvent(ctx context.Context, kind, reason string, tx *domain.ValidatedTransaction, rc domain.RequestContext, report *AnomalyReport) {
	fields := []zap.Field{
		zap.String("event", "security"),
		zap.String("kind", kind),
		zap.String("reason", reason),
		zap.String("client_ip", rc.ClientIP),
	}
	details := map[string]any{}
	orderRef := ""
	if tx != nil {
		orderRef = tx.OrderNumber
		fields = append(fields, zap.String("order_number", tx.OrderNumber), zap.Int64("amount", tx.Amount))
		details["amount"] = tx.Amount
		details["return_url"] = tx.ReturnURL
	}
	if report != nil {
		fields = append(fields, zap.Strings("failed_checks", report.FailedChecks))
		findings := make([]any, 0, len(report.FailedChecks))
		for _, f := range report.Findings() {
			findings = append(findings, f)
		}
		details["findings"] = findings
		if v.recorder != nil {
			for _, c := range report.FailedChecks {
				v.recorder.RecordAnomaly(c)
			}
		}
	}
	v.logger.Warn("security event", fields...)

	if v.events == nil {
		return
	}
	err := v.events.LogSecurityEvent(ctx, &domain.SecurityEvent{
		Kind:      kind,
		Reason:    reason,
		OrderRef:  orderRef,
		ClientIP:  rc.ClientIP,
		Details:   details,
		CreatedAt: v.now(),
	})
	if err != nil {
		v.logger.Error("failed to persist security event", zap.Error(err))
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{Field: fe.Field(), Reason: "failed '" + fe.Tag() + "' check"}
	}
	return &domain.ValidationError{Reason: err.Error()}
}
