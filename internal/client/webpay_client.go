package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const (
	transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"
	maxErrorBody     = 4 << 10
)

// CallObserver is notified after every gateway call.
type CallObserver interface {
	ObserveGatewayCall(operation string, seconds float64, failed bool)
}

// WebpayClient talks to the Webpay Plus REST API.
type WebpayClient struct {
	baseURL      string
	commerceCode string
	apiKey       string
	httpClient   *http.Client
	breaker      *CircuitBreaker
	observer     CallObserver
	logger       *zap.Logger
}

type WebpayOption func(*WebpayClient)

func WithHTTPClient(c *http.Client) WebpayOption {
	return func(w *WebpayClient) { w.httpClient = c }
}

func WithObserver(o CallObserver) WebpayOption {
	return func(w *WebpayClient) { w.observer = o }
}

func NewWebpayClient(cfg config.Webpay, logger *zap.Logger, opts ...WebpayOption) *WebpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &WebpayClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		commerceCode: cfg.CommerceCode,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		breaker:      NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout, breakerFailure),
		logger:       logger.With(zap.String("component", "webpay_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// breakerFailure counts transport errors and 5xx answers. A 4xx is the
// caller's problem and says nothing about gateway health.
func breakerFailure(err error) bool {
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr.StatusCode == 0 || gerr.StatusCode >= http.StatusInternalServerError
	}
	return err != nil
}

type createRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type createResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

type captureRequest struct {
	BuyOrder          string `json:"buy_order"`
	AuthorizationCode string `json:"authorization_code"`
	CaptureAmount     int64  `json:"capture_amount"`
}

type errorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func (c *WebpayClient) Create(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*domain.GatewayTransaction, error) {
	var out createResponse
	err := c.call(ctx, "create", http.MethodPost, transactionsPath, createRequest{
		BuyOrder:  buyOrder,
		SessionID: sessionID,
		Amount:    amount,
		ReturnURL: returnURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" || out.URL == "" {
		return nil, &domain.GatewayError{Op: "create", Message: "response without token or url"}
	}
	return &domain.GatewayTransaction{Token: out.Token, URL: out.URL}, nil
}

func (c *WebpayClient) Confirm(ctx context.Context, token string) (*domain.GatewayConfirmation, error) {
	var out domain.GatewayConfirmation
	if err := c.call(ctx, "confirm", http.MethodPut, transactionsPath+"/"+url.PathEscape(token), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *WebpayClient) Refund(ctx context.Context, token string, amount int64) (*domain.GatewayRefund, error) {
	var out domain.GatewayRefund
	path := transactionsPath + "/" + url.PathEscape(token) + "/refunds"
	if err := c.call(ctx, "refund", http.MethodPost, path, refundRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *WebpayClient) Capture(ctx context.Context, token, buyOrder, authorizationCode string, amount int64) (*domain.GatewayCapture, error) {
	var out domain.GatewayCapture
	path := transactionsPath + "/" + url.PathEscape(token) + "/capture"
	err := c.call(ctx, "capture", http.MethodPut, path, captureRequest{
		BuyOrder:          buyOrder,
		AuthorizationCode: authorizationCode,
		CaptureAmount:     amount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *WebpayClient) call(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := otel.Tracer("webpay").Start(ctx, "webpay."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("webpay.operation", op))

	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, op, method, path, body, out)
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = &domain.GatewayError{Op: op, Message: "circuit open", Err: err}
	}

	if c.observer != nil {
		c.observer.ObserveGatewayCall(op, time.Since(start).Seconds(), err != nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("gateway call failed", zap.String("operation", op), zap.Error(err))
		return err
	}
	return nil
}

func (c *WebpayClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.GatewayError{Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Tbk-Api-Key-Id", c.commerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.ErrorMessage != "" {
			msg = apiErr.ErrorMessage
		}
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (c *WebpayClient) State() State {
	return c.breaker.GetState()
}
