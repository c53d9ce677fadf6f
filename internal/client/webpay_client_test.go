package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

type observedCall struct {
	op     string
	failed bool
}

type callLog struct{ calls []observedCall }

func (c *callLog) ObserveGatewayCall(op string, _ float64, failed bool) {
	c.calls = append(c.calls, observedCall{op, failed})
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*WebpayClient, *callLog) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	obs := &callLog{}
	c := NewWebpayClient(config.Webpay{
		BaseURL:          srv.URL,
		CommerceCode:     "597055555532",
		APIKey:           "secret-key",
		Timeout:          2 * time.Second,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	}, zaptest.NewLogger(t), WithObserver(obs))
	return c, obs
}

func TestCreate(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, transactionsPath, r.URL.Path)
		assert.Equal(t, "597055555532", r.Header.Get("Tbk-Api-Key-Id"))
		assert.Equal(t, "secret-key", r.Header.Get("Tbk-Api-Key-Secret"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC123", body["buy_order"])
		assert.Equal(t, "sess42", body["session_id"])
		assert.Equal(t, float64(15990), body["amount"])
		assert.Equal(t, "https://shop.example.com/return", body["return_url"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"token": "01ab23cd",
			"url":   "https://webpay3gint.transbank.cl/webpayserver/initTransaction",
		})
	})

	tx, err := c.Create(context.Background(), "ABC123", "sess42", 15990, "https://shop.example.com/return")
	require.NoError(t, err)
	assert.Equal(t, "01ab23cd", tx.Token)
	assert.Contains(t, tx.URL, "initTransaction")
	assert.Equal(t, []observedCall{{"create", false}}, obs.calls)
}

func TestConfirm(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, transactionsPath+"/tok-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"vci": "TSY", "amount": 15990, "status": "AUTHORIZED",
			"buy_order": "ABC123", "session_id": "sess42",
			"card_detail": {"card_number": "6623"},
			"accounting_date": "0522", "transaction_date": "2025-05-22T15:10:00.000Z",
			"authorization_code": "1213", "payment_type_code": "VN",
			"response_code": 0, "installments_number": 0
		}`))
	})

	conf, err := c.Confirm(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, conf.Approved())
	assert.Equal(t, "ABC123", conf.BuyOrder)
	assert.Equal(t, int64(15990), conf.Amount)
	assert.Equal(t, "6623", conf.CardDetail.CardNumber)
}

func TestRefundAndCapture(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case transactionsPath + "/tok-1/refunds":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"type":"REVERSED","response_code":0}`))
		case transactionsPath + "/tok-1/capture":
			assert.Equal(t, http.MethodPut, r.Method)
			_, _ = w.Write([]byte(`{"token":"tok-1","authorization_code":"1213","captured_amount":1000,"response_code":0}`))
		default:
			http.NotFound(w, r)
		}
	})

	ref, err := c.Refund(context.Background(), "tok-1", 15990)
	require.NoError(t, err)
	assert.Equal(t, "REVERSED", ref.Type)

	capt, err := c.Capture(context.Background(), "tok-1", "ABC123", "1213", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), capt.CapturedAmount)
}

func TestGatewayErrorResponses(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_message":"Invalid value for parameter: token"}`))
	})

	_, err := c.Confirm(context.Background(), "bad")
	var gerr *domain.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusUnprocessableEntity, gerr.StatusCode)
	assert.Equal(t, "Invalid value for parameter: token", gerr.Message)
	assert.Equal(t, []observedCall{{"confirm", true}}, obs.calls)

	for i := 0; i < 3; i++ {
		_, _ = c.Confirm(context.Background(), "bad")
	}
	assert.Equal(t, StateClosed, c.State(), "4xx does not trip the breaker")
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Confirm(context.Background(), "tok")
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, c.State())

	_, err := c.Confirm(context.Background(), "tok")
	var gerr *domain.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCreateRejectsIncompleteResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	})

	_, err := c.Create(context.Background(), "A", "B", 1, "https://x.example.com")
	var gerr *domain.GatewayError
	assert.True(t, errors.As(err, &gerr))
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c := NewWebpayClient(config.Webpay{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
	_, err := c.Confirm(context.Background(), "tok")
	var gerr *domain.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Zero(t, gerr.StatusCode)
}
