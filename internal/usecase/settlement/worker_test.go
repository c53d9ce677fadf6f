package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

type memOrders struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	history []*domain.TransactionHistoryEntry
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.BuyOrder] = o
	return o, nil
}

func (m *memOrders) Transition(context.Context, string, domain.OrderStatus, map[string]any, string) (*domain.Order, bool, error) {
	return nil, false, errors.New("not used")
}

func (m *memOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, &domain.OrderNotFoundError{Key: id}
}

func (m *memOrders) FindByBuyOrder(_ context.Context, buyOrder string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[buyOrder]; ok {
		return o, nil
	}
	return nil, &domain.OrderNotFoundError{Key: buyOrder}
}

func (m *memOrders) FindByToken(_ context.Context, token string) (*domain.Order, error) {
	return nil, &domain.OrderNotFoundError{Key: token}
}

func (m *memOrders) AppendHistory(ctx context.Context, e *domain.TransactionHistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *memOrders) History(_ context.Context, orderID string) ([]*domain.TransactionHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TransactionHistoryEntry
	for _, e := range m.history {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memOrders) labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.history))
	for _, e := range m.history {
		out = append(out, e.Status)
	}
	return out
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []*domain.Notification
	failTo map[string]int
	onSend func()
}

func (s *fakeSender) Send(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSend != nil {
		s.onSend()
	}
	if s.failTo[n.To] > 0 {
		s.failTo[n.To]--
		return errors.New("smtp: connection refused")
	}
	s.sent = append(s.sent, n)
	return nil
}

type fakeAttachments struct {
	files map[string]domain.Attachment
}

func (f *fakeAttachments) Lookup(_ context.Context, ids []string) ([]domain.AttachmentLookup, error) {
	out := make([]domain.AttachmentLookup, 0, len(ids))
	for _, id := range ids {
		if a, ok := f.files[id]; ok {
			a := a
			out = append(out, domain.AttachmentLookup{CourseID: id, Attachment: &a})
			continue
		}
		out = append(out, domain.AttachmentLookup{CourseID: id, Reason: "no file registered"})
	}
	return out, nil
}

type countingRecorder struct {
	notifications map[string]int
	missing       int
}

func (r *countingRecorder) RecordNotification(kind string, sent bool) {
	if sent {
		r.notifications[kind+"/sent"]++
	} else {
		r.notifications[kind+"/failed"]++
	}
}

func (r *countingRecorder) RecordAttachmentMissing() { r.missing++ }

type workerFixture struct {
	orders *memOrders
	sender *fakeSender
	rec    *countingRecorder
	worker *Worker
}

func newWorkerFixture(t *testing.T, status domain.OrderStatus) *workerFixture {
	t.Helper()
	orders := &memOrders{orders: map[string]*domain.Order{
		"BO123": {
			ID:          "order-1",
			BuyOrder:    "BO123",
			TotalAmount: 15000,
			Status:      status,
			Metadata:    domain.OrderMetadata{Email: "buyer@example.com", CourseIDs: []string{"go101", "k8s"}},
		},
	}}
	sender := &fakeSender{failTo: map[string]int{}}
	rec := &countingRecorder{notifications: map[string]int{}}
	atts := &fakeAttachments{files: map[string]domain.Attachment{
		"go101": {Filename: "go101.pdf", Content: []byte("%PDF"), ContentType: "application/pdf"},
	}}
	w := NewWorker(orders, sender, atts, zaptest.NewLogger(t),
		WithAdminAddress("admin@example.com"),
		WithRecorder(rec),
	)
	return &workerFixture{orders: orders, sender: sender, rec: rec, worker: w}
}

func settlementMessage(t *testing.T, attempt int) *domain.QueueMessage {
	t.Helper()
	payload, err := json.Marshal(domain.SettlementJob{
		OrderID:  "order-1",
		BuyOrder: "BO123",
		Email:    "buyer@example.com",
		GatewayPayload: map[string]any{
			"authorization_code": "1213",
			"card_detail":        map[string]any{"card_number": "6623"},
		},
	})
	require.NoError(t, err)
	return &domain.QueueMessage{ID: "msg-1", Type: domain.MessageTypeSettlement, Payload: payload, Attempts: attempt}
}

func TestHandleSendsReceiptAndConfirmation(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)

	require.NoError(t, f.worker.Handle(context.Background(), settlementMessage(t, 1)))

	require.Len(t, f.sender.sent, 2)
	receipt := f.sender.sent[0]
	assert.Equal(t, "buyer@example.com", receipt.To)
	require.Len(t, receipt.Attachments, 1)
	assert.Equal(t, "go101.pdf", receipt.Attachments[0].Filename)
	assert.Contains(t, receipt.HTMLBody, "BO123")
	assert.Contains(t, receipt.HTMLBody, "$15.000")
	assert.Contains(t, receipt.HTMLBody, "6623")
	assert.Contains(t, receipt.HTMLBody, "k8s")

	assert.Equal(t, "admin@example.com", f.sender.sent[1].To)
	assert.Empty(t, f.sender.sent[1].Attachments)

	assert.Equal(t, []string{
		domain.HistoryAttachmentsMissing,
		domain.HistoryReceiptSent,
		domain.HistoryConfirmationSent,
		domain.HistorySettled,
	}, f.orders.labels())
	assert.Equal(t, 1, f.rec.missing)
	assert.Equal(t, 1, f.rec.notifications["receipt/sent"])
	assert.Equal(t, 1, f.rec.notifications["confirmation/sent"])
}

func TestHandleRetryDoesNotResendReceipt(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	f.sender.failTo["admin@example.com"] = 1

	err := f.worker.Handle(context.Background(), settlementMessage(t, 1))
	require.Error(t, err)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.orders.labels(), domain.HistoryNotificationFailed)
	assert.NotContains(t, f.orders.labels(), domain.HistorySettled)

	require.NoError(t, f.worker.Handle(context.Background(), settlementMessage(t, 2)))
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "admin@example.com", f.sender.sent[1].To)
	assert.Contains(t, f.orders.labels(), domain.HistorySettled)
	assert.Equal(t, 1, f.rec.notifications["receipt/sent"])
	assert.Equal(t, 1, f.rec.notifications["confirmation/failed"])
}

func TestHandleRecordsSentStepAfterCancellation(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sender.onSend = cancel

	require.NoError(t, f.worker.Handle(ctx, settlementMessage(t, 1)))
	assert.Contains(t, f.orders.labels(), domain.HistoryReceiptSent)

	sent := len(f.sender.sent)
	require.NoError(t, f.worker.Handle(context.Background(), settlementMessage(t, 2)))
	assert.Len(t, f.sender.sent, sent, "nothing is sent twice")
}

func TestHandleAlreadySettledIsNoop(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	ctx := context.Background()

	require.NoError(t, f.worker.Handle(ctx, settlementMessage(t, 1)))
	sent := len(f.sender.sent)
	history := len(f.orders.labels())

	require.NoError(t, f.worker.Handle(ctx, settlementMessage(t, 1)))
	assert.Len(t, f.sender.sent, sent)
	assert.Len(t, f.orders.labels(), history)
}

func TestHandleRejectsNonCompletedOrder(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusFailed)

	err := f.worker.Handle(context.Background(), settlementMessage(t, 1))
	require.Error(t, err)
	assert.Empty(t, f.sender.sent)
}

func TestHandleUnknownOrder(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	msg := settlementMessage(t, 1)
	msg.Payload = json.RawMessage(`{"buy_order":"MISSING"}`)

	err := f.worker.Handle(context.Background(), msg)
	var nf *domain.OrderNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestHandleBadPayload(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	msg := settlementMessage(t, 1)
	msg.Payload = json.RawMessage(`"not an object"`)

	require.Error(t, f.worker.Handle(context.Background(), msg))
}

func TestHandlersRegistersSettlementType(t *testing.T) {
	f := newWorkerFixture(t, domain.StatusCompleted)
	h := f.worker.Handlers()
	_, ok := h[domain.MessageTypeSettlement]
	assert.True(t, ok)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$0", formatAmount(0))
	assert.Equal(t, "$999", formatAmount(999))
	assert.Equal(t, "$1.234.567", formatAmount(1234567))
	assert.Equal(t, "-$1.000", formatAmount(-1000))
}
