// Package settlement turns a confirmed order into delivered receipts.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/usecase/queue"
)

const (
	kindReceipt      = "receipt"
	kindConfirmation = "confirmation"
)

// Recorder receives settlement counters.
type Recorder interface {
	RecordNotification(kind string, sent bool)
	RecordAttachmentMissing()
}

// Worker handles settlement queue messages. Each side effect is recorded in
// the order history and skipped on retry once recorded, so a retried
// message does not send the same email twice.
type Worker struct {
	orders       domain.OrderRepository
	sender       domain.NotificationSender
	attachments  domain.AttachmentSource
	events       domain.OrderEventPublisher
	recorder     Recorder
	adminAddress string
	logger       *zap.Logger
}

type Option func(*Worker)

func WithEventPublisher(p domain.OrderEventPublisher) Option {
	return func(w *Worker) { w.events = p }
}

func WithRecorder(r Recorder) Option {
	return func(w *Worker) { w.recorder = r }
}

func WithAdminAddress(addr string) Option {
	return func(w *Worker) { w.adminAddress = addr }
}

func NewWorker(orders domain.OrderRepository, sender domain.NotificationSender, attachments domain.AttachmentSource, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		orders:      orders,
		sender:      sender,
		attachments: attachments,
		logger:      logger.With(zap.String("component", "settlement_worker")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Handlers() queue.Handlers {
	return queue.Handlers{domain.MessageTypeSettlement: w.Handle}
}

func (w *Worker) Handle(ctx context.Context, msg *domain.QueueMessage) error {
	ctx, span := otel.Tracer("settlement").Start(ctx, "settlement.handle")
	defer span.End()

	var job domain.SettlementJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return fmt.Errorf("decode settlement job: %w", err)
	}
	span.SetAttributes(attribute.String("buy_order", job.BuyOrder), attribute.Int("attempt", msg.Attempts))

	log := w.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("buy_order", job.BuyOrder),
		zap.Int("attempt", msg.Attempts),
	)

	order, err := w.orders.FindByBuyOrder(ctx, job.BuyOrder)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusCompleted {
		return fmt.Errorf("order %s is %s, only completed orders are settled", order.BuyOrder, order.Status)
	}

	done, err := w.completedSteps(ctx, order.ID)
	if err != nil {
		return err
	}
	if done[domain.HistorySettled] {
		log.Info("order already settled")
		return nil
	}

	email := job.Email
	if email == "" {
		email = order.Metadata.Email
	}
	courseIDs := order.Metadata.CourseIDs

	var (
		files   []domain.Attachment
		names   []string
		missing []string
	)
	if !done[domain.HistoryReceiptSent] || !done[domain.HistoryConfirmationSent] {
		lookups, err := w.attachments.Lookup(ctx, courseIDs)
		if err != nil {
			return fmt.Errorf("lookup attachments: %w", err)
		}
		for _, l := range lookups {
			if l.Found() {
				files = append(files, *l.Attachment)
				names = append(names, l.Attachment.Filename)
				continue
			}
			missing = append(missing, l.CourseID)
			if w.recorder != nil {
				w.recorder.RecordAttachmentMissing()
			}
		}
		if len(missing) > 0 && !done[domain.HistoryAttachmentsMissing] {
			log.Warn("some attachments are missing", zap.Strings("course_ids", missing))
			w.appendHistory(ctx, order.ID, domain.HistoryAttachmentsMissing, map[string]any{
				"course_ids": toAnySlice(missing),
			})
		}
	}

	if !done[domain.HistoryReceiptSent] {
		body, err := render(receiptTemplate, receiptView{
			BuyOrder:          order.BuyOrder,
			Amount:            formatAmount(order.TotalAmount),
			AuthorizationCode: stringField(job.GatewayPayload, "authorization_code"),
			CardNumber:        cardNumber(job.GatewayPayload),
			TransactionDate:   stringField(job.GatewayPayload, "transaction_date"),
			Files:             names,
			Missing:           missing,
		})
		if err != nil {
			return err
		}
		if err := w.send(ctx, order, kindReceipt, &domain.Notification{
			To:          email,
			Subject:     fmt.Sprintf("Receipt for order %s", order.BuyOrder),
			HTMLBody:    body,
			Attachments: files,
		}, msg.Attempts); err != nil {
			return err
		}
		w.appendHistory(ctx, order.ID, domain.HistoryReceiptSent, map[string]any{
			"to":          email,
			"attachments": len(files),
		})
	}

	if w.adminAddress != "" && !done[domain.HistoryConfirmationSent] {
		body, err := render(confirmationTemplate, confirmationView{
			BuyOrder: order.BuyOrder,
			Amount:   formatAmount(order.TotalAmount),
			Email:    email,
			Courses:  courseIDs,
			Missing:  missing,
		})
		if err != nil {
			return err
		}
		if err := w.send(ctx, order, kindConfirmation, &domain.Notification{
			To:       w.adminAddress,
			Subject:  fmt.Sprintf("Order %s confirmed", order.BuyOrder),
			HTMLBody: body,
		}, msg.Attempts); err != nil {
			return err
		}
		w.appendHistory(ctx, order.ID, domain.HistoryConfirmationSent, map[string]any{
			"to": w.adminAddress,
		})
	}

	w.appendHistory(ctx, order.ID, domain.HistorySettled, map[string]any{
		"message_id": msg.ID,
		"attempts":   msg.Attempts,
	})
	w.publish(order)
	log.Info("order settled", zap.Int("attachments", len(files)), zap.Int("missing", len(missing)))
	return nil
}

func (w *Worker) send(ctx context.Context, order *domain.Order, kind string, n *domain.Notification, attempt int) error {
	err := w.sender.Send(ctx, n)
	if w.recorder != nil {
		w.recorder.RecordNotification(kind, err == nil)
	}
	if err != nil {
		w.appendHistory(ctx, order.ID, domain.HistoryNotificationFailed, map[string]any{
			"kind":    kind,
			"error":   err.Error(),
			"attempt": attempt,
		})
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func (w *Worker) completedSteps(ctx context.Context, orderID string) (map[string]bool, error) {
	history, err := w.orders.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(history))
	for _, h := range history {
		done[h.Status] = true
	}
	return done, nil
}

// appendHistory never fails the job; a missing audit row is logged instead.
// Step markers are written even after cancellation so a delivered mail is
// not sent again on retry.
func (w *Worker) appendHistory(ctx context.Context, orderID, status string, data map[string]any) {
	err := w.orders.AppendHistory(context.WithoutCancel(ctx), &domain.TransactionHistoryEntry{
		OrderID: orderID,
		Status:  status,
		Data:    data,
	})
	if err != nil {
		w.logger.Error("failed to append history",
			zap.String("order_id", orderID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (w *Worker) publish(order *domain.Order) {
	if w.events == nil {
		return
	}
	event := domain.OrderEvent{
		OrderID:   order.ID,
		BuyOrder:  order.BuyOrder,
		Event:     "order.settled",
		Status:    string(order.Status),
		Amount:    order.TotalAmount,
		Timestamp: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.events.PublishOrderEvent(ctx, event); err != nil {
			w.logger.Error("failed to publish settlement event", zap.String("buy_order", event.BuyOrder), zap.Error(err))
		}
	}()
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func cardNumber(payload map[string]any) string {
	if card, ok := payload["card_detail"].(map[string]any); ok {
		return stringField(card, "card_number")
	}
	return ""
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
