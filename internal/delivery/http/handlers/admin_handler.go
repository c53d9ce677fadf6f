package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/dto/checkout/request"
	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/dto/checkout/response"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
	usecase "github.com/LavaJover/shvark-settlement-service/internal/usecase/order"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type QueueInspector interface {
	Lookup(ctx context.Context, id string) (*domain.QueueMessage, error)
	Depth(ctx context.Context) (int64, error)
}

type SecurityEventReader interface {
	Recent(ctx context.Context, limit int) ([]*domain.SecurityEvent, error)
}

// AdminHandler exposes operational endpoints. Routes are mounted behind
// the admin token middleware.
type AdminHandler struct {
	uc        usecase.OrderUsecase
	queue     QueueInspector
	events    SecurityEventReader
	batchSize int
	logger    *zap.Logger
}

func NewAdminHandler(uc usecase.OrderUsecase, queue QueueInspector, events SecurityEventReader, batchSize int, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		uc:        uc,
		queue:     queue,
		events:    events,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "admin_handler")),
	}
}

func (h *AdminHandler) Refund(c *gin.Context) {
	var req request.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	out, err := h.uc.RefundOrder(c.Request.Context(), &orderdto.RefundOrderInput{OrderID: c.Param("id"), Amount: req.Amount})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.RefundResponse{
		OrderID:           out.Order.ID,
		Type:              out.Refund.Type,
		AuthorizationCode: out.Refund.AuthorizationCode,
		NullifiedAmount:   out.Refund.NullifiedAmount,
		Balance:           out.Refund.Balance,
		ResponseCode:      out.Refund.ResponseCode,
	})
}

func (h *AdminHandler) Capture(c *gin.Context) {
	var req request.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	out, err := h.uc.CaptureOrder(c.Request.Context(), &orderdto.CaptureOrderInput{OrderID: c.Param("id"), Amount: req.Amount})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.CaptureResponse{
		OrderID:           out.Order.ID,
		AuthorizationCode: out.Capture.AuthorizationCode,
		CapturedAmount:    out.Capture.CapturedAmount,
		ResponseCode:      out.Capture.ResponseCode,
	})
}

func (h *AdminHandler) Enqueue(c *gin.Context) {
	id, err := h.uc.EnqueueSettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.EnqueueResponse{MessageID: id})
}

func (h *AdminHandler) RunQueue(c *gin.Context) {
	batch := h.batchSize
	if v := c.Query("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			bindError(c, &domain.ValidationError{Field: "batch", Reason: "must be a positive integer"})
			return
		}
		batch = n
	}
	processed, err := h.uc.RunQueueOnce(c.Request.Context(), batch)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("queue run requested", zap.Int("batch", batch), zap.Int("processed", processed))
	c.JSON(http.StatusOK, response.QueueRunResponse{Processed: processed})
}

func (h *AdminHandler) Cleanup(c *gin.Context) {
	purged, err := h.uc.RunCleanup(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.CleanupResponse{Purged: purged})
}

func (h *AdminHandler) QueueMessage(c *gin.Context) {
	msg, err := h.queue.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.QueueMessageResponse{
		ID:          msg.ID,
		Type:        msg.Type,
		Status:      string(msg.Status),
		Attempts:    msg.Attempts,
		CreatedAt:   msg.CreatedAt,
		ProcessedAt: msg.ProcessedAt,
		Error:       msg.Error,
	})
}

func (h *AdminHandler) QueueDepth(c *gin.Context) {
	n, err := h.queue.Depth(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.QueueDepthResponse{Pending: n})
}

func (h *AdminHandler) SecurityEvents(c *gin.Context) {
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxEventLimit)
		}
	}
	events, err := h.events.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]response.SecurityEvent, 0, len(events))
	for _, e := range events {
		out = append(out, response.SecurityEvent{
			Kind:      e.Kind,
			Reason:    e.Reason,
			OrderRef:  e.OrderRef,
			ClientIP:  e.ClientIP,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}
