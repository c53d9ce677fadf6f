package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/dto/checkout/request"
	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/dto/checkout/response"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
	usecase "github.com/LavaJover/shvark-settlement-service/internal/usecase/order"
)

type CheckoutHandler struct {
	uc     usecase.OrderUsecase
	logger *zap.Logger
}

func NewCheckoutHandler(uc usecase.OrderUsecase, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		uc:     uc,
		logger: logger.With(zap.String("component", "checkout_handler")),
	}
}

func requestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Initiate handles POST /api/checkout.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var req request.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.uc.InitiateOrder(c.Request.Context(), &orderdto.InitiateOrderInput{
		Amount:    req.Amount,
		Email:     req.Email,
		CourseIDs: req.CourseIDs,
		UserID:    req.UserID,
		ReturnURL: req.ReturnURL,
	}, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.InitiateResponse{
		OrderID:     out.Order.ID,
		BuyOrder:    out.Order.BuyOrder,
		Token:       out.Token,
		URL:         out.PaymentURL,
		Transaction: out.Transaction,
		Envelope:    out.Envelope,
	})
}

// Return handles the gateway redirect (GET or POST /api/checkout/return).
// The gateway always gets a 200; the body carries the purchaser outcome.
func (h *CheckoutHandler) Return(c *gin.Context) {
	var req request.GatewayReturn
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	if req.TokenWS == "" {
		h.abandon(c, &req)
		return
	}

	h.confirm(c, &orderdto.ConfirmOrderInput{Token: req.TokenWS})
}

func (h *CheckoutHandler) abandon(c *gin.Context, req *request.GatewayReturn) {
	h.logger.Info("payment not completed by purchaser",
		zap.Bool("aborted", req.TBKToken != ""),
		zap.String("buy_order", req.BuyOrder),
	)
	resp := response.OutcomeResponse{
		Outcome:  string(domain.OutcomeFailure),
		BuyOrder: req.BuyOrder,
	}

	out, err := h.uc.AbandonOrder(c.Request.Context(), &orderdto.AbandonOrderInput{
		Token:     req.TBKToken,
		BuyOrder:  req.BuyOrder,
		SessionID: req.SessionID,
	})
	if err != nil {
		_ = c.Error(err)
		h.logger.Warn("abandoned order not closed", zap.String("buy_order", req.BuyOrder), zap.Error(err))
	}
	if out != nil && out.Order != nil {
		resp.Outcome = string(out.Outcome)
		resp.OrderID = out.Order.ID
		resp.BuyOrder = out.Order.BuyOrder
		resp.Status = string(out.Order.Status)
	}
	c.JSON(http.StatusOK, resp)
}

// Confirm handles POST /api/checkout/confirm, where a client presents the
// token together with the transaction or sealed envelope it received at
// initiation.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	var req request.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.confirm(c, &orderdto.ConfirmOrderInput{Token: req.Token, Transaction: req.Transaction, Envelope: req.Envelope})
}

func (h *CheckoutHandler) confirm(c *gin.Context, input *orderdto.ConfirmOrderInput) {
	out, err := h.uc.ConfirmOrder(c.Request.Context(), input, requestContext(c))
	if out == nil {
		writeError(c, err)
		return
	}
	if err != nil {
		// outcome is known; the failure is ours to retry, not the gateway's
		_ = c.Error(err)
		h.logger.Error("confirmation finished with error",
			zap.String("outcome", string(out.Outcome)),
			zap.Error(err),
		)
	}

	resp := response.OutcomeResponse{
		Outcome:  string(out.Outcome),
		Replayed: out.Replayed,
	}
	if out.Order != nil {
		resp.OrderID = out.Order.ID
		resp.BuyOrder = out.Order.BuyOrder
		resp.Status = string(out.Order.Status)
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/orders/:id/history.
func (h *CheckoutHandler) History(c *gin.Context) {
	orderID := c.Param("id")
	entries, err := h.uc.GetOrderHistory(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := response.HistoryResponse{OrderID: orderID, Entries: make([]response.HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, response.HistoryEntry{
			Status:    e.Status,
			Data:      e.Data,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}
