package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
)

// InitiateOrder signs a new transaction, opens it on the gateway and
// persists the order as INITIATED.
func (uc *DefaultOrderUsecase) InitiateOrder(ctx context.Context, input *orderdto.InitiateOrderInput, rc domain.RequestContext) (*orderdto.InitiateOrderOutput, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if len(input.CourseIDs) == 0 {
		return nil, &domain.ValidationError{Field: "course_ids", Reason: "at least one course is required"}
	}

	returnURL := input.ReturnURL
	if returnURL == "" {
		returnURL = uc.ReturnURL
	}

	tx, err := uc.Validator.CreateSecureTransaction(ctx, domain.TransactionInput{
		Amount:      input.Amount,
		OrderNumber: uc.newBuyOrder(),
		SessionID:   uc.newSession(),
		ReturnURL:   returnURL,
	}, rc)
	if err != nil {
		return nil, err
	}

	envelope, err := uc.Validator.Seal(tx)
	if err != nil {
		return nil, err
	}

	gtx, err := uc.Gateway.Create(ctx, tx.OrderNumber, tx.SessionID, tx.Amount, tx.ReturnURL)
	if err != nil {
		uc.recordErrorMetrics("gateway")
		return nil, err
	}

	now := time.Now().UTC()
	token := gtx.Token
	order, err := uc.OrderRepo.Create(ctx, &domain.Order{
		UserID:           input.UserID,
		TotalAmount:      tx.Amount,
		Status:           domain.StatusInitiated,
		BuyOrder:         tx.OrderNumber,
		SessionID:        tx.SessionID,
		TransactionToken: &token,
		Metadata: domain.OrderMetadata{
			Email:     email,
			CourseIDs: input.CourseIDs,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		uc.recordErrorMetrics("initiate")
		return nil, err
	}

	uc.appendHistory(ctx, order.ID, string(domain.StatusInitiated), map[string]any{
		"token":  gtx.Token,
		"amount": order.TotalAmount,
	})
	uc.recordOrderCreatedMetrics(order)
	uc.publishOrderEvent(order, "order.initiated")

	uc.logger.Info("order initiated",
		zap.String("order_id", order.ID),
		zap.String("buy_order", order.BuyOrder),
		zap.Int64("amount", order.TotalAmount),
	)

	return &orderdto.InitiateOrderOutput{
		Order:       order,
		Transaction: tx,
		Envelope:    envelope,
		Token:       gtx.Token,
		PaymentURL:  gtx.URL,
	}, nil
}
