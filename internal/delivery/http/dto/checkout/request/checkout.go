package request

import (
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
)

type InitiateRequest struct {
	Amount    int64    `json:"amount" binding:"required,gt=0"`
	Email     string   `json:"email" binding:"required,email"`
	CourseIDs []string `json:"course_ids" binding:"required,min=1,dive,required"`
	UserID    *string  `json:"user_id,omitempty"`
	ReturnURL string   `json:"return_url,omitempty" binding:"omitempty,url"`
}

type ConfirmRequest struct {
	Token       string                       `json:"token" binding:"required"`
	Transaction *domain.ValidatedTransaction `json:"transaction,omitempty"`
	Envelope    *security.SealedPayload      `json:"envelope,omitempty"`
}

// GatewayReturn is what the gateway sends back through the purchaser's
// browser, as query or form values. A normal return carries token_ws; an
// aborted payment carries TBK_TOKEN; a timed out one only the order fields.
type GatewayReturn struct {
	TokenWS   string `form:"token_ws"`
	TBKToken  string `form:"TBK_TOKEN"`
	BuyOrder  string `form:"TBK_ORDEN_COMPRA"`
	SessionID string `form:"TBK_ID_SESION"`
}

type AmountRequest struct {
	Amount int64 `json:"amount" binding:"gte=0"`
}
