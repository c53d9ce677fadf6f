package domain

import "context"

// ResponseCodeApproved is the gateway response code for an authorized payment.
const ResponseCodeApproved = 0

type GatewayTransaction struct {
	Token string
	URL   string
}

type CardDetail struct {
	CardNumber string `json:"card_number"`
}

// GatewayConfirmation is the gateway's authoritative view of a transaction.
type GatewayConfirmation struct {
	VCI                string     `json:"vci"`
	Amount             int64      `json:"amount"`
	Status             string     `json:"status"`
	BuyOrder           string     `json:"buy_order"`
	SessionID          string     `json:"session_id"`
	CardDetail         CardDetail `json:"card_detail"`
	AccountingDate     string     `json:"accounting_date"`
	TransactionDate    string     `json:"transaction_date"`
	AuthorizationCode  string     `json:"authorization_code"`
	PaymentTypeCode    string     `json:"payment_type_code"`
	ResponseCode       int        `json:"response_code"`
	InstallmentsAmount int64      `json:"installments_amount,omitempty"`
	InstallmentsNumber int        `json:"installments_number"`
	Balance            int64      `json:"balance,omitempty"`
}

// Approved reports whether the gateway authorized the payment.
func (c *GatewayConfirmation) Approved() bool {
	return c.ResponseCode == ResponseCodeApproved && c.Status == "AUTHORIZED"
}

type GatewayRefund struct {
	Type              string  `json:"type"`
	AuthorizationCode string  `json:"authorization_code,omitempty"`
	AuthorizationDate string  `json:"authorization_date,omitempty"`
	NullifiedAmount   float64 `json:"nullified_amount,omitempty"`
	Balance           float64 `json:"balance,omitempty"`
	ResponseCode      int     `json:"response_code"`
}

type GatewayCapture struct {
	Token             string `json:"token"`
	AuthorizationCode string `json:"authorization_code"`
	AuthorizationDate string `json:"authorization_date"`
	CapturedAmount    int64  `json:"captured_amount"`
	ResponseCode      int    `json:"response_code"`
}

type PaymentGateway interface {
	Create(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*GatewayTransaction, error)
	Confirm(ctx context.Context, token string) (*GatewayConfirmation, error)
	Refund(ctx context.Context, token string, amount int64) (*GatewayRefund, error)
	Capture(ctx context.Context, token, buyOrder, authorizationCode string, amount int64) (*GatewayCapture, error)
}
