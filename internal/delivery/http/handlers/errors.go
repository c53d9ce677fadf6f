package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LavaJover/shvark-settlement-service/internal/client"
	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/dto/checkout/response"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

// statusFor maps a typed domain error onto an HTTP status and body.
func statusFor(err error) (int, response.ErrorResponse) {
	var (
		validation *domain.ValidationError
		violation  *domain.SecurityViolationError
		notFound   *domain.OrderNotFoundError
		duplicate  *domain.DuplicateOrderError
		gateway    *domain.GatewayError
		queueErr   *domain.QueueUnavailableError
		persist    *domain.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, response.ErrorResponse{Error: "validation failed", Field: validation.Field, Reason: validation.Reason}
	case errors.As(err, &violation):
		return http.StatusForbidden, response.ErrorResponse{Error: "transaction rejected", Reason: violation.Reason, Detail: violation.Findings}
	case errors.As(err, &notFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, response.ErrorResponse{Error: "not found"}
	case errors.As(err, &duplicate):
		return http.StatusConflict, response.ErrorResponse{Error: "order already exists"}
	case errors.Is(err, client.ErrCircuitOpen):
		return http.StatusServiceUnavailable, response.ErrorResponse{Error: "payment gateway unavailable"}
	case errors.As(err, &gateway):
		return http.StatusBadGateway, response.ErrorResponse{Error: "payment gateway error", Reason: gateway.Message}
	case errors.As(err, &queueErr):
		return http.StatusServiceUnavailable, response.ErrorResponse{Error: "queue unavailable"}
	case errors.As(err, &persist):
		return http.StatusInternalServerError, response.ErrorResponse{Error: "storage error"}
	default:
		return http.StatusInternalServerError, response.ErrorResponse{Error: "internal server error"}
	}
}

func writeError(c *gin.Context, err error) {
	status, body := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorResponse{Error: "invalid request", Reason: err.Error()})
}
