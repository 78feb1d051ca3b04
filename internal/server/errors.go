package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/gateway"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"github.com/viharalabs/templedesk/internal/refseq"
	"github.com/viharalabs/templedesk/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   "request",
				Code:    "invalid_request",
				Message: "invalid request",
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var validation *ValidationErrors
	if errors.As(err, &validation) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation failed",
			Errors:  validation.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: err.Error()}

	case errors.Is(err, bookingdomain.ErrBookingNotFound),
		errors.Is(err, bookingdomain.ErrPaymentNotFound),
		errors.Is(err, bookingdomain.ErrPaymentModeNotFound),
		errors.Is(err, inventorydomain.ErrStockItemNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}

	case errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, bookingdomain.ErrPledgeExceeded),
		errors.Is(err, bookingdomain.ErrAlreadyProcessed),
		errors.Is(err, refseq.ErrAllocationConflict),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}

	case errors.Is(err, gateway.ErrSignatureMismatch):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: err.Error()}

	case errors.Is(err, bookingdomain.ErrInvalidTemple),
		errors.Is(err, bookingdomain.ErrNoItems),
		errors.Is(err, bookingdomain.ErrInvalidItemType),
		errors.Is(err, bookingdomain.ErrInvalidQuantity),
		errors.Is(err, bookingdomain.ErrInvalidUnitPrice),
		errors.Is(err, bookingdomain.ErrInvalidAmount),
		errors.Is(err, bookingdomain.ErrInvalidDiscount),
		errors.Is(err, bookingdomain.ErrInvalidPledge),
		errors.Is(err, bookingdomain.ErrPaymentModeInactive),
		errors.Is(err, bookingdomain.ErrNotPledge),
		errors.Is(err, bookingdomain.ErrGatewayInstallment),
		errors.Is(err, bookingdomain.ErrUnknownKind),
		errors.Is(err, gateway.ErrInvalidAmount),
		errors.Is(err, gateway.ErrInvalidOrderID),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, ledgerdomain.ErrLedgerUnconfigured),
		errors.Is(err, gateway.ErrMissingCredentials):
		return http.StatusUnprocessableEntity, errorPayload{Type: "unprocessable", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal error",
	}
}
