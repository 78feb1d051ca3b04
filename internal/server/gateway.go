package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/gateway"
	"go.uber.org/zap"
)

// HandleGatewayCallback is the server-to-server webhook. The gateway speaks
// plain text here: a token probe is answered with the fixed handshake string,
// a processed result with "OK". Anything else and the gateway keeps retrying,
// which is exactly what we want on transient errors.
func (s *Server) HandleGatewayCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "")
		return
	}
	fields := gateway.ParseCallback(c.Request.Form)

	if fields.IsHandshake() {
		c.String(http.StatusOK, gateway.HandshakeAck)
		return
	}

	// Pending results are acked without touching the booking; the gateway
	// redelivers once the payment resolves.
	if _, ok := s.applyGatewayResult(c, fields); ok {
		c.String(http.StatusOK, gateway.Ack)
	}
}

// HandleGatewayReturn is the browser redirect after payment. Same result
// payload and verification as the webhook, but the shopper gets JSON.
func (s *Server) HandleGatewayReturn(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	fields := gateway.ParseCallback(c.Request.Form)
	if fields.IsHandshake() {
		c.String(http.StatusOK, gateway.HandshakeAck)
		return
	}

	outcome, err := s.confirmGatewayResult(c, fields)
	if err != nil {
		if errors.Is(err, bookingdomain.ErrAlreadyProcessed) {
			c.JSON(http.StatusOK, outcome)
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// applyGatewayResult verifies and applies one webhook delivery, writing the
// plain-text error statuses the protocol requires. Returns the mapped status
// and whether a response is still owed.
func (s *Server) applyGatewayResult(c *gin.Context, fields gateway.CallbackFields) (gateway.Status, bool) {
	if fields.OrderID == "" {
		c.String(http.StatusNotFound, "")
		return gateway.StatusFailed, false
	}

	payCtx, err := s.bookingSvc.FindGatewayPayment(c.Request.Context(), fields.OrderID)
	if err != nil {
		if errors.Is(err, bookingdomain.ErrPaymentNotFound) || errors.Is(err, bookingdomain.ErrBookingNotFound) {
			c.String(http.StatusNotFound, "")
			return gateway.StatusFailed, false
		}
		s.log.Error("gateway callback lookup failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "")
		return gateway.StatusFailed, false
	}

	if err := s.gateway.VerifyCallback(fields, payCtx.Mode.SecretKey); err != nil {
		c.String(http.StatusForbidden, "")
		return gateway.StatusFailed, false
	}

	status := fields.MappedStatus()
	if status == gateway.StatusPending {
		return status, true
	}

	_, err = s.bookingSvc.ConfirmGatewayResult(c.Request.Context(), bookingdomain.ConfirmGatewayRequest{
		PaymentReference: fields.OrderID,
		TransactionID:    fields.TranID,
		Success:          status == gateway.StatusSuccess,
		PaidAt:           fields.PaidAt(s.clock.Now()),
	})
	if err != nil && !errors.Is(err, bookingdomain.ErrAlreadyProcessed) {
		s.log.Error("gateway callback apply failed",
			zap.String("orderid", fields.OrderID),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "")
		return status, false
	}

	return status, true
}

// confirmGatewayResult is the JSON-path variant used by the browser return.
func (s *Server) confirmGatewayResult(c *gin.Context, fields gateway.CallbackFields) (bookingdomain.SettlementOutcome, error) {
	if fields.OrderID == "" {
		return bookingdomain.SettlementOutcome{}, bookingdomain.ErrPaymentNotFound
	}

	payCtx, err := s.bookingSvc.FindGatewayPayment(c.Request.Context(), fields.OrderID)
	if err != nil {
		return bookingdomain.SettlementOutcome{}, err
	}
	if err := s.gateway.VerifyCallback(fields, payCtx.Mode.SecretKey); err != nil {
		return bookingdomain.SettlementOutcome{}, err
	}

	status := fields.MappedStatus()
	if status == gateway.StatusPending {
		return bookingdomain.SettlementOutcome{
			Booking: payCtx.Booking,
			Payment: payCtx.Payment,
		}, nil
	}

	return s.bookingSvc.ConfirmGatewayResult(c.Request.Context(), bookingdomain.ConfirmGatewayRequest{
		PaymentReference: fields.OrderID,
		TransactionID:    fields.TranID,
		Success:          status == gateway.StatusSuccess,
		PaidAt:           fields.PaidAt(s.clock.Now()),
	})
}
