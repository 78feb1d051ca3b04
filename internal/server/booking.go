package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
)

const bookingDateLayout = "2006-01-02"

type submitBookingItemRequest struct {
	ItemType       string          `json:"item_type" binding:"required"`
	StockItemID    string          `json:"stock_item_id"`
	IncomeLedgerID string          `json:"income_ledger_id"`
	Description    string          `json:"description" binding:"required"`
	Quantity       int64           `json:"quantity" binding:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Meta           map[string]any  `json:"meta"`
}

type submitBookingRequest struct {
	BookingType    string                     `json:"booking_type" binding:"required"`
	BookingDate    string                     `json:"booking_date" binding:"required"`
	Items          []submitBookingItemRequest `json:"items" binding:"required"`
	DiscountAmount decimal.Decimal            `json:"discount_amount"`
	DepositAmount  decimal.Decimal            `json:"deposit_amount"`
	PledgeAmount   decimal.Decimal            `json:"pledge_amount"`
	PaymentModeID  string                     `json:"payment_mode_id" binding:"required"`
	PaymentType    string                     `json:"payment_type" binding:"required"`
	PaymentAmount  decimal.Decimal            `json:"payment_amount"`
	BillName       string                     `json:"bill_name"`
	BillEmail      string                     `json:"bill_email"`
	BillMobile     string                     `json:"bill_mobile"`
	BillDesc       string                     `json:"bill_desc"`
	Meta           map[string]any             `json:"meta"`
}

func (s *Server) SubmitBooking(c *gin.Context) {
	var req submitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	bookingDate, err := time.Parse(bookingDateLayout, req.BookingDate)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	paymentModeID, err := snowflake.ParseString(req.PaymentModeID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]bookingdomain.SubmitBookingItem, 0, len(req.Items))
	for _, item := range req.Items {
		stockItemID, err := parseOptionalID(item.StockItemID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		incomeLedgerID, err := parseOptionalID(item.IncomeLedgerID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		items = append(items, bookingdomain.SubmitBookingItem{
			ItemType:       bookingdomain.ItemType(item.ItemType),
			StockItemID:    stockItemID,
			IncomeLedgerID: incomeLedgerID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Meta:           item.Meta,
		})
	}

	resp, err := s.bookingSvc.Submit(c.Request.Context(), bookingdomain.SubmitBookingRequest{
		Kind:           bookingdomain.BookingType(req.BookingType),
		BookingDate:    bookingDate,
		Items:          items,
		DiscountAmount: req.DiscountAmount,
		DepositAmount:  req.DepositAmount,
		PledgeAmount:   req.PledgeAmount,
		PaymentModeID:  paymentModeID,
		PaymentType:    bookingdomain.PaymentType(req.PaymentType),
		PaymentAmount:  req.PaymentAmount,
		Bill: bookingdomain.BillingContact{
			Name:   req.BillName,
			Email:  req.BillEmail,
			Mobile: req.BillMobile,
			Desc:   req.BillDesc,
		},
		Meta: req.Meta,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetBooking(c *gin.Context) {
	detail, err := s.bookingSvc.GetByID(c.Request.Context(), bookingdomain.GetBookingRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type listBookingQuery struct {
	BookingType string `form:"booking_type"`
	Status      string `form:"status"`
	PageToken   string `form:"page_token"`
	PageSize    int    `form:"page_size,default=10"`
}

func (s *Server) ListBookings(c *gin.Context) {
	var query listBookingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bookingSvc.List(c.Request.Context(), bookingdomain.ListBookingRequest{
		Kind:      bookingdomain.BookingType(query.BookingType),
		Status:    bookingdomain.BookingStatus(query.Status),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelBooking(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := s.bookingSvc.Cancel(c.Request.Context(), bookingdomain.CancelBookingRequest{
		BookingID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func (s *Server) FulfillBooking(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookingSvc.Fulfill(c.Request.Context(), bookingdomain.FulfillBookingRequest{
		BookingID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

type pledgePaymentRequest struct {
	PaymentModeID string          `json:"payment_mode_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

func (s *Server) RecordPledgePayment(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req pledgePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	paymentModeID, err := snowflake.ParseString(req.PaymentModeID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.bookingSvc.RecordPledgePayment(c.Request.Context(), bookingdomain.PledgePaymentRequest{
		BookingID:     id,
		PaymentModeID: paymentModeID,
		Amount:        req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func parseOptionalID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
