package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/viharalabs/templedesk/internal/gateway"
	"github.com/viharalabs/templedesk/pkg/db/pagination"
)

var (
	ErrInvalidTemple       = errors.New("invalid_temple")
	ErrNoItems             = errors.New("no_booking_items")
	ErrInvalidItemType     = errors.New("invalid_item_type")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDiscount     = errors.New("invalid_discount")
	ErrInvalidPledge       = errors.New("invalid_pledge")
	ErrPaymentModeNotFound = errors.New("payment_mode_not_found")
	ErrPaymentModeInactive = errors.New("payment_mode_inactive")
	ErrBookingNotFound     = errors.New("booking_not_found")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrNotPledge           = errors.New("not_a_pledge_booking")
	ErrGatewayInstallment  = errors.New("gateway_installment_unsupported")
	ErrPledgeExceeded      = errors.New("pledge_exceeded")

	// ErrAlreadyProcessed is the idempotency short-circuit, not a failure:
	// callers receive the prior outcome alongside it.
	ErrAlreadyProcessed = errors.New("already_processed")
)

// BillingContact carries the payer fields echoed to the gateway.
type BillingContact struct {
	Name   string
	Email  string
	Mobile string
	Desc   string
}

type SubmitBookingItem struct {
	ItemType       ItemType
	StockItemID    *snowflake.ID
	IncomeLedgerID *snowflake.ID
	Description    string
	Quantity       int64
	UnitPrice      decimal.Decimal
	Meta           map[string]any
}

type SubmitBookingRequest struct {
	Kind           BookingType
	BookingDate    time.Time
	Items          []SubmitBookingItem
	DiscountAmount decimal.Decimal
	DepositAmount  decimal.Decimal
	// PledgeAmount commits a donation total paid across installments.
	PledgeAmount  decimal.Decimal
	PaymentModeID snowflake.ID
	PaymentType   PaymentType
	PaymentAmount decimal.Decimal
	Bill          BillingContact
	Meta          map[string]any
}

type SubmitBookingResponse struct {
	Booking Booking          `json:"booking"`
	Payment BookingPayment   `json:"payment"`
	Pledge  *BookingPledge   `json:"pledge,omitempty"`
	// Redirect is set only for gateway tenders; settlement resumes from
	// the gateway callback.
	Redirect *gateway.Redirect `json:"redirect,omitempty"`
}

// ConfirmGatewayRequest is the verified, status-mapped gateway result.
type ConfirmGatewayRequest struct {
	PaymentReference string
	TransactionID    string
	Success          bool
	PaidAt           time.Time
}

// SettlementOutcome reports the post-confirmation state. AlreadyProcessed
// marks a redelivered result answered from stored state.
type SettlementOutcome struct {
	Booking          Booking        `json:"booking"`
	Payment          BookingPayment `json:"payment"`
	AlreadyProcessed bool           `json:"already_processed,omitempty"`
}

// GatewayPaymentContext is everything a callback handler needs to verify
// and apply one gateway result.
type GatewayPaymentContext struct {
	Booking Booking
	Payment BookingPayment
	Mode    PaymentMode
}

type PledgePaymentRequest struct {
	BookingID     snowflake.ID
	PaymentModeID snowflake.ID
	Amount        decimal.Decimal
}

type CancelBookingRequest struct {
	BookingID snowflake.ID
	Reason    string
}

// FulfillBookingRequest closes out a fulfillable booking once the reserved
// service has been delivered.
type FulfillBookingRequest struct {
	BookingID snowflake.ID
}

type GetBookingRequest struct {
	ID string
}

type ListBookingRequest struct {
	Kind      BookingType
	Status    BookingStatus
	PageToken string
	PageSize  int
}

type BookingDetail struct {
	Booking  Booking          `json:"booking"`
	Items    []BookingItem    `json:"items"`
	Payments []BookingPayment `json:"payments"`
	Pledge   *BookingPledge   `json:"pledge,omitempty"`
}

type ListBookingResponse struct {
	pagination.PageInfo
	Bookings []Booking `json:"bookings"`
}

// Service drives bookings through the settlement pipeline: creation,
// payment collection, inventory adjustment and ledger posting, each step
// idempotent and independently retryable.
type Service interface {
	Submit(ctx context.Context, req SubmitBookingRequest) (SubmitBookingResponse, error)

	// FindGatewayPayment resolves an inbound gateway order id to its
	// payment, booking and merchant credentials. Unauthenticated path:
	// keyed by the globally unique payment reference.
	FindGatewayPayment(ctx context.Context, paymentReference string) (GatewayPaymentContext, error)

	// ConfirmGatewayResult applies a verified gateway result exactly once.
	// Redeliveries return the stored outcome with ErrAlreadyProcessed.
	ConfirmGatewayResult(ctx context.Context, req ConfirmGatewayRequest) (SettlementOutcome, error)

	RecordPledgePayment(ctx context.Context, req PledgePaymentRequest) (SettlementOutcome, error)
	Cancel(ctx context.Context, req CancelBookingRequest) (Booking, error)

	// Fulfill marks a fully paid, fulfillable booking COMPLETED.
	Fulfill(ctx context.Context, req FulfillBookingRequest) (Booking, error)
	GetByID(ctx context.Context, req GetBookingRequest) (BookingDetail, error)
	List(ctx context.Context, req ListBookingRequest) (ListBookingResponse, error)

	// ExpireStale cancels gateway bookings still awaiting payment past the
	// TTL and returns how many were flipped.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}
