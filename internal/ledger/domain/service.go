package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrLedgerImbalance is fatal: the posting is aborted and nothing is
	// persisted.
	ErrLedgerImbalance = errors.New("ledger_imbalance")

	// ErrLedgerUnconfigured means the tender's debit account is missing.
	ErrLedgerUnconfigured = errors.New("ledger_unconfigured")

	ErrInvalidPosting = errors.New("invalid_posting")
)

// PostingItem is one credit (income) line of a booking posting.
type PostingItem struct {
	Description    string
	Amount         decimal.Decimal
	IncomeLedgerID *snowflake.ID
}

// PostBookingRequest describes a settled booking to be posted. DebitLedgerID
// is the tender account resolved from the payment mode.
type PostBookingRequest struct {
	TempleID      snowflake.ID
	BookingID     snowflake.ID
	BookingType   string
	BookingNumber string
	Date          time.Time
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	PaidAmount    decimal.Decimal
	DebitLedgerID snowflake.ID
	Items         []PostingItem
}

// Service posts settled bookings as balanced double-entry records.
type Service interface {
	// PostBooking persists one balanced entry inside the caller's
	// transaction. The caller owns the account_migration idempotency flag.
	PostBooking(ctx context.Context, tx *gorm.DB, req PostBookingRequest) (Entry, error)
}
