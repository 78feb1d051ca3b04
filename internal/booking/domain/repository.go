package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BookingFilter narrows listing queries.
type BookingFilter struct {
	Kind   BookingType
	Status BookingStatus
	Limit  int
	Cursor snowflake.ID
}

// Repository is the persistence boundary for the settlement pipeline. All
// mutating methods accept the caller's transaction handle so the orchestrator
// controls atomicity.
type Repository interface {
	InsertBooking(ctx context.Context, tx *gorm.DB, booking *Booking) error
	InsertItems(ctx context.Context, tx *gorm.DB, items []BookingItem) error
	InsertPayment(ctx context.Context, tx *gorm.DB, payment *BookingPayment) error
	InsertPledge(ctx context.Context, tx *gorm.DB, pledge *BookingPledge) error

	FindBooking(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*Booking, error)
	FindBookingAnyTemple(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Booking, error)
	FindItems(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) ([]BookingItem, error)
	FindPayments(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) ([]BookingPayment, error)
	FindPledge(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (*BookingPledge, error)

	// FindBookingForUpdate and FindPledgeForUpdate take a row lock for the
	// duration of the caller's transaction. Amount checks and state writes
	// derived from the returned rows stay consistent under concurrency.
	FindBookingForUpdate(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*Booking, error)
	FindPledgeForUpdate(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (*BookingPledge, error)
	FindPaymentByReference(ctx context.Context, tx *gorm.DB, reference string) (*BookingPayment, error)
	FindPaymentMode(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*PaymentMode, error)
	ListBookings(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, filter BookingFilter) ([]Booking, error)

	// MarkPaymentResult flips one tender from PENDING to its terminal status.
	// Returns false when the row was already terminal (compare-and-set miss).
	MarkPaymentResult(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID, to TenderStatus, transactionID *string, paidAt *time.Time) (bool, error)

	// UpdateBookingState writes the joint status. paid_amount is owned by
	// AddPaidAmount and is never written here.
	UpdateBookingState(ctx context.Context, tx *gorm.DB, booking *Booking) error

	// ClaimInventoryStep and ClaimAccountStep flip the one-way migration
	// flags. A false return means another settlement already claimed the
	// step and its side effect must be skipped.
	ClaimInventoryStep(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (bool, error)
	ClaimAccountStep(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (bool, error)

	UpdatePledge(ctx context.Context, tx *gorm.DB, pledge *BookingPledge) error
	AddPaidAmount(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID, amount decimal.Decimal) error

	// FindStaleGatewayBookings returns PENDING bookings created before the
	// cutoff whose only tender is still awaiting the gateway.
	FindStaleGatewayBookings(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]Booking, error)
}
