// Package domain contains the booking settlement models and state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BookingType enumerates the settlement kinds.
type BookingType string

const (
	BookingTypeSales      BookingType = "SALES"
	BookingTypeDonation   BookingType = "DONATION"
	BookingTypeBuddhaLamp BookingType = "BUDDHA_LAMP"
	BookingTypeHall       BookingType = "HALL"
)

// BookingStatus is the fulfilment half of the joint state.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// PaymentStatus is the money half of the joint state.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPartial  PaymentStatus = "PARTIAL"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// TenderStatus is the per-payment lifecycle.
type TenderStatus string

const (
	TenderStatusPending TenderStatus = "PENDING"
	TenderStatusSuccess TenderStatus = "SUCCESS"
	TenderStatusFailed  TenderStatus = "FAILED"
)

// PaymentType describes how a payment relates to the booking total.
type PaymentType string

const (
	PaymentTypeFull    PaymentType = "FULL"
	PaymentTypePartial PaymentType = "PARTIAL"
	PaymentTypeDeposit PaymentType = "DEPOSIT"
	PaymentTypeSplit   PaymentType = "SPLIT"
)

// ItemType enumerates booking line kinds.
type ItemType string

const (
	ItemTypeProduct  ItemType = "PRODUCT"
	ItemTypeSession  ItemType = "SESSION"
	ItemTypePackage  ItemType = "PACKAGE"
	ItemTypeAddon    ItemType = "ADDON"
	ItemTypeDonation ItemType = "DONATION"
)

// PledgeStatus tracks installment donations.
type PledgeStatus string

const (
	PledgeStatusOpen      PledgeStatus = "OPEN"
	PledgeStatusFulfilled PledgeStatus = "FULFILLED"
)

// Booking is the settlement unit for one order of any kind. The two
// migration flags are one-way idempotency guards: once true they never
// revert, and the guarded side effect never reruns.
type Booking struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	TempleID           snowflake.ID      `gorm:"not null;index" json:"temple_id"`
	BookingNumber      string            `gorm:"type:text;not null;uniqueIndex:ux_bookings_number" json:"booking_number"`
	BookingType        BookingType       `gorm:"type:text;not null;index" json:"booking_type"`
	BookingDate        time.Time         `gorm:"not null" json:"booking_date"`
	BookingStatus      BookingStatus     `gorm:"type:text;not null;default:'PENDING'" json:"booking_status"`
	PaymentStatus      PaymentStatus     `gorm:"type:text;not null;default:'PENDING'" json:"payment_status"`
	Subtotal           decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	DiscountAmount     decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	DepositAmount      decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"deposit_amount"`
	TotalAmount        decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	PaidAmount         decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"paid_amount"`
	InventoryMigration bool              `gorm:"not null;default:false" json:"inventory_migration"`
	AccountMigration   bool              `gorm:"not null;default:false" json:"account_migration"`
	Meta               datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"meta,omitempty"`
	CreatedBy          string            `gorm:"type:text" json:"created_by,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Booking) TableName() string { return "bookings" }

// State returns the joint settlement state.
func (b Booking) State() State {
	return State{Booking: b.BookingStatus, Payment: b.PaymentStatus}
}

// BookingItem is one line owned by its booking.
type BookingItem struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	TempleID       snowflake.ID      `gorm:"not null;index" json:"temple_id"`
	BookingID      snowflake.ID      `gorm:"not null;index" json:"booking_id"`
	ItemType       ItemType          `gorm:"type:text;not null" json:"item_type"`
	StockItemID    *snowflake.ID     `gorm:"index" json:"stock_item_id,omitempty"`
	IncomeLedgerID *snowflake.ID     `gorm:"index" json:"income_ledger_id,omitempty"`
	Description    string            `gorm:"type:text;not null" json:"description"`
	Quantity       int64             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"total_price"`
	Status         string            `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	Meta           datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"meta,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BookingItem) TableName() string { return "booking_items" }

// BookingPayment is one tender against a booking. A booking may own several
// (pledges, split payments); the sum of SUCCESS payments never exceeds the
// booking total.
type BookingPayment struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	TempleID         snowflake.ID    `gorm:"not null;index" json:"temple_id"`
	BookingID        snowflake.ID    `gorm:"not null;index" json:"booking_id"`
	PaymentReference string          `gorm:"type:text;not null;uniqueIndex:ux_booking_payments_reference" json:"payment_reference"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaymentModeID    snowflake.ID    `gorm:"not null;index" json:"payment_mode_id"`
	PaymentType      PaymentType     `gorm:"type:text;not null" json:"payment_type"`
	PaymentStatus    TenderStatus    `gorm:"type:text;not null;default:'PENDING'" json:"payment_status"`
	TransactionID    *string         `gorm:"type:text" json:"transaction_id,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BookingPayment) TableName() string { return "booking_payments" }

// BookingPledge is the typed installment record for pledge donations.
type BookingPledge struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TempleID      snowflake.ID    `gorm:"not null;index" json:"temple_id"`
	BookingID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_booking_pledges_booking" json:"booking_id"`
	PledgeAmount  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"pledge_amount"`
	PledgeBalance decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"pledge_balance"`
	PledgeStatus  PledgeStatus    `gorm:"type:text;not null;default:'OPEN'" json:"pledge_status"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BookingPledge) TableName() string { return "booking_pledges" }

// PaymentMode is tender configuration. The pipeline reads it, never writes.
type PaymentMode struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TempleID         snowflake.ID `gorm:"not null;index" json:"temple_id"`
	Name             string       `gorm:"type:text;not null" json:"name"`
	IsPaymentGateway bool         `gorm:"not null;default:false" json:"is_payment_gateway"`
	MerchantID       string       `gorm:"type:text" json:"-"`
	VerifyKey        string       `gorm:"type:text" json:"-"`
	SecretKey        string       `gorm:"type:text" json:"-"`
	LedgerID         snowflake.ID `gorm:"not null;default:0" json:"ledger_id"`
	IsActive         bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PaymentMode) TableName() string { return "payment_modes" }
