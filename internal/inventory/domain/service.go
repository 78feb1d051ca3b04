package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrStockItemNotFound = errors.New("stock_item_not_found")
	ErrInvalidQuantity   = errors.New("invalid_deduction_quantity")
)

// ReasonCodeSale marks a deduction caused by a settled sale line.
const ReasonCodeSale = "SALE"

type DeductRequest struct {
	TempleID      snowflake.ID
	StockItemID   snowflake.ID
	Quantity      int64
	ReasonCode    string
	BookingID     snowflake.ID
	BookingItemID snowflake.ID
}

// Adjuster applies one-time stock deductions. Idempotency across retries is
// the caller's job (the booking's inventory_migration flag); the movement
// unique key is only a backstop.
type Adjuster interface {
	Deduct(ctx context.Context, tx *gorm.DB, req DeductRequest) error
}
