// Package domain contains stock models the settlement pipeline deducts
// against.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// StockItem tracks on-hand quantity for one sellable item.
type StockItem struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	TempleID       snowflake.ID `gorm:"not null;index"`
	Name           string       `gorm:"type:text;not null"`
	SKU            string       `gorm:"type:text;not null;column:sku"`
	QuantityOnHand int64        `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StockItem) TableName() string { return "stock_items" }

// StockMovement records one signed quantity change. The unique index on
// (booking_item_id, reason_code) backstops deduction idempotency.
type StockMovement struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TempleID      snowflake.ID `gorm:"not null;index"`
	StockItemID   snowflake.ID `gorm:"not null;index"`
	BookingID     snowflake.ID `gorm:"not null;index"`
	BookingItemID snowflake.ID `gorm:"not null;uniqueIndex:ux_stock_movements_item_reason,priority:1"`
	Quantity      int64        `gorm:"not null"`
	ReasonCode    string       `gorm:"type:text;not null;uniqueIndex:ux_stock_movements_item_reason,priority:2"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StockMovement) TableName() string { return "stock_movements" }
