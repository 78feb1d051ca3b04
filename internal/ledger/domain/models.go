// Package domain contains the double-entry chart of accounts and posting
// models the settlement pipeline writes to.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// DrCr marks a posting line as debit or credit.
type DrCr string

const (
	Debit  DrCr = "D"
	Credit DrCr = "C"
)

// Entry types. Booking settlements post receipts.
const (
	EntryTypeReceipt int64 = 1
)

// Conventional names for auto-provisioned accounts.
const (
	IncomesGroupName    = "Incomes"
	DefaultIncomeLedger = "Sales Income"
	EntryCodeScope      = "ledger.entry"
	EntryCodePrefix     = "REC"
	EntryCodeWidth      = 5
)

// LedgerGroup is a node in the chart-of-accounts hierarchy.
type LedgerGroup struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	TempleID  snowflake.ID  `gorm:"not null;uniqueIndex:ux_ledger_groups_code,priority:1"`
	Name      string        `gorm:"type:text;not null"`
	Code      string        `gorm:"type:text;not null;uniqueIndex:ux_ledger_groups_code,priority:2"`
	ParentID  *snowflake.ID `gorm:"index"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerGroup) TableName() string { return "ledger_groups" }

// Ledger is one account postings debit or credit against.
type Ledger struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TempleID  snowflake.ID `gorm:"not null;uniqueIndex:ux_ledgers_code,priority:1;uniqueIndex:ux_ledgers_group_name,priority:1"`
	GroupID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledgers_group_name,priority:2"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_ledgers_group_name,priority:3"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_ledgers_code,priority:2"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Ledger) TableName() string { return "ledgers" }

// Entry is the immutable header of one balanced posting. Corrections are new
// reversing entries, never updates.
type Entry struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	TempleID    snowflake.ID    `gorm:"not null;index"`
	EntrytypeID int64           `gorm:"not null;default:1"`
	Number      int64           `gorm:"not null"`
	Date        time.Time       `gorm:"not null"`
	DrTotal     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CrTotal     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Narration   string          `gorm:"type:text"`
	InvID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_entries_inv,priority:2"`
	InvType     string          `gorm:"type:text;not null;uniqueIndex:ux_entries_inv,priority:1"`
	EntryCode   string          `gorm:"type:text;not null;uniqueIndex:ux_entries_code"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "entries" }

// EntryItem is one debit or credit line of an entry.
type EntryItem struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	EntryID    snowflake.ID    `gorm:"not null;index"`
	LedgerID   snowflake.ID    `gorm:"not null;index"`
	Amount     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Details    string          `gorm:"type:text"`
	DC         DrCr            `gorm:"type:char(1);not null;column:dc"`
	IsDiscount bool            `gorm:"not null;default:false"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EntryItem) TableName() string { return "entryitems" }

// SumByDirection totals the debit and credit sides of a line set.
func SumByDirection(items []EntryItem) (dr, cr decimal.Decimal) {
	dr, cr = decimal.Zero, decimal.Zero
	for _, item := range items {
		switch item.DC {
		case Debit:
			dr = dr.Add(item.Amount)
		case Credit:
			cr = cr.Add(item.Amount)
		}
	}
	return dr, cr
}

// ValidateBalanced enforces the double-entry invariant: debit and credit
// sides must be exactly equal.
func ValidateBalanced(items []EntryItem) error {
	dr, cr := SumByDirection(items)
	if !dr.Equal(cr) {
		return ErrLedgerImbalance
	}
	return nil
}
