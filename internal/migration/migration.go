// Package migration creates the schema on startup so local and self-hosted
// installs work out of the box.
package migration

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/config"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"github.com/viharalabs/templedesk/internal/refseq"
	"github.com/viharalabs/templedesk/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// RunMigrations applies the schema for every pipeline table.
func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(
		&refseq.Sequence{},
		&bookingdomain.Booking{},
		&bookingdomain.BookingItem{},
		&bookingdomain.BookingPayment{},
		&bookingdomain.BookingPledge{},
		&bookingdomain.PaymentMode{},
		&inventorydomain.StockItem{},
		&inventorydomain.StockMovement{},
		&ledgerdomain.LedgerGroup{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.Entry{},
		&ledgerdomain.EntryItem{},
	)
}

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if err := RunMigrations(conn); err != nil {
			return err
		}
		if cfg.DefaultTempleID != 0 {
			return seed.EnsureDefaultTemple(conn, snowflake.ID(cfg.DefaultTempleID))
		}
		return nil
	}),
)
