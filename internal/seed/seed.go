// Package seed bootstraps the default temple so a fresh install can take
// bookings out of the box: tender accounts, payment modes and a demo stock
// item in sandbox.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"gorm.io/gorm"
)

const (
	assetsGroupName   = "Assets"
	cashLedgerName    = "Cash In Hand"
	cashModeName      = "Cash"
	gatewayModeName   = "Online Payment"
	demoStockItemName = "Incense Pack"
	demoStockItemSKU  = "INCENSE-001"
	demoStockQuantity = 500
)

// EnsureDefaultTemple seeds the minimum records for the given temple.
// Idempotent: existing rows are left untouched.
func EnsureDefaultTemple(db *gorm.DB, templeID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if templeID == 0 {
		return errors.New("seed temple id is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cashLedger, err := ensureCashLedger(ctx, tx, node, templeID)
		if err != nil {
			return err
		}
		if err := ensurePaymentMode(ctx, tx, node, templeID, cashModeName, false, cashLedger.ID); err != nil {
			return err
		}
		if err := ensurePaymentMode(ctx, tx, node, templeID, gatewayModeName, true, cashLedger.ID); err != nil {
			return err
		}
		return ensureDemoStockItem(ctx, tx, node, templeID)
	})
}

func ensureCashLedger(ctx context.Context, tx *gorm.DB, node *snowflake.Node, templeID snowflake.ID) (*ledgerdomain.Ledger, error) {
	var group ledgerdomain.LedgerGroup
	err := tx.WithContext(ctx).
		Where("temple_id = ? AND name = ?", templeID, assetsGroupName).
		First(&group).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		group = ledgerdomain.LedgerGroup{
			ID:       node.Generate(),
			TempleID: templeID,
			Name:     assetsGroupName,
			Code:     slug.Make(assetsGroupName),
		}
		if err := tx.WithContext(ctx).Create(&group).Error; err != nil {
			return nil, err
		}
	}

	var ledger ledgerdomain.Ledger
	err = tx.WithContext(ctx).
		Where("temple_id = ? AND group_id = ? AND name = ?", templeID, group.ID, cashLedgerName).
		First(&ledger).Error
	if err == nil {
		return &ledger, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ledger = ledgerdomain.Ledger{
		ID:       node.Generate(),
		TempleID: templeID,
		GroupID:  group.ID,
		Name:     cashLedgerName,
		Code:     group.Code + "-001",
	}
	if err := tx.WithContext(ctx).Create(&ledger).Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func ensurePaymentMode(ctx context.Context, tx *gorm.DB, node *snowflake.Node, templeID snowflake.ID, name string, isGateway bool, ledgerID snowflake.ID) error {
	var existing bookingdomain.PaymentMode
	err := tx.WithContext(ctx).
		Where("temple_id = ? AND name = ?", templeID, name).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	mode := bookingdomain.PaymentMode{
		ID:               node.Generate(),
		TempleID:         templeID,
		Name:             name,
		IsPaymentGateway: isGateway,
		LedgerID:         ledgerID,
		IsActive:         !isGateway,
	}
	return tx.WithContext(ctx).Create(&mode).Error
}

// ensureDemoStockItem gives sandbox installs something to sell. Gateway
// modes stay inactive until credentials are configured; this item is
// harmless in production too but only useful for smoke tests.
func ensureDemoStockItem(ctx context.Context, tx *gorm.DB, node *snowflake.Node, templeID snowflake.ID) error {
	var existing inventorydomain.StockItem
	err := tx.WithContext(ctx).
		Where("temple_id = ? AND sku = ?", templeID, demoStockItemSKU).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	item := inventorydomain.StockItem{
		ID:             node.Generate(),
		TempleID:       templeID,
		SKU:            demoStockItemSKU,
		Name:           demoStockItemName,
		QuantityOnHand: demoStockQuantity,
	}
	return tx.WithContext(ctx).Create(&item).Error
}
