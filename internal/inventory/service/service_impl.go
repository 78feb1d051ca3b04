package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	"github.com/viharalabs/templedesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) inventorydomain.Adjuster {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inventory.service"),
		genID: p.GenID,
	}
}

// Deduct decrements on-hand stock and appends the movement row inside the
// caller's transaction.
func (s *Service) Deduct(ctx context.Context, tx *gorm.DB, req inventorydomain.DeductRequest) error {
	if req.Quantity <= 0 {
		return inventorydomain.ErrInvalidQuantity
	}
	reason := req.ReasonCode
	if reason == "" {
		reason = inventorydomain.ReasonCodeSale
	}

	// Movement first: a duplicate key here means the line was already
	// deducted, and the stock update must not run twice.
	movement := inventorydomain.StockMovement{
		ID:            s.genID.Generate(),
		TempleID:      req.TempleID,
		StockItemID:   req.StockItemID,
		BookingID:     req.BookingID,
		BookingItemID: req.BookingItemID,
		Quantity:      -req.Quantity,
		ReasonCode:    reason,
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Warn("duplicate stock movement skipped",
				zap.String("booking_item_id", req.BookingItemID.String()),
			)
			return nil
		}
		return err
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE stock_items
		 SET quantity_on_hand = quantity_on_hand - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE temple_id = ? AND id = ?`,
		req.Quantity,
		req.TempleID,
		req.StockItemID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return inventorydomain.ErrStockItemNotFound
	}

	return nil
}
