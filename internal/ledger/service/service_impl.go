package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"github.com/viharalabs/templedesk/internal/refseq"
	"github.com/viharalabs/templedesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// epsilon is the largest tolerated drift between the credit-line sum and
// the booking subtotal before a posting is declared imbalanced.
var epsilon = decimal.New(1, -2)

const (
	expensesGroupName  = "Expenses"
	discountLedgerName = "Discount Allowed"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Seq   *refseq.Allocator
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	seq   *refseq.Allocator
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		seq:   p.Seq,
	}
}

// PostBooking converts one settled booking into a balanced entry. It runs
// entirely inside the caller's transaction: any error rolls the whole
// posting back and the booking stays retryable.
func (s *Service) PostBooking(ctx context.Context, tx *gorm.DB, req ledgerdomain.PostBookingRequest) (ledgerdomain.Entry, error) {
	if req.TempleID == 0 || req.BookingID == 0 || len(req.Items) == 0 {
		return ledgerdomain.Entry{}, ledgerdomain.ErrInvalidPosting
	}
	if req.DebitLedgerID == 0 {
		return ledgerdomain.Entry{}, ledgerdomain.ErrLedgerUnconfigured
	}
	if req.PaidAmount.Sign() <= 0 {
		return ledgerdomain.Entry{}, ledgerdomain.ErrInvalidPosting
	}

	lines := make([]ledgerdomain.EntryItem, 0, len(req.Items)+2)

	if req.Discount.Sign() > 0 {
		discountLedger, err := s.findOrCreateLedger(ctx, tx, req.TempleID, expensesGroupName, discountLedgerName)
		if err != nil {
			return ledgerdomain.Entry{}, err
		}
		lines = append(lines, ledgerdomain.EntryItem{
			LedgerID:   discountLedger.ID,
			Amount:     req.Discount,
			Details:    "Discount on " + req.BookingNumber,
			DC:         ledgerdomain.Debit,
			IsDiscount: true,
		})
	}

	lines = append(lines, ledgerdomain.EntryItem{
		LedgerID: req.DebitLedgerID,
		Amount:   req.PaidAmount,
		Details:  "Receipt for " + req.BookingNumber,
		DC:       ledgerdomain.Debit,
	})

	creditTotal := decimal.Zero
	for _, item := range req.Items {
		if item.Amount.Sign() < 0 {
			return ledgerdomain.Entry{}, ledgerdomain.ErrInvalidPosting
		}

		incomeLedgerID, err := s.resolveIncomeLedger(ctx, tx, req.TempleID, item.IncomeLedgerID)
		if err != nil {
			return ledgerdomain.Entry{}, err
		}

		lines = append(lines, ledgerdomain.EntryItem{
			LedgerID: incomeLedgerID,
			Amount:   item.Amount,
			Details:  item.Description,
			DC:       ledgerdomain.Credit,
		})
		creditTotal = creditTotal.Add(item.Amount)
	}

	if creditTotal.Sub(req.Subtotal).Abs().GreaterThan(epsilon) {
		s.log.Error("ledger posting imbalanced",
			zap.String("booking_number", req.BookingNumber),
			zap.String("credit_total", creditTotal.String()),
			zap.String("subtotal", req.Subtotal.String()),
		)
		return ledgerdomain.Entry{}, ledgerdomain.ErrLedgerImbalance
	}
	if err := ledgerdomain.ValidateBalanced(lines); err != nil {
		return ledgerdomain.Entry{}, err
	}

	entryCode, err := s.seq.Next(ctx, tx, req.TempleID, ledgerdomain.EntryCodeScope, ledgerdomain.EntryCodePrefix, ledgerdomain.EntryCodeWidth, req.Date)
	if err != nil {
		return ledgerdomain.Entry{}, err
	}
	number, _ := strconv.ParseInt(entryCode[len(ledgerdomain.EntryCodePrefix)+4:], 10, 64)

	drTotal, crTotal := ledgerdomain.SumByDirection(lines)
	entry := ledgerdomain.Entry{
		ID:          s.genID.Generate(),
		TempleID:    req.TempleID,
		EntrytypeID: ledgerdomain.EntryTypeReceipt,
		Number:      number,
		Date:        req.Date.UTC(),
		DrTotal:     drTotal,
		CrTotal:     crTotal,
		Narration:   fmt.Sprintf("Settlement of %s booking %s", strings.ToLower(req.BookingType), req.BookingNumber),
		InvID:       req.BookingID,
		InvType:     "booking",
		EntryCode:   entryCode,
	}

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return ledgerdomain.Entry{}, err
	}
	for i := range lines {
		lines[i].ID = s.genID.Generate()
		lines[i].EntryID = entry.ID
	}
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return ledgerdomain.Entry{}, err
	}

	s.log.Info("posted booking to ledger",
		zap.String("booking_number", req.BookingNumber),
		zap.String("entry_code", entry.EntryCode),
		zap.String("dr_total", drTotal.String()),
	)

	return entry, nil
}

// resolveIncomeLedger prefers the item's configured income account and falls
// back to the auto-provisioned default.
func (s *Service) resolveIncomeLedger(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, configured *snowflake.ID) (snowflake.ID, error) {
	if configured != nil && *configured != 0 {
		var ledger ledgerdomain.Ledger
		err := tx.WithContext(ctx).Raw(
			`SELECT id, temple_id, group_id, name, code FROM ledgers WHERE temple_id = ? AND id = ?`,
			templeID, *configured,
		).Scan(&ledger).Error
		if err != nil {
			return 0, err
		}
		if ledger.ID == 0 {
			return 0, ledgerdomain.ErrLedgerUnconfigured
		}
		return ledger.ID, nil
	}

	ledger, err := s.findOrCreateLedger(ctx, tx, templeID, ledgerdomain.IncomesGroupName, ledgerdomain.DefaultIncomeLedger)
	if err != nil {
		return 0, err
	}
	return ledger.ID, nil
}

// findOrCreateLedger provisions an account by name under the named group.
// Unique constraints plus catch-and-retry make concurrent first-postings
// converge on a single account.
func (s *Service) findOrCreateLedger(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, groupName, ledgerName string) (ledgerdomain.Ledger, error) {
	group, err := s.findOrCreateGroup(ctx, tx, templeID, groupName)
	if err != nil {
		return ledgerdomain.Ledger{}, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		var ledger ledgerdomain.Ledger
		err := tx.WithContext(ctx).Raw(
			`SELECT id, temple_id, group_id, name, code FROM ledgers WHERE temple_id = ? AND group_id = ? AND name = ?`,
			templeID, group.ID, ledgerName,
		).Scan(&ledger).Error
		if err != nil {
			return ledgerdomain.Ledger{}, err
		}
		if ledger.ID != 0 {
			return ledger, nil
		}

		var existing int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM ledgers WHERE temple_id = ? AND group_id = ?`,
			templeID, group.ID,
		).Scan(&existing).Error; err != nil {
			return ledgerdomain.Ledger{}, err
		}

		ledger = ledgerdomain.Ledger{
			ID:       s.genID.Generate(),
			TempleID: templeID,
			GroupID:  group.ID,
			Name:     ledgerName,
			Code:     fmt.Sprintf("%s-%03d", group.Code, existing+1),
		}
		err = tx.WithContext(ctx).Create(&ledger).Error
		if err == nil {
			s.log.Info("provisioned ledger account",
				zap.String("name", ledgerName),
				zap.String("code", ledger.Code),
			)
			return ledger, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return ledgerdomain.Ledger{}, err
		}
		// Lost the provisioning race; reload on next pass.
	}

	return ledgerdomain.Ledger{}, ledgerdomain.ErrLedgerUnconfigured
}

func (s *Service) findOrCreateGroup(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, name string) (ledgerdomain.LedgerGroup, error) {
	code := slug.Make(name)

	for attempt := 0; attempt < 3; attempt++ {
		var group ledgerdomain.LedgerGroup
		err := tx.WithContext(ctx).Raw(
			`SELECT id, temple_id, name, code FROM ledger_groups WHERE temple_id = ? AND code = ?`,
			templeID, code,
		).Scan(&group).Error
		if err != nil {
			return ledgerdomain.LedgerGroup{}, err
		}
		if group.ID != 0 {
			return group, nil
		}

		group = ledgerdomain.LedgerGroup{
			ID:       s.genID.Generate(),
			TempleID: templeID,
			Name:     name,
			Code:     code,
		}
		err = tx.WithContext(ctx).Create(&group).Error
		if err == nil {
			return group, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return ledgerdomain.LedgerGroup{}, err
		}
	}

	return ledgerdomain.LedgerGroup{}, ledgerdomain.ErrLedgerUnconfigured
}
