package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"github.com/viharalabs/templedesk/internal/refseq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&refseq.Sequence{},
		&ledgerdomain.LedgerGroup{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.Entry{},
		&ledgerdomain.EntryItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Seq:   refseq.NewAllocator(refseq.Params{Log: zap.NewNop(), GenID: node}),
	})
	return svc.(*Service), conn
}

func postingDate() time.Time {
	return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
}

func baseRequest() ledgerdomain.PostBookingRequest {
	return ledgerdomain.PostBookingRequest{
		TempleID:      1,
		BookingID:     100,
		BookingType:   "SALES",
		BookingNumber: "SALE260800001",
		Date:          postingDate(),
		Subtotal:      decimal.NewFromInt(100),
		Discount:      decimal.Zero,
		PaidAmount:    decimal.NewFromInt(100),
		DebitLedgerID: 0,
		Items: []ledgerdomain.PostingItem{
			{Description: "Incense Pack x10", Amount: decimal.NewFromInt(100)},
		},
	}
}

func seedDebitLedger(t *testing.T, svc *Service, conn *gorm.DB) snowflake.ID {
	t.Helper()
	ledger, err := svc.findOrCreateLedger(context.Background(), conn, 1, "Assets", "Cash In Hand")
	require.NoError(t, err)
	return ledger.ID
}

func TestPostBookingBalancedEntry(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	entry, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	assert.Equal(t, "REC260800001", entry.EntryCode)
	assert.Equal(t, int64(1), entry.Number)
	assert.True(t, entry.DrTotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, entry.DrTotal.Equal(entry.CrTotal))

	var lines []ledgerdomain.EntryItem
	require.NoError(t, conn.Where("entry_id = ?", entry.ID).Find(&lines).Error)
	require.Len(t, lines, 2)
	require.NoError(t, ledgerdomain.ValidateBalanced(lines))
}

func TestPostBookingDiscountLine(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)
	req.Discount = decimal.NewFromInt(10)
	req.PaidAmount = decimal.NewFromInt(90)

	entry, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	var lines []ledgerdomain.EntryItem
	require.NoError(t, conn.Where("entry_id = ?", entry.ID).Find(&lines).Error)
	require.Len(t, lines, 3)

	var discount *ledgerdomain.EntryItem
	for i := range lines {
		if lines[i].IsDiscount {
			discount = &lines[i]
		}
	}
	require.NotNil(t, discount)
	assert.Equal(t, ledgerdomain.Debit, discount.DC)
	assert.True(t, discount.Amount.Equal(decimal.NewFromInt(10)))

	dr, cr := ledgerdomain.SumByDirection(lines)
	assert.True(t, dr.Equal(cr))
	assert.True(t, cr.Equal(decimal.NewFromInt(100)))
}

func TestPostBookingProvisionsIncomeAccounts(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	_, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	var group ledgerdomain.LedgerGroup
	require.NoError(t, conn.Where("temple_id = ? AND name = ?", 1, ledgerdomain.IncomesGroupName).First(&group).Error)
	assert.Equal(t, "incomes", group.Code)

	var ledger ledgerdomain.Ledger
	require.NoError(t, conn.Where("temple_id = ? AND group_id = ? AND name = ?", 1, group.ID, ledgerdomain.DefaultIncomeLedger).First(&ledger).Error)
	assert.Equal(t, "incomes-001", ledger.Code)

	// A second posting reuses the provisioned account.
	req.BookingID = 101
	req.BookingNumber = "SALE260800002"
	_, err = svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&ledgerdomain.Ledger{}).
		Where("temple_id = ? AND name = ?", 1, ledgerdomain.DefaultIncomeLedger).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostBookingConfiguredIncomeLedger(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	donations, err := svc.findOrCreateLedger(context.Background(), conn, 1, ledgerdomain.IncomesGroupName, "Donation Income")
	require.NoError(t, err)
	req.Items[0].IncomeLedgerID = &donations.ID

	entry, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	var lines []ledgerdomain.EntryItem
	require.NoError(t, conn.Where("entry_id = ? AND dc = ?", entry.ID, ledgerdomain.Credit).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, donations.ID, lines[0].LedgerID)
}

func TestPostBookingUnknownIncomeLedger(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	missing := snowflake.ID(987654)
	req.Items[0].IncomeLedgerID = &missing

	_, err := svc.PostBooking(context.Background(), conn, req)
	assert.ErrorIs(t, err, ledgerdomain.ErrLedgerUnconfigured)
}

func TestPostBookingImbalanceRejected(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	// Credit lines drift from the subtotal beyond the tolerated epsilon.
	req.Items = []ledgerdomain.PostingItem{
		{Description: "Incense Pack x10", Amount: decimal.NewFromInt(90)},
	}

	_, err := svc.PostBooking(context.Background(), conn, req)
	assert.ErrorIs(t, err, ledgerdomain.ErrLedgerImbalance)

	var entries int64
	require.NoError(t, conn.Model(&ledgerdomain.Entry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestPostBookingEpsilonTolerance(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	// One cent of rounding drift is allowed, but the lines must still
	// balance exactly, so the paid amount follows the credit sum.
	req.Subtotal = decimal.RequireFromString("100.01")
	req.PaidAmount = decimal.NewFromInt(100)

	_, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)
}

func TestPostBookingValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	req := baseRequest()
	_, err := svc.PostBooking(ctx, conn, req)
	assert.ErrorIs(t, err, ledgerdomain.ErrLedgerUnconfigured)

	req = baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)
	req.Items = nil
	_, err = svc.PostBooking(ctx, conn, req)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPosting)

	req = baseRequest()
	req.DebitLedgerID = 1
	req.PaidAmount = decimal.Zero
	_, err = svc.PostBooking(ctx, conn, req)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPosting)
}

func TestPostBookingEntryCodesIncrement(t *testing.T) {
	svc, conn := newTestService(t)
	req := baseRequest()
	req.DebitLedgerID = seedDebitLedger(t, svc, conn)

	first, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	req.BookingID = 101
	req.BookingNumber = "SALE260800002"
	second, err := svc.PostBooking(context.Background(), conn, req)
	require.NoError(t, err)

	assert.Equal(t, "REC260800001", first.EntryCode)
	assert.Equal(t, "REC260800002", second.EntryCode)
	assert.Equal(t, int64(2), second.Number)
}
