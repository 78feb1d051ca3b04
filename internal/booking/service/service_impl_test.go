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
	"github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/booking/repository"
	"github.com/viharalabs/templedesk/internal/clock"
	"github.com/viharalabs/templedesk/internal/config"
	"github.com/viharalabs/templedesk/internal/gateway"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	inventoryservice "github.com/viharalabs/templedesk/internal/inventory/service"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	ledgerservice "github.com/viharalabs/templedesk/internal/ledger/service"
	"github.com/viharalabs/templedesk/internal/observability/metrics"
	"github.com/viharalabs/templedesk/internal/refseq"
	"github.com/viharalabs/templedesk/internal/templectx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testTempleID = int64(1)

type testEnv struct {
	svc         *Service
	db          *gorm.DB
	clock       *clock.FakeClock
	cashMode    domain.PaymentMode
	gatewayMode domain.PaymentMode
	stockItem   inventorydomain.StockItem
	cashLedger  ledgerdomain.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&refseq.Sequence{},
		&domain.Booking{},
		&domain.BookingItem{},
		&domain.BookingPayment{},
		&domain.BookingPledge{},
		&domain.PaymentMode{},
		&inventorydomain.StockItem{},
		&inventorydomain.StockMovement{},
		&ledgerdomain.LedgerGroup{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.Entry{},
		&ledgerdomain.EntryItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	cfg := config.Config{
		AppName:           "templedesk",
		Environment:       config.EnvSandbox,
		PendingBookingTTL: 30 * time.Minute,
		Gateway: config.GatewayConfig{
			EndpointURL: "https://sandbox.onlinepayment.com.my/MOLPay/pay/",
			CallbackURL: "https://temple.example/gateway/callback",
			Currency:    "MYR",
			Country:     "MY",
			LangCode:    "en",
		},
	}

	allocator := refseq.NewAllocator(refseq.Params{Log: log, GenID: node})
	env := &testEnv{
		db:    conn,
		clock: fakeClock,
	}

	env.cashLedger = ledgerdomain.Ledger{ID: node.Generate(), TempleID: 1, GroupID: 1, Name: "Cash In Hand", Code: "assets-001"}
	require.NoError(t, conn.Create(&env.cashLedger).Error)

	env.cashMode = domain.PaymentMode{
		ID:       node.Generate(),
		TempleID: 1,
		Name:     "Cash",
		LedgerID: env.cashLedger.ID,
		IsActive: true,
	}
	require.NoError(t, conn.Create(&env.cashMode).Error)

	env.gatewayMode = domain.PaymentMode{
		ID:               node.Generate(),
		TempleID:         1,
		Name:             "Online Payment",
		IsPaymentGateway: true,
		MerchantID:       "MERCH001",
		VerifyKey:        "vkey123",
		SecretKey:        "skey456",
		LedgerID:         env.cashLedger.ID,
		IsActive:         true,
	}
	require.NoError(t, conn.Create(&env.gatewayMode).Error)

	env.stockItem = inventorydomain.StockItem{
		ID:             node.Generate(),
		TempleID:       1,
		Name:           "Incense Pack",
		SKU:            "INCENSE-001",
		QuantityOnHand: 100,
	}
	require.NoError(t, conn.Create(&env.stockItem).Error)

	svc := NewService(Params{
		DB:      conn,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Cfg:     cfg,
		Repo:    repository.NewRepository(repository.Params{Log: log}),
		Seq:     allocator,
		Gateway: gateway.NewAdapter(gateway.Params{Cfg: cfg, Log: log}),
		Inventory: inventoryservice.NewService(inventoryservice.Params{
			DB: conn, Log: log, GenID: node,
		}),
		Ledger: ledgerservice.NewService(ledgerservice.Params{
			DB: conn, Log: log, GenID: node, Seq: allocator,
		}),
		Metrics: metrics.NewMetrics(metrics.Params{Registry: metrics.NewRegistry()}),
	})
	env.svc = svc.(*Service)
	return env
}

func testCtx() context.Context {
	return templectx.WithTempleID(context.Background(), testTempleID)
}

func (e *testEnv) salesRequest(modeID snowflake.ID) domain.SubmitBookingRequest {
	return domain.SubmitBookingRequest{
		Kind:        domain.BookingTypeSales,
		BookingDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Items: []domain.SubmitBookingItem{
			{
				ItemType:    domain.ItemTypeProduct,
				StockItemID: &e.stockItem.ID,
				Description: "Incense Pack x10",
				Quantity:    10,
				UnitPrice:   decimal.NewFromInt(10),
			},
		},
		PaymentModeID: modeID,
		PaymentType:   domain.PaymentTypeFull,
		PaymentAmount: decimal.NewFromInt(100),
		Bill:          domain.BillingContact{Name: "Tan Ah Kow", Email: "tan@example.com"},
	}
}

func (e *testEnv) ledgerEntryCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&ledgerdomain.Entry{}).Count(&count).Error)
	return count
}

func (e *testEnv) stockOnHand(t *testing.T) int64 {
	t.Helper()
	var item inventorydomain.StockItem
	require.NoError(t, e.db.First(&item, e.stockItem.ID).Error)
	return item.QuantityOnHand
}

func (e *testEnv) reload(t *testing.T, id snowflake.ID) domain.Booking {
	t.Helper()
	var booking domain.Booking
	require.NoError(t, e.db.First(&booking, id).Error)
	return booking
}

// Direct sale paid in full: confirmed immediately, stock deducted, a
// balanced receipt posted, both migration flags set.
func TestSubmitDirectSale(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(testCtx(), env.salesRequest(env.cashMode.ID))
	require.NoError(t, err)

	assert.Equal(t, "TSAL260800001", resp.Booking.BookingNumber)
	assert.Equal(t, domain.BookingStatusConfirmed, resp.Booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusPaid, resp.Booking.PaymentStatus)
	assert.Equal(t, domain.TenderStatusSuccess, resp.Payment.PaymentStatus)
	assert.Equal(t, "PYD260800001", resp.Payment.PaymentReference)
	assert.Nil(t, resp.Redirect)

	assert.Equal(t, int64(90), env.stockOnHand(t))
	assert.Equal(t, int64(1), env.ledgerEntryCount(t))

	stored := env.reload(t, resp.Booking.ID)
	assert.True(t, stored.InventoryMigration)
	assert.True(t, stored.AccountMigration)

	var entry ledgerdomain.Entry
	require.NoError(t, env.db.Where("inv_id = ?", resp.Booking.ID).First(&entry).Error)
	assert.True(t, entry.DrTotal.Equal(entry.CrTotal))
	assert.True(t, entry.DrTotal.Equal(decimal.NewFromInt(100)))
}

func TestSubmitDirectSaleWithDiscount(t *testing.T) {
	env := newTestEnv(t)

	req := env.salesRequest(env.cashMode.ID)
	req.DiscountAmount = decimal.NewFromInt(10)
	req.PaymentAmount = decimal.NewFromInt(90)

	resp, err := env.svc.Submit(testCtx(), req)
	require.NoError(t, err)

	assert.True(t, resp.Booking.TotalAmount.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, domain.PaymentStatusPaid, resp.Booking.PaymentStatus)

	var entry ledgerdomain.Entry
	require.NoError(t, env.db.Where("inv_id = ?", resp.Booking.ID).First(&entry).Error)
	assert.True(t, entry.DrTotal.Equal(decimal.NewFromInt(100)))

	var discountLines int64
	require.NoError(t, env.db.Model(&ledgerdomain.EntryItem{}).
		Where("entry_id = ? AND is_discount = ?", entry.ID, true).
		Count(&discountLines).Error)
	assert.Equal(t, int64(1), discountLines)
}

// Gateway sale: booking parks as PENDING with a signed redirect; the
// successful callback confirms and settles it.
func TestSubmitGatewaySaleAndCallback(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(testCtx(), env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusPending, resp.Booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusPending, resp.Booking.PaymentStatus)
	assert.Equal(t, "PYL260800001", resp.Payment.PaymentReference)
	require.NotNil(t, resp.Redirect)
	assert.Equal(t, "https://sandbox.onlinepayment.com.my/MOLPay/pay/MERCH001", resp.Redirect.URL)
	assert.Equal(t, "PYL260800001", resp.Redirect.Fields["orderid"])
	assert.NotEmpty(t, resp.Redirect.Fields["vcode"])

	// Nothing settles before the gateway answers.
	assert.Equal(t, int64(100), env.stockOnHand(t))
	assert.Zero(t, env.ledgerEntryCount(t))

	outcome, err := env.svc.ConfirmGatewayResult(testCtx(), domain.ConfirmGatewayRequest{
		PaymentReference: "PYL260800001",
		TransactionID:    "TXN123",
		Success:          true,
		PaidAt:           env.clock.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusConfirmed, outcome.Booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusPaid, outcome.Booking.PaymentStatus)
	assert.Equal(t, domain.TenderStatusSuccess, outcome.Payment.PaymentStatus)
	require.NotNil(t, outcome.Payment.TransactionID)
	assert.Equal(t, "TXN123", *outcome.Payment.TransactionID)

	assert.Equal(t, int64(90), env.stockOnHand(t))
	assert.Equal(t, int64(1), env.ledgerEntryCount(t))
}

// A redelivered callback must not settle twice.
func TestConfirmGatewayResultIdempotent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Submit(testCtx(), env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	confirm := domain.ConfirmGatewayRequest{
		PaymentReference: "PYL260800001",
		TransactionID:    "TXN123",
		Success:          true,
		PaidAt:           env.clock.Now(),
	}

	_, err = env.svc.ConfirmGatewayResult(testCtx(), confirm)
	require.NoError(t, err)

	outcome, err := env.svc.ConfirmGatewayResult(testCtx(), confirm)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, outcome.AlreadyProcessed)
	assert.Equal(t, domain.PaymentStatusPaid, outcome.Booking.PaymentStatus)

	assert.Equal(t, int64(90), env.stockOnHand(t))
	assert.Equal(t, int64(1), env.ledgerEntryCount(t))

	booking := env.reload(t, outcome.Booking.ID)
	assert.True(t, booking.PaidAmount.Equal(decimal.NewFromInt(100)))
}

func TestConfirmGatewayResultFailure(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(testCtx(), env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	outcome, err := env.svc.ConfirmGatewayResult(testCtx(), domain.ConfirmGatewayRequest{
		PaymentReference: resp.Payment.PaymentReference,
		Success:          false,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, outcome.Booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusFailed, outcome.Booking.PaymentStatus)
	assert.Equal(t, domain.TenderStatusFailed, outcome.Payment.PaymentStatus)

	assert.Equal(t, int64(100), env.stockOnHand(t))
	assert.Zero(t, env.ledgerEntryCount(t))
}

// Pledge donation paid across installments: income posts once, on the
// installment that clears the balance.
func TestPledgeDonationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, domain.SubmitBookingRequest{
		Kind:        domain.BookingTypeDonation,
		BookingDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Items: []domain.SubmitBookingItem{
			{
				ItemType:    domain.ItemTypeDonation,
				Description: "Building fund pledge",
				Quantity:    1,
				UnitPrice:   decimal.NewFromInt(1000),
			},
		},
		PledgeAmount:  decimal.NewFromInt(1000),
		PaymentModeID: env.cashMode.ID,
		PaymentType:   domain.PaymentTypePartial,
		PaymentAmount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	assert.Equal(t, "TDON260800001", resp.Booking.BookingNumber)
	assert.Equal(t, domain.BookingStatusConfirmed, resp.Booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusPartial, resp.Booking.PaymentStatus)
	require.NotNil(t, resp.Pledge)
	assert.True(t, resp.Pledge.PledgeBalance.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, domain.PledgeStatusOpen, resp.Pledge.PledgeStatus)

	// Partial payments recognise no income yet.
	assert.Zero(t, env.ledgerEntryCount(t))

	// Installment within the balance.
	outcome, err := env.svc.RecordPledgePayment(ctx, domain.PledgePaymentRequest{
		BookingID:     resp.Booking.ID,
		PaymentModeID: env.cashMode.ID,
		Amount:        decimal.NewFromInt(300),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartial, outcome.Booking.PaymentStatus)
	assert.Zero(t, env.ledgerEntryCount(t))

	// Overpaying the remainder is rejected.
	_, err = env.svc.RecordPledgePayment(ctx, domain.PledgePaymentRequest{
		BookingID:     resp.Booking.ID,
		PaymentModeID: env.cashMode.ID,
		Amount:        decimal.NewFromInt(600),
	})
	assert.ErrorIs(t, err, domain.ErrPledgeExceeded)

	// Closing installment fulfils the pledge and posts the receipt.
	outcome, err = env.svc.RecordPledgePayment(ctx, domain.PledgePaymentRequest{
		BookingID:     resp.Booking.ID,
		PaymentModeID: env.cashMode.ID,
		Amount:        decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, outcome.Booking.PaymentStatus)
	assert.Equal(t, int64(1), env.ledgerEntryCount(t))

	var pledge domain.BookingPledge
	require.NoError(t, env.db.Where("booking_id = ?", resp.Booking.ID).First(&pledge).Error)
	assert.Equal(t, domain.PledgeStatusFulfilled, pledge.PledgeStatus)
	assert.True(t, pledge.PledgeBalance.IsZero())

	// Nothing more to pay.
	_, err = env.svc.RecordPledgePayment(ctx, domain.PledgePaymentRequest{
		BookingID:     resp.Booking.ID,
		PaymentModeID: env.cashMode.ID,
		Amount:        decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrPledgeExceeded)
}

// Stale gateway bookings are cancelled by the sweep once the TTL passes.
func TestExpireStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	// Too early: nothing to expire.
	expired, err := env.svc.ExpireStale(ctx, env.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)

	env.clock.Advance(time.Hour)
	expired, err = env.svc.ExpireStale(ctx, env.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	booking := env.reload(t, resp.Booking.ID)
	assert.Equal(t, domain.BookingStatusCancelled, booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusFailed, booking.PaymentStatus)

	// A late callback for the expired tender is answered from stored state.
	outcome, err := env.svc.ConfirmGatewayResult(ctx, domain.ConfirmGatewayRequest{
		PaymentReference: resp.Payment.PaymentReference,
		Success:          true,
		PaidAt:           env.clock.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, outcome.AlreadyProcessed)
	assert.Equal(t, int64(100), env.stockOnHand(t))
}

func TestCancelBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	booking, err := env.svc.Cancel(ctx, domain.CancelBookingRequest{
		BookingID: resp.Booking.ID,
		Reason:    "customer walked away",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusFailed, booking.PaymentStatus)

	// Already terminal.
	_, err = env.svc.Cancel(ctx, domain.CancelBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelPaidBookingRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.salesRequest(env.cashMode.ID))
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, domain.CancelBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func (e *testEnv) hallRequest(paymentType domain.PaymentType, amount int64) domain.SubmitBookingRequest {
	return domain.SubmitBookingRequest{
		Kind:        domain.BookingTypeHall,
		BookingDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Items: []domain.SubmitBookingItem{
			{
				ItemType:    domain.ItemTypeSession,
				Description: "Main hall, full day",
				Quantity:    1,
				UnitPrice:   decimal.NewFromInt(800),
			},
		},
		PaymentModeID: e.cashMode.ID,
		PaymentType:   paymentType,
		PaymentAmount: decimal.NewFromInt(amount),
	}
}

// A paid hall booking completes on fulfillment and is terminal afterwards.
func TestFulfillHallBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.hallRequest(domain.PaymentTypeFull, 800))
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusConfirmed, resp.Booking.BookingStatus)
	require.Equal(t, domain.PaymentStatusPaid, resp.Booking.PaymentStatus)

	booking, err := env.svc.Fulfill(ctx, domain.FulfillBookingRequest{BookingID: resp.Booking.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, booking.BookingStatus)
	assert.Equal(t, domain.PaymentStatusPaid, booking.PaymentStatus)

	stored := env.reload(t, resp.Booking.ID)
	assert.Equal(t, domain.BookingStatusCompleted, stored.BookingStatus)

	_, err = env.svc.Fulfill(ctx, domain.FulfillBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Completed bookings cannot be cancelled either.
	_, err = env.svc.Cancel(ctx, domain.CancelBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFulfillRequiresFullPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.hallRequest(domain.PaymentTypeDeposit, 300))
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPartial, resp.Booking.PaymentStatus)

	_, err = env.svc.Fulfill(ctx, domain.FulfillBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFulfillNonFulfillableKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, env.salesRequest(env.cashMode.ID))
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, resp.Booking.PaymentStatus)

	_, err = env.svc.Fulfill(ctx, domain.FulfillBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.svc.Fulfill(context.Background(), domain.FulfillBookingRequest{BookingID: resp.Booking.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTemple)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	req := env.salesRequest(env.cashMode.ID)
	req.Items = nil
	_, err := env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNoItems)

	req = env.salesRequest(env.cashMode.ID)
	req.Items[0].ItemType = domain.ItemTypeSession
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidItemType)

	req = env.salesRequest(env.cashMode.ID)
	req.DiscountAmount = decimal.NewFromInt(200)
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)

	req = env.salesRequest(env.cashMode.ID)
	req.PaymentAmount = decimal.NewFromInt(120)
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	req = env.salesRequest(env.cashMode.ID)
	req.PledgeAmount = decimal.NewFromInt(100)
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPledge)

	req = env.salesRequest(snowflake.ID(424242))
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrPaymentModeNotFound)

	_, err = env.svc.Submit(context.Background(), env.salesRequest(env.cashMode.ID))
	assert.ErrorIs(t, err, domain.ErrInvalidTemple)

	req = env.salesRequest(env.cashMode.ID)
	req.Kind = "RAFFLE"
	_, err = env.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestGatewayInstallmentRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, domain.SubmitBookingRequest{
		Kind:        domain.BookingTypeDonation,
		BookingDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Items: []domain.SubmitBookingItem{
			{
				ItemType:    domain.ItemTypeDonation,
				Description: "Building fund pledge",
				Quantity:    1,
				UnitPrice:   decimal.NewFromInt(1000),
			},
		},
		PledgeAmount:  decimal.NewFromInt(1000),
		PaymentModeID: env.cashMode.ID,
		PaymentType:   domain.PaymentTypePartial,
		PaymentAmount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	_, err = env.svc.RecordPledgePayment(ctx, domain.PledgePaymentRequest{
		BookingID:     resp.Booking.ID,
		PaymentModeID: env.gatewayMode.ID,
		Amount:        decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, domain.ErrGatewayInstallment)
}

func TestFindGatewayPayment(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(testCtx(), env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	payCtx, err := env.svc.FindGatewayPayment(context.Background(), resp.Payment.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, resp.Booking.ID, payCtx.Booking.ID)
	assert.Equal(t, "skey456", payCtx.Mode.SecretKey)

	_, err = env.svc.FindGatewayPayment(context.Background(), "PYL269999999")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestGetAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	first, err := env.svc.Submit(ctx, env.salesRequest(env.cashMode.ID))
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, env.salesRequest(env.gatewayMode.ID))
	require.NoError(t, err)

	detail, err := env.svc.GetByID(ctx, domain.GetBookingRequest{ID: first.Booking.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, first.Booking.BookingNumber, detail.Booking.BookingNumber)
	assert.Len(t, detail.Items, 1)
	assert.Len(t, detail.Payments, 1)
	assert.Nil(t, detail.Pledge)

	list, err := env.svc.List(ctx, domain.ListBookingRequest{Kind: domain.BookingTypeSales})
	require.NoError(t, err)
	assert.Len(t, list.Bookings, 2)

	page, err := env.svc.List(ctx, domain.ListBookingRequest{PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, page.Bookings, 1)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	rest, err := env.svc.List(ctx, domain.ListBookingRequest{PageSize: 1, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Bookings, 1)
	assert.NotEqual(t, page.Bookings[0].ID, rest.Bookings[0].ID)
}

func TestBookingNumbersUsePolicyWidths(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	resp, err := env.svc.Submit(ctx, domain.SubmitBookingRequest{
		Kind:        domain.BookingTypeHall,
		BookingDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Items: []domain.SubmitBookingItem{
			{
				ItemType:    domain.ItemTypeSession,
				Description: "Main hall, full day",
				Quantity:    1,
				UnitPrice:   decimal.NewFromInt(800),
			},
		},
		PaymentModeID: env.cashMode.ID,
		PaymentType:   domain.PaymentTypeFull,
		PaymentAmount: decimal.NewFromInt(800),
	})
	require.NoError(t, err)
	assert.Equal(t, "THAL260800000001", resp.Booking.BookingNumber)
}
