// Package service implements the booking settlement orchestrator.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/clock"
	"github.com/viharalabs/templedesk/internal/config"
	"github.com/viharalabs/templedesk/internal/gateway"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"github.com/viharalabs/templedesk/internal/locks"
	"github.com/viharalabs/templedesk/internal/observability/metrics"
	"github.com/viharalabs/templedesk/internal/refseq"
	"github.com/viharalabs/templedesk/internal/templectx"
	"github.com/viharalabs/templedesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const expiryBatchSize = 100

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Repo      domain.Repository
	Seq       *refseq.Allocator
	Gateway   *gateway.Adapter
	Inventory inventorydomain.Adjuster
	Ledger    ledgerdomain.Service
	Metrics   *metrics.Metrics
	Locker    *locks.Locker `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       config.Config
	repo      domain.Repository
	seq       *refseq.Allocator
	gateway   *gateway.Adapter
	inventory inventorydomain.Adjuster
	ledger    ledgerdomain.Service
	metrics   *metrics.Metrics
	locker    *locks.Locker
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("booking.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Cfg,
		repo:      p.Repo,
		seq:       p.Seq,
		gateway:   p.Gateway,
		inventory: p.Inventory,
		ledger:    p.Ledger,
		metrics:   p.Metrics,
		locker:    p.Locker,
	}
}

// Submit creates the booking atomically with its lines, first tender and
// optional pledge. Direct tenders settle immediately; gateway tenders park
// the booking as PENDING until the callback arrives.
func (s *Service) Submit(ctx context.Context, req domain.SubmitBookingRequest) (domain.SubmitBookingResponse, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.SubmitBookingResponse{}, domain.ErrInvalidTemple
	}

	policy, err := domain.PolicyFor(req.Kind)
	if err != nil {
		return domain.SubmitBookingResponse{}, err
	}
	subtotal, err := validateItems(policy, req.Items)
	if err != nil {
		return domain.SubmitBookingResponse{}, err
	}
	if req.DiscountAmount.Sign() < 0 || req.DiscountAmount.GreaterThan(subtotal) {
		return domain.SubmitBookingResponse{}, domain.ErrInvalidDiscount
	}
	total := subtotal.Sub(req.DiscountAmount)

	if req.PledgeAmount.Sign() > 0 {
		if !policy.AllowsPledge {
			return domain.SubmitBookingResponse{}, domain.ErrInvalidPledge
		}
		if !req.PledgeAmount.Equal(total) {
			return domain.SubmitBookingResponse{}, domain.ErrInvalidPledge
		}
	}
	if req.PaymentAmount.Sign() <= 0 || req.PaymentAmount.GreaterThan(total) {
		return domain.SubmitBookingResponse{}, domain.ErrInvalidAmount
	}
	if req.PaymentType == domain.PaymentTypeFull && !req.PaymentAmount.Equal(total) {
		return domain.SubmitBookingResponse{}, domain.ErrInvalidAmount
	}

	mode, err := s.repo.FindPaymentMode(ctx, s.db, templeID, req.PaymentModeID)
	if err != nil {
		return domain.SubmitBookingResponse{}, err
	}
	if !mode.IsActive {
		return domain.SubmitBookingResponse{}, domain.ErrPaymentModeInactive
	}
	if mode.IsPaymentGateway && !req.PaymentAmount.Equal(total) && req.PledgeAmount.Sign() <= 0 {
		// The hosted page collects one amount; partial direct top-ups are
		// a counter operation.
		return domain.SubmitBookingResponse{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	actor := templectx.ActorIDFromContext(ctx)

	var (
		booking domain.Booking
		payment domain.BookingPayment
		pledge  *domain.BookingPledge
		items   []domain.BookingItem
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(ctx, tx, templeID, policy.SequenceScope, policy.BookingPrefix(s.cfg.IsProduction()), policy.NumberWidth, now)
		if err != nil {
			return err
		}
		reference, err := s.nextPaymentReference(ctx, tx, templeID, mode.IsPaymentGateway, now)
		if err != nil {
			return err
		}

		booking = domain.Booking{
			ID:             s.genID.Generate(),
			TempleID:       templeID,
			BookingNumber:  number,
			BookingType:    req.Kind,
			BookingDate:    req.BookingDate,
			BookingStatus:  domain.BookingStatusPending,
			PaymentStatus:  domain.PaymentStatusPending,
			Subtotal:       subtotal,
			DiscountAmount: req.DiscountAmount,
			DepositAmount:  req.DepositAmount,
			TotalAmount:    total,
			PaidAmount:     decimal.Zero,
			Meta:           datatypes.JSONMap(req.Meta),
			CreatedBy:      actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if !mode.IsPaymentGateway {
			// Direct tenders confirm inline; the money is already in hand.
			booking.BookingStatus = domain.BookingStatusConfirmed
			booking.PaidAmount = req.PaymentAmount
			booking.PaymentStatus = domain.ComputePaymentStatus(req.PaymentAmount, total)
		}
		if err := s.repo.InsertBooking(ctx, tx, &booking); err != nil {
			return err
		}

		items = buildItems(s.genID, booking, req.Items)
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}

		payment = domain.BookingPayment{
			ID:               s.genID.Generate(),
			TempleID:         templeID,
			BookingID:        booking.ID,
			PaymentReference: reference,
			Amount:           req.PaymentAmount,
			PaymentModeID:    mode.ID,
			PaymentType:      req.PaymentType,
			PaymentStatus:    domain.TenderStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if !mode.IsPaymentGateway {
			paidAt := now
			payment.PaymentStatus = domain.TenderStatusSuccess
			payment.PaidAt = &paidAt
		}
		if err := s.repo.InsertPayment(ctx, tx, &payment); err != nil {
			return err
		}

		if req.PledgeAmount.Sign() > 0 {
			balance := req.PledgeAmount
			if !mode.IsPaymentGateway {
				balance = balance.Sub(req.PaymentAmount)
			}
			status := domain.PledgeStatusOpen
			if balance.Sign() <= 0 {
				status = domain.PledgeStatusFulfilled
			}
			pledge = &domain.BookingPledge{
				ID:            s.genID.Generate(),
				TempleID:      templeID,
				BookingID:     booking.ID,
				PledgeAmount:  req.PledgeAmount,
				PledgeBalance: balance,
				PledgeStatus:  status,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return s.repo.InsertPledge(ctx, tx, pledge)
		}
		return nil
	})
	if err != nil {
		return domain.SubmitBookingResponse{}, err
	}

	tender := "direct"
	if mode.IsPaymentGateway {
		tender = "gateway"
	}
	s.metrics.BookingsSubmitted.WithLabelValues(string(req.Kind), tender).Inc()
	s.log.Info("booking submitted",
		zap.String("booking_number", booking.BookingNumber),
		zap.String("kind", string(req.Kind)),
		zap.String("tender", tender),
	)

	resp := domain.SubmitBookingResponse{Booking: booking, Payment: payment, Pledge: pledge}
	if mode.IsPaymentGateway {
		redirect, err := s.gateway.BuildRedirect(gateway.RedirectRequest{
			Credentials: gateway.Credentials{
				MerchantID: mode.MerchantID,
				VerifyKey:  mode.VerifyKey,
				SecretKey:  mode.SecretKey,
			},
			OrderID:    payment.PaymentReference,
			Amount:     payment.Amount,
			BillName:   req.Bill.Name,
			BillEmail:  req.Bill.Email,
			BillMobile: req.Bill.Mobile,
			BillDesc:   req.Bill.Desc,
		})
		if err != nil {
			return domain.SubmitBookingResponse{}, err
		}
		resp.Redirect = &redirect
		return resp, nil
	}

	s.settle(ctx, &booking, items, mode)
	resp.Booking = booking
	return resp, nil
}

func (s *Service) nextPaymentReference(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, viaGateway bool, now time.Time) (string, error) {
	scope, prefix := domain.PaymentRefScopeDirect, domain.PaymentRefPrefixDirect
	if viaGateway {
		scope, prefix = domain.PaymentRefScopeGateway, domain.PaymentRefPrefixGateway
	}
	return s.seq.Next(ctx, tx, templeID, scope, prefix, domain.PaymentRefWidth, now)
}

func validateItems(policy domain.KindPolicy, items []domain.SubmitBookingItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, domain.ErrNoItems
	}
	subtotal := decimal.Zero
	for _, item := range items {
		if !policy.AllowsItemType(item.ItemType) {
			return decimal.Zero, domain.ErrInvalidItemType
		}
		if item.Quantity <= 0 {
			return decimal.Zero, domain.ErrInvalidQuantity
		}
		if item.UnitPrice.Sign() < 0 {
			return decimal.Zero, domain.ErrInvalidUnitPrice
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return subtotal, nil
}

func buildItems(genID *snowflake.Node, booking domain.Booking, in []domain.SubmitBookingItem) []domain.BookingItem {
	items := make([]domain.BookingItem, 0, len(in))
	for _, item := range in {
		items = append(items, domain.BookingItem{
			ID:             genID.Generate(),
			TempleID:       booking.TempleID,
			BookingID:      booking.ID,
			ItemType:       item.ItemType,
			StockItemID:    item.StockItemID,
			IncomeLedgerID: item.IncomeLedgerID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TotalPrice:     item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)),
			Meta:           datatypes.JSONMap(item.Meta),
			CreatedAt:      booking.CreatedAt,
		})
	}
	return items
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelBookingRequest) (domain.Booking, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.Booking{}, domain.ErrInvalidTemple
	}

	var cancelled domain.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindBookingForUpdate(ctx, tx, templeID, req.BookingID)
		if err != nil {
			return err
		}
		if !booking.State().CanCancel() {
			return domain.ErrInvalidTransition
		}

		booking.BookingStatus = domain.BookingStatusCancelled
		if booking.PaidAmount.Sign() > 0 {
			booking.PaymentStatus = domain.PaymentStatusRefunded
		} else {
			booking.PaymentStatus = domain.PaymentStatusFailed
		}
		if err := s.repo.UpdateBookingState(ctx, tx, booking); err != nil {
			return err
		}

		// Close out any tender still waiting on the gateway so a late
		// callback cannot resurrect the booking.
		payments, err := s.repo.FindPayments(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		for _, payment := range payments {
			if payment.PaymentStatus != domain.TenderStatusPending {
				continue
			}
			if _, err := s.repo.MarkPaymentResult(ctx, tx, payment.ID, domain.TenderStatusFailed, nil, nil); err != nil {
				return err
			}
		}

		cancelled = *booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.log.Info("booking cancelled",
		zap.String("booking_number", cancelled.BookingNumber),
		zap.String("reason", req.Reason),
	)
	return cancelled, nil
}

// Fulfill closes out a delivered booking. Only fulfillable kinds carry a
// delivery step, and only a fully paid booking can complete.
func (s *Service) Fulfill(ctx context.Context, req domain.FulfillBookingRequest) (domain.Booking, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.Booking{}, domain.ErrInvalidTemple
	}

	var fulfilled domain.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindBookingForUpdate(ctx, tx, templeID, req.BookingID)
		if err != nil {
			return err
		}
		policy, err := domain.PolicyFor(booking.BookingType)
		if err != nil {
			return err
		}
		next := domain.State{Booking: domain.BookingStatusCompleted, Payment: domain.PaymentStatusPaid}
		if !policy.Fulfillable || !domain.CanTransition(booking.State(), next) {
			return domain.ErrInvalidTransition
		}

		booking.BookingStatus = next.Booking
		booking.PaymentStatus = next.Payment
		if err := s.repo.UpdateBookingState(ctx, tx, booking); err != nil {
			return err
		}
		fulfilled = *booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.log.Info("booking fulfilled",
		zap.String("booking_number", fulfilled.BookingNumber),
	)
	return fulfilled, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetBookingRequest) (domain.BookingDetail, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.BookingDetail{}, domain.ErrInvalidTemple
	}
	id, err := snowflake.ParseString(req.ID)
	if err != nil {
		return domain.BookingDetail{}, domain.ErrBookingNotFound
	}

	booking, err := s.repo.FindBooking(ctx, s.db, templeID, id)
	if err != nil {
		return domain.BookingDetail{}, err
	}
	items, err := s.repo.FindItems(ctx, s.db, booking.ID)
	if err != nil {
		return domain.BookingDetail{}, err
	}
	payments, err := s.repo.FindPayments(ctx, s.db, booking.ID)
	if err != nil {
		return domain.BookingDetail{}, err
	}
	pledge, err := s.repo.FindPledge(ctx, s.db, booking.ID)
	if err != nil {
		return domain.BookingDetail{}, err
	}

	return domain.BookingDetail{
		Booking:  *booking,
		Items:    items,
		Payments: payments,
		Pledge:   pledge,
	}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBookingRequest) (domain.ListBookingResponse, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.ListBookingResponse{}, domain.ErrInvalidTemple
	}

	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 10
	}
	filter := domain.BookingFilter{
		Kind:   req.Kind,
		Status: req.Status,
		Limit:  limit + 1,
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			if id, perr := snowflake.ParseString(cursor.ID); perr == nil {
				filter.Cursor = id
			}
		}
	}

	bookings, err := s.repo.ListBookings(ctx, s.db, templeID, filter)
	if err != nil {
		return domain.ListBookingResponse{}, err
	}

	page := make([]*domain.Booking, len(bookings))
	for i := range bookings {
		page[i] = &bookings[i]
	}
	page, info := pagination.BuildPageInfo(page, limit, func(b *domain.Booking) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: b.ID.String()})
		return token
	})

	out := make([]domain.Booking, len(page))
	for i := range page {
		out[i] = *page[i]
	}
	return domain.ListBookingResponse{PageInfo: info, Bookings: out}, nil
}

// ExpireStale cancels gateway bookings that never received a result.
func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	stale, err := s.repo.FindStaleGatewayBookings(ctx, s.db, cutoff, expiryBatchSize)
	if err != nil {
		return 0, err
	}

	var expired int64
	for _, booking := range stale {
		booking := booking
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			payments, err := s.repo.FindPayments(ctx, tx, booking.ID)
			if err != nil {
				return err
			}
			for _, payment := range payments {
				if payment.PaymentStatus != domain.TenderStatusPending {
					continue
				}
				// A concurrent callback wins the race: zero rows here
				// means the tender just resolved, leave the booking alone.
				ok, err := s.repo.MarkPaymentResult(ctx, tx, payment.ID, domain.TenderStatusFailed, nil, nil)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			booking.BookingStatus = domain.BookingStatusCancelled
			booking.PaymentStatus = domain.PaymentStatusFailed
			if err := s.repo.UpdateBookingState(ctx, tx, &booking); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			s.log.Warn("expiry sweep failed for booking",
				zap.String("booking_number", booking.BookingNumber),
				zap.Error(err),
			)
			continue
		}
	}

	if expired > 0 {
		s.metrics.ExpiredBookings.Add(float64(expired))
		s.log.Info("expired stale gateway bookings", zap.Int64("count", expired))
	}
	return expired, nil
}
