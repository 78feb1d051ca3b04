package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/templectx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordPledgePayment records one counter installment against an open
// pledge. The installment that clears the balance marks the pledge
// FULFILLED and triggers the ledger posting.
func (s *Service) RecordPledgePayment(ctx context.Context, req domain.PledgePaymentRequest) (domain.SettlementOutcome, error) {
	templeID, ok := templectx.TempleIDFromContext(ctx)
	if !ok || templeID == 0 {
		return domain.SettlementOutcome{}, domain.ErrInvalidTemple
	}
	if req.Amount.Sign() <= 0 {
		return domain.SettlementOutcome{}, domain.ErrInvalidAmount
	}

	mode, err := s.repo.FindPaymentMode(ctx, s.db, templeID, req.PaymentModeID)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}
	if !mode.IsActive {
		return domain.SettlementOutcome{}, domain.ErrPaymentModeInactive
	}
	if mode.IsPaymentGateway {
		return domain.SettlementOutcome{}, domain.ErrGatewayInstallment
	}

	now := s.clock.Now().UTC()

	var (
		booking domain.Booking
		payment domain.BookingPayment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row locks serialize concurrent installments; the balance check
		// below is only sound against a locked row.
		found, err := s.repo.FindBookingForUpdate(ctx, tx, templeID, req.BookingID)
		if err != nil {
			return err
		}
		pledge, err := s.repo.FindPledgeForUpdate(ctx, tx, found.ID)
		if err != nil {
			return err
		}
		if pledge == nil {
			return domain.ErrNotPledge
		}
		if pledge.PledgeStatus != domain.PledgeStatusOpen || req.Amount.GreaterThan(pledge.PledgeBalance) {
			return domain.ErrPledgeExceeded
		}
		if found.BookingStatus != domain.BookingStatusConfirmed {
			return domain.ErrInvalidTransition
		}

		reference, err := s.nextPaymentReference(ctx, tx, templeID, false, now)
		if err != nil {
			return err
		}
		paidAt := now
		payment = domain.BookingPayment{
			ID:               s.genID.Generate(),
			TempleID:         templeID,
			BookingID:        found.ID,
			PaymentReference: reference,
			Amount:           req.Amount,
			PaymentModeID:    mode.ID,
			PaymentType:      domain.PaymentTypePartial,
			PaymentStatus:    domain.TenderStatusSuccess,
			PaidAt:           &paidAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.InsertPayment(ctx, tx, &payment); err != nil {
			return err
		}
		if err := s.repo.AddPaidAmount(ctx, tx, found.ID, req.Amount); err != nil {
			return err
		}
		found.PaidAmount = found.PaidAmount.Add(req.Amount)
		found.PaymentStatus = domain.ComputePaymentStatus(found.PaidAmount, found.TotalAmount)
		if err := s.repo.UpdateBookingState(ctx, tx, found); err != nil {
			return err
		}
		if err := s.reducePledge(ctx, tx, pledge, req.Amount); err != nil {
			return err
		}

		booking = *found
		return nil
	})
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	s.log.Info("pledge installment recorded",
		zap.String("booking_number", booking.BookingNumber),
		zap.String("amount", req.Amount.StringFixed(2)),
	)

	if booking.PaymentStatus == domain.PaymentStatusPaid {
		items, err := s.repo.FindItems(ctx, s.db, booking.ID)
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		s.settle(ctx, &booking, items, mode)
	}

	return domain.SettlementOutcome{Booking: booking, Payment: payment}, nil
}

// applyPledgeInstallment mirrors a successful gateway tender into the
// booking's pledge, if it has one.
func (s *Service) applyPledgeInstallment(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID, amount decimal.Decimal) error {
	pledge, err := s.repo.FindPledgeForUpdate(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if pledge == nil || pledge.PledgeStatus != domain.PledgeStatusOpen {
		return nil
	}
	return s.reducePledge(ctx, tx, pledge, amount)
}

func (s *Service) reducePledge(ctx context.Context, tx *gorm.DB, pledge *domain.BookingPledge, amount decimal.Decimal) error {
	pledge.PledgeBalance = pledge.PledgeBalance.Sub(amount)
	if pledge.PledgeBalance.Sign() <= 0 {
		pledge.PledgeBalance = decimal.Zero
		pledge.PledgeStatus = domain.PledgeStatusFulfilled
	}
	return s.repo.UpdatePledge(ctx, tx, pledge)
}
