package service

import (
	"context"
	"time"

	"github.com/viharalabs/templedesk/internal/booking/domain"
	inventorydomain "github.com/viharalabs/templedesk/internal/inventory/domain"
	ledgerdomain "github.com/viharalabs/templedesk/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const gatewayLockTTL = 30 * time.Second

// FindGatewayPayment resolves the gateway's orderid back to the tender,
// booking and merchant credentials needed to verify the callback.
func (s *Service) FindGatewayPayment(ctx context.Context, paymentReference string) (domain.GatewayPaymentContext, error) {
	payment, err := s.repo.FindPaymentByReference(ctx, s.db, paymentReference)
	if err != nil {
		return domain.GatewayPaymentContext{}, err
	}
	booking, err := s.repo.FindBookingAnyTemple(ctx, s.db, payment.BookingID)
	if err != nil {
		return domain.GatewayPaymentContext{}, err
	}
	mode, err := s.repo.FindPaymentMode(ctx, s.db, booking.TempleID, payment.PaymentModeID)
	if err != nil {
		return domain.GatewayPaymentContext{}, err
	}
	return domain.GatewayPaymentContext{
		Booking: *booking,
		Payment: *payment,
		Mode:    *mode,
	}, nil
}

// ConfirmGatewayResult applies a verified gateway result exactly once. The
// tender's PENDING to terminal flip is the idempotency gate; a redelivery
// misses the compare-and-set and is answered from stored state with
// ErrAlreadyProcessed.
func (s *Service) ConfirmGatewayResult(ctx context.Context, req domain.ConfirmGatewayRequest) (domain.SettlementOutcome, error) {
	payment, err := s.repo.FindPaymentByReference(ctx, s.db, req.PaymentReference)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}
	booking, err := s.repo.FindBookingAnyTemple(ctx, s.db, payment.BookingID)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	// Best effort: serialize concurrent deliveries of the same result so
	// only one replica does the work. Correctness does not depend on the
	// lock; the compare-and-set below is the real gate.
	if s.locker != nil {
		key := "templedesk:gateway:" + req.PaymentReference
		if token, ok, err := s.locker.TryLock(ctx, key, gatewayLockTTL); err == nil && ok {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("gateway lock release failed", zap.Error(err))
				}
			}()
		}
	}

	applied := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		to := domain.TenderStatusFailed
		var paidAt *time.Time
		var transactionID *string
		if req.Success {
			to = domain.TenderStatusSuccess
			at := req.PaidAt.UTC()
			paidAt = &at
		}
		if req.TransactionID != "" {
			transactionID = &req.TransactionID
		}

		ok, err := s.repo.MarkPaymentResult(ctx, tx, payment.ID, to, transactionID, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		// Re-read under a row lock; the paid amount and joint status must
		// be derived from the current row, not the pre-transaction copy.
		locked, err := s.repo.FindBookingForUpdate(ctx, tx, booking.TempleID, booking.ID)
		if err != nil {
			return err
		}

		if req.Success {
			if err := s.repo.AddPaidAmount(ctx, tx, locked.ID, payment.Amount); err != nil {
				return err
			}
			locked.PaidAmount = locked.PaidAmount.Add(payment.Amount)
			if locked.BookingStatus == domain.BookingStatusPending {
				locked.BookingStatus = domain.BookingStatusConfirmed
			}
			locked.PaymentStatus = domain.ComputePaymentStatus(locked.PaidAmount, locked.TotalAmount)
			if err := s.repo.UpdateBookingState(ctx, tx, locked); err != nil {
				return err
			}
			*booking = *locked
			return s.applyPledgeInstallment(ctx, tx, locked.ID, payment.Amount)
		}

		// Failed result: only an unconfirmed booking dies with its tender.
		// Installment failures against a confirmed booking change nothing.
		if locked.State().AwaitingGateway() {
			locked.BookingStatus = domain.BookingStatusCancelled
			locked.PaymentStatus = domain.PaymentStatusFailed
			if err := s.repo.UpdateBookingState(ctx, tx, locked); err != nil {
				return err
			}
		}
		*booking = *locked
		return nil
	})
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	if !applied {
		stored, err := s.repo.FindPaymentByReference(ctx, s.db, req.PaymentReference)
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		current, err := s.repo.FindBookingAnyTemple(ctx, s.db, payment.BookingID)
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		s.metrics.GatewayCallbacks.WithLabelValues("duplicate").Inc()
		return domain.SettlementOutcome{
			Booking:          *current,
			Payment:          *stored,
			AlreadyProcessed: true,
		}, domain.ErrAlreadyProcessed
	}

	result := "failed"
	if req.Success {
		result = "success"
	}
	s.metrics.GatewayCallbacks.WithLabelValues(result).Inc()
	s.log.Info("gateway result applied",
		zap.String("payment_reference", req.PaymentReference),
		zap.String("result", result),
	)

	payment, err = s.repo.FindPaymentByReference(ctx, s.db, req.PaymentReference)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	if req.Success {
		items, err := s.repo.FindItems(ctx, s.db, booking.ID)
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		mode, err := s.repo.FindPaymentMode(ctx, s.db, booking.TempleID, payment.PaymentModeID)
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		s.settle(ctx, booking, items, mode)
	}

	return domain.SettlementOutcome{Booking: *booking, Payment: *payment}, nil
}

// settle runs the post-payment side effects, each in its own transaction
// guarded by a one-way flag so a crash between steps is retried without
// double-applying either one. Failures are logged, never propagated: the
// payment is already recorded and the steps rerun on the next settlement
// trigger for this booking.
func (s *Service) settle(ctx context.Context, booking *domain.Booking, items []domain.BookingItem, mode *domain.PaymentMode) {
	policy, err := domain.PolicyFor(booking.BookingType)
	if err != nil {
		s.log.Error("settlement skipped", zap.Error(err))
		return
	}

	if policy.TracksInventory {
		if err := s.settleInventory(ctx, booking, items); err != nil {
			s.metrics.Settlements.WithLabelValues(string(booking.BookingType), "inventory_error").Inc()
			s.log.Error("inventory settlement failed",
				zap.String("booking_number", booking.BookingNumber),
				zap.Error(err),
			)
		}
	}

	// Income is recognised once, when the booking is fully paid. Pledges
	// and deposits post on the installment that closes the balance.
	if booking.PaymentStatus == domain.PaymentStatusPaid {
		if err := s.settleLedger(ctx, booking, items, mode); err != nil {
			s.metrics.Settlements.WithLabelValues(string(booking.BookingType), "ledger_error").Inc()
			s.log.Error("ledger settlement failed",
				zap.String("booking_number", booking.BookingNumber),
				zap.Error(err),
			)
			return
		}
	}

	s.metrics.Settlements.WithLabelValues(string(booking.BookingType), "ok").Inc()
}

func (s *Service) settleInventory(ctx context.Context, booking *domain.Booking, items []domain.BookingItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.repo.ClaimInventoryStep(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		for _, item := range items {
			if item.StockItemID == nil {
				continue
			}
			err := s.inventory.Deduct(ctx, tx, inventorydomain.DeductRequest{
				TempleID:      booking.TempleID,
				StockItemID:   *item.StockItemID,
				Quantity:      item.Quantity,
				ReasonCode:    inventorydomain.ReasonCodeSale,
				BookingID:     booking.ID,
				BookingItemID: item.ID,
			})
			if err != nil {
				return err
			}
			s.metrics.StockDeductions.Inc()
		}
		return nil
	})
}

func (s *Service) settleLedger(ctx context.Context, booking *domain.Booking, items []domain.BookingItem, mode *domain.PaymentMode) error {
	if mode.LedgerID == 0 {
		return ledgerdomain.ErrLedgerUnconfigured
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.repo.ClaimAccountStep(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		postings := make([]ledgerdomain.PostingItem, 0, len(items))
		for _, item := range items {
			postings = append(postings, ledgerdomain.PostingItem{
				Description:    item.Description,
				Amount:         item.TotalPrice,
				IncomeLedgerID: item.IncomeLedgerID,
			})
		}

		_, err = s.ledger.PostBooking(ctx, tx, ledgerdomain.PostBookingRequest{
			TempleID:      booking.TempleID,
			BookingID:     booking.ID,
			BookingType:   string(booking.BookingType),
			BookingNumber: booking.BookingNumber,
			Date:          s.clock.Now().UTC(),
			Subtotal:      booking.Subtotal,
			Discount:      booking.DiscountAmount,
			PaidAmount:    booking.PaidAmount,
			DebitLedgerID: mode.LedgerID,
			Items:         postings,
		})
		if err != nil {
			return err
		}
		s.metrics.LedgerEntries.Inc()
		return nil
	})
}
