package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/viharalabs/templedesk/internal/booking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

type Repository struct {
	log *zap.Logger
}

func NewRepository(p Params) domain.Repository {
	return &Repository{log: p.Log.Named("booking.repository")}
}

func (r *Repository) InsertBooking(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error {
	return tx.WithContext(ctx).Create(booking).Error
}

func (r *Repository) InsertItems(ctx context.Context, tx *gorm.DB, items []domain.BookingItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *Repository) InsertPayment(ctx context.Context, tx *gorm.DB, payment *domain.BookingPayment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *Repository) InsertPledge(ctx context.Context, tx *gorm.DB, pledge *domain.BookingPledge) error {
	return tx.WithContext(ctx).Create(pledge).Error
}

func (r *Repository) FindBooking(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := tx.WithContext(ctx).
		Where("temple_id = ? AND id = ?", templeID, id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *Repository) FindBookingAnyTemple(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := tx.WithContext(ctx).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// forUpdate adds a row lock to the query. sqlite has a single writer and no
// FOR UPDATE syntax, so the clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *Repository) FindBookingForUpdate(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := forUpdate(tx.WithContext(ctx)).
		Where("temple_id = ? AND id = ?", templeID, id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *Repository) FindPledgeForUpdate(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (*domain.BookingPledge, error) {
	var pledge domain.BookingPledge
	err := forUpdate(tx.WithContext(ctx)).
		Where("booking_id = ?", bookingID).
		First(&pledge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pledge, nil
}

func (r *Repository) FindItems(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) ([]domain.BookingItem, error) {
	var items []domain.BookingItem
	err := tx.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *Repository) FindPayments(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) ([]domain.BookingPayment, error) {
	var payments []domain.BookingPayment
	err := tx.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

func (r *Repository) FindPledge(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (*domain.BookingPledge, error) {
	var pledge domain.BookingPledge
	err := tx.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&pledge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pledge, nil
}

func (r *Repository) FindPaymentByReference(ctx context.Context, tx *gorm.DB, reference string) (*domain.BookingPayment, error) {
	var payment domain.BookingPayment
	err := tx.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *Repository) FindPaymentMode(ctx context.Context, tx *gorm.DB, templeID, id snowflake.ID) (*domain.PaymentMode, error) {
	var mode domain.PaymentMode
	err := tx.WithContext(ctx).
		Where("temple_id = ? AND id = ?", templeID, id).
		First(&mode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentModeNotFound
		}
		return nil, err
	}
	return &mode, nil
}

func (r *Repository) ListBookings(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, filter domain.BookingFilter) ([]domain.Booking, error) {
	query := tx.WithContext(ctx).Where("temple_id = ?", templeID)
	if filter.Kind != "" {
		query = query.Where("booking_type = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("booking_status = ?", filter.Status)
	}
	if filter.Cursor > 0 {
		query = query.Where("id < ?", filter.Cursor)
	}

	var bookings []domain.Booking
	err := query.
		Order("id DESC").
		Limit(filter.Limit).
		Find(&bookings).Error
	return bookings, err
}

// MarkPaymentResult is the single idempotency gate for a tender: the WHERE
// clause only matches a PENDING row, so a redelivered result affects zero
// rows and the caller answers from stored state.
func (r *Repository) MarkPaymentResult(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID, to domain.TenderStatus, transactionID *string, paidAt *time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&domain.BookingPayment{}).
		Where("id = ? AND payment_status = ?", paymentID, domain.TenderStatusPending).
		Updates(map[string]any{
			"payment_status": to,
			"transaction_id": transactionID,
			"paid_at":        paidAt,
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateBookingState writes the joint status only. paid_amount is owned by
// the atomic AddPaidAmount increment; writing the in-memory copy here would
// clobber a concurrent increment.
func (r *Repository) UpdateBookingState(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error {
	return tx.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]any{
			"booking_status": booking.BookingStatus,
			"payment_status": booking.PaymentStatus,
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *Repository) ClaimInventoryStep(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (bool, error) {
	return r.claimStep(ctx, tx, bookingID, "inventory_migration")
}

func (r *Repository) ClaimAccountStep(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID) (bool, error) {
	return r.claimStep(ctx, tx, bookingID, "account_migration")
}

// claimStep flips a false flag to true. Zero rows affected means another
// settlement run already owns the step.
func (r *Repository) claimStep(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID, column string) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND "+column+" = ?", bookingID, false).
		Updates(map[string]any{
			column:       true,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) UpdatePledge(ctx context.Context, tx *gorm.DB, pledge *domain.BookingPledge) error {
	return tx.WithContext(ctx).
		Model(&domain.BookingPledge{}).
		Where("id = ?", pledge.ID).
		Updates(map[string]any{
			"pledge_balance": pledge.PledgeBalance,
			"pledge_status":  pledge.PledgeStatus,
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *Repository) AddPaidAmount(ctx context.Context, tx *gorm.DB, bookingID snowflake.ID, amount decimal.Decimal) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET paid_amount = paid_amount + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		amount,
		bookingID,
	).Error
}

func (r *Repository) FindStaleGatewayBookings(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := tx.WithContext(ctx).
		Where("booking_status = ? AND payment_status = ? AND created_at < ?",
			domain.BookingStatusPending,
			domain.PaymentStatusPending,
			cutoff,
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}
