package domain

import "github.com/shopspring/decimal"

// State is the joint (booking, payment) settlement state.
type State struct {
	Booking BookingStatus
	Payment PaymentStatus
}

// ComputePaymentStatus derives the payment half from amounts.
func ComputePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	if paid.Sign() <= 0 {
		return PaymentStatusPending
	}
	if paid.LessThan(total) {
		return PaymentStatusPartial
	}
	return PaymentStatusPaid
}

// Valid joint states. Anything else is a bug in the orchestrator.
func (s State) Valid() bool {
	switch s.Booking {
	case BookingStatusPending:
		return s.Payment == PaymentStatusPending
	case BookingStatusConfirmed:
		return s.Payment == PaymentStatusPending ||
			s.Payment == PaymentStatusPartial ||
			s.Payment == PaymentStatusPaid
	case BookingStatusCompleted:
		return s.Payment == PaymentStatusPaid
	case BookingStatusCancelled:
		return s.Payment == PaymentStatusFailed || s.Payment == PaymentStatusRefunded
	default:
		return false
	}
}

// CanCancel reports whether administrative cancellation is permitted:
// only non-terminal, non-completed states.
func (s State) CanCancel() bool {
	switch s.Booking {
	case BookingStatusPending:
		return true
	case BookingStatusConfirmed:
		return s.Payment != PaymentStatusPaid
	default:
		return false
	}
}

// CanFulfill reports whether the booking may move to COMPLETED.
func (s State) CanFulfill() bool {
	return s.Booking == BookingStatusConfirmed && s.Payment == PaymentStatusPaid
}

// AwaitingGateway reports whether the booking is parked on an external
// payment result.
func (s State) AwaitingGateway() bool {
	return s.Booking == BookingStatusPending && s.Payment == PaymentStatusPending
}

// CanTransition validates one edge of the settlement state machine.
func CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch {
	case from.AwaitingGateway():
		// Gateway result: paid, rejected, or expired.
		return (to.Booking == BookingStatusConfirmed && to.Payment == PaymentStatusPaid) ||
			(to.Booking == BookingStatusCancelled && to.Payment == PaymentStatusFailed)
	case from.Booking == BookingStatusConfirmed:
		if to.Booking == BookingStatusConfirmed {
			// Pledge/partial top-ups only move the payment status forward.
			return paymentRank(to.Payment) >= paymentRank(from.Payment)
		}
		if to.Booking == BookingStatusCompleted {
			return from.CanFulfill() && to.Payment == PaymentStatusPaid
		}
		if to.Booking == BookingStatusCancelled {
			return from.CanCancel()
		}
		return false
	default:
		return false
	}
}

func paymentRank(p PaymentStatus) int {
	switch p {
	case PaymentStatusPending:
		return 0
	case PaymentStatusPartial:
		return 1
	case PaymentStatusPaid:
		return 2
	default:
		return -1
	}
}
