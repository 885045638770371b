package ledgerRepo

import (
	"context"
	"errors"
	"time"

	"slotify/models"
)

// Sentinel errors surfaced by ledger operations. Services translate these
// into their public error taxonomy.
var (
	ErrNotFound      = errors.New("ledger: not found")
	ErrDuplicateHold = errors.New("ledger: slot already held")
	ErrHoldExpired   = errors.New("ledger: reservation hold expired")
	ErrSlotTaken     = errors.New("ledger: slot taken by another booking")
	ErrStaleStatus   = errors.New("ledger: status changed concurrently")
)

// ConfirmParams carries the identifiers needed to atomically promote a
// pending booking into a confirmed one against its captured payment.
type ConfirmParams struct {
	BookingID        string
	PaymentID        string
	ReservationID    string
	GatewayPaymentID string
	Now              time.Time
}

// LedgerRepository is the durable store for bookings, slot reservations and
// payments. All slot-claiming writes behave as serializable check-then-act
// over (providerID, start, end).
type LedgerRepository interface {
	// Bookings.
	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	// FindOverlapping returns bookings in {pending, confirmed} whose
	// [start, end) intersects the given interval. excludeID may be empty.
	FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]models.Booking, error)
	// BusyIntervals returns the occupied intervals of a provider inside
	// [from, to) for availability subtraction.
	BusyIntervals(ctx context.Context, providerID string, from, to time.Time) ([]models.Interval, error)
	// TransitionBooking moves a booking from one status to another, guarded
	// on the current status, appending the audit entry in the same write.
	TransitionBooking(ctx context.Context, id, from, to string, change models.StatusChange) error
	// DiscardPendingBooking removes a pending booking whose hold lapsed or
	// whose gateway order could not be opened. Pending bookings are
	// discarded, not marked expired.
	DiscardPendingBooking(ctx context.Context, id string) error
	ListBookingsByCustomer(ctx context.Context, customerID string, limit int64) ([]models.Booking, error)
	ListBookingsByProvider(ctx context.Context, providerID string, from, to time.Time) ([]models.Booking, error)

	// Reservations.
	InsertReservation(ctx context.Context, r *models.Reservation) error
	GetReservationByToken(ctx context.Context, token string) (*models.Reservation, error)
	GetReservationByOrderID(ctx context.Context, orderID string) (*models.Reservation, error)
	AttachGatewayOrder(ctx context.Context, reservationID, orderID string) error
	ReleaseReservation(ctx context.Context, reservationID string) error

	// Payments.
	InsertPayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	// MarkPaymentCaptured advances a payment to captured. bookingID may be
	// empty when funds were captured but the slot was lost.
	MarkPaymentCaptured(ctx context.Context, paymentID, gatewayPaymentID, bookingID string, change models.StatusChange) error
	// ApplyRefund records refunded money, guarded so that the stored
	// refund_amount equals prevRefunded and newRefunded never exceeds the
	// captured amount.
	ApplyRefund(ctx context.Context, paymentID string, prevRefunded, newRefunded int64, at time.Time, toStatus string, change models.StatusChange) error

	// ConfirmBookingPayment runs the critical section: inside one
	// transaction it re-checks the hold is live, re-checks no committed
	// booking overlaps, captures the payment and confirms the booking.
	ConfirmBookingPayment(ctx context.Context, p ConfirmParams) (*models.Booking, error)

	// SweepExpiredPending discards pending bookings whose reservation hold
	// is gone, and fails payments whose order never completed.
	SweepExpiredPending(ctx context.Context, bookingCutoff, paymentCutoff time.Time) (int, error)
}
