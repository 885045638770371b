package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	"slotify/models"
)

// DefaultLedgerService drives booking lifecycle transitions after
// confirmation: completion by the provider, cancellation, rejection of
// stale pending bookings.
type DefaultLedgerService struct {
	Ledger  ledgerRepo.LedgerRepository
	Refunds RefundOpener
	Logger  *zap.Logger
}

// GetBooking returns a booking by id.
func (s *DefaultLedgerService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Ledger.GetBookingByID(ctx, id)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, NewValidationError("unknown booking %s", id)
	}
	return b, err
}

// ListCustomerBookings returns a customer's bookings, newest first.
func (s *DefaultLedgerService) ListCustomerBookings(ctx context.Context, customerID string, limit int64) ([]models.Booking, error) {
	return s.Ledger.ListBookingsByCustomer(ctx, customerID, limit)
}

// ListProviderBookings returns a provider's bookings inside a window.
func (s *DefaultLedgerService) ListProviderBookings(ctx context.Context, providerID string, from, to time.Time) ([]models.Booking, error) {
	return s.Ledger.ListBookingsByProvider(ctx, providerID, from, to)
}

// Complete moves a confirmed booking to completed. Only a provider or admin
// action reaches this.
func (s *DefaultLedgerService) Complete(ctx context.Context, bookingID, actor string) (*models.Booking, error) {
	change := models.NewStatusChange(models.BookingStatusConfirmed, models.BookingStatusCompleted, actor, "service delivered")
	if err := s.transition(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusCompleted, change); err != nil {
		return nil, err
	}
	return s.Ledger.GetBookingByID(ctx, bookingID)
}

// Cancel handles a provider- or admin-initiated cancellation of a confirmed
// booking. When a captured payment exists the booking is not cancelled
// directly: a refund request is opened and the refund coordinator cancels
// the booking once the gateway reversal settles.
func (s *DefaultLedgerService) Cancel(ctx context.Context, bookingID, actor, reason string) (*models.Booking, *models.RefundRequest, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, nil, NewInvalidTransition("booking %s is %s, only confirmed bookings can be cancelled", bookingID, b.Status)
	}

	if b.PaymentID != "" {
		req, err := s.Refunds.Open(ctx, b.PaymentID, actor, 0, reason)
		if err != nil {
			return nil, nil, err
		}
		s.Logger.Info("cancellation opened refund request",
			zap.String("bookingID", bookingID),
			zap.String("refundRequestID", req.ID),
			zap.String("actor", actor))
		return b, req, nil
	}

	change := models.NewStatusChange(models.BookingStatusConfirmed, models.BookingStatusCancelled, actor, reason)
	if err := s.transition(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled, change); err != nil {
		return nil, nil, err
	}
	cancelled, err := s.Ledger.GetBookingByID(ctx, bookingID)
	return cancelled, nil, err
}

// Reject declines a pending booking (timeout or explicit decline).
func (s *DefaultLedgerService) Reject(ctx context.Context, bookingID, actor, reason string) (*models.Booking, error) {
	change := models.NewStatusChange(models.BookingStatusPending, models.BookingStatusRejected, actor, reason)
	if err := s.transition(ctx, bookingID, models.BookingStatusPending, models.BookingStatusRejected, change); err != nil {
		return nil, err
	}
	return s.Ledger.GetBookingByID(ctx, bookingID)
}

func (s *DefaultLedgerService) transition(ctx context.Context, bookingID, from, to string, change models.StatusChange) error {
	err := s.Ledger.TransitionBooking(ctx, bookingID, from, to, change)
	switch {
	case errors.Is(err, ledgerRepo.ErrNotFound):
		return NewValidationError("unknown booking %s", bookingID)
	case errors.Is(err, ledgerRepo.ErrStaleStatus):
		return NewInvalidTransition("booking %s is not %s", bookingID, from)
	}
	return err
}
