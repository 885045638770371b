package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	providerRepo "slotify/database/repository/provider"
	"slotify/models"
)

// DefaultOrderIssuer reserves slots and opens gateway orders for them.
type DefaultOrderIssuer struct {
	Providers providerRepo.ProviderRepository
	Ledger    ledgerRepo.LedgerRepository
	Gateway   PaymentGateway
	Logger    *zap.Logger
	HoldTTL   time.Duration
}

// IssueOrder re-validates the requested slot against the live ledger,
// persists a TTL-bounded hold plus a pending booking, and opens a payment
// order at the gateway. The hold, not a lock, is what protects the slot
// while payment is in flight.
func (s *DefaultOrderIssuer) IssueOrder(ctx context.Context, req IssueOrderRequest) (*IssueOrderResult, error) {
	if err := validateIssueRequest(req); err != nil {
		return nil, err
	}

	// A client retry after a network timeout replays the same token and
	// gets the original order back instead of a second hold.
	if req.RequestToken != "" {
		if prior, err := s.Ledger.GetReservationByToken(ctx, req.RequestToken); err == nil {
			return s.replayOrder(ctx, prior)
		} else if !errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, err
		}
	}

	provider, err := s.Providers.GetProviderByID(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			return nil, NewValidationError("unknown provider %s", req.ProviderID)
		}
		return nil, err
	}
	if !provider.Active {
		return nil, NewValidationError("provider %s is not accepting bookings", provider.ID)
	}

	svc, err := s.Providers.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			return nil, NewValidationError("unknown service %s", req.ServiceID)
		}
		return nil, err
	}
	if svc.ProviderID != provider.ID {
		return nil, NewValidationError("service %s does not belong to provider %s", svc.ID, provider.ID)
	}
	if !svc.Active {
		return nil, NewValidationError("service %s is not active", svc.ID)
	}

	start := req.Start.UTC()
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	// Re-check against the live ledger, not a cached availability view.
	overlapping, err := s.Ledger.FindOverlapping(ctx, provider.ID, start, end, "")
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, NewSlotConflict("slot %s–%s is no longer free", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	now := time.Now().UTC()
	bookingID := uuid.New().String()
	hold := &models.Reservation{
		ID:           uuid.New().String(),
		ProviderID:   provider.ID,
		Start:        start,
		End:          end,
		BookingID:    bookingID,
		RequestToken: req.RequestToken,
		Version:      1,
		ExpiresAt:    now.Add(s.HoldTTL),
		CreatedAt:    now,
	}
	if err := s.Ledger.InsertReservation(ctx, hold); err != nil {
		if errors.Is(err, ledgerRepo.ErrDuplicateHold) {
			return nil, NewSlotConflict("slot %s–%s was claimed concurrently", start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		return nil, err
	}

	pending := &models.Booking{
		ID:            bookingID,
		CustomerID:    req.CustomerID,
		ProviderID:    provider.ID,
		ServiceID:     svc.ID,
		Start:         start,
		End:           end,
		Status:        models.BookingStatusPending,
		Price:         svc.Price,
		Currency:      provider.Currency,
		ReservationID: hold.ID,
		StatusHistory: []models.StatusChange{
			models.NewStatusChange("", models.BookingStatusPending, req.CustomerID, "slot reserved"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Ledger.InsertBooking(ctx, pending); err != nil {
		_ = s.Ledger.ReleaseReservation(ctx, hold.ID)
		return nil, err
	}

	// The hold bounds how long this slot can wait for payment; no lock is
	// held across the gateway call.
	order, err := s.Gateway.CreateOrder(ctx, svc.Price, provider.Currency, bookingID)
	if err != nil {
		s.Logger.Warn("gateway order creation failed, releasing hold",
			zap.String("bookingID", bookingID), zap.Error(err))
		_ = s.Ledger.DiscardPendingBooking(ctx, bookingID)
		_ = s.Ledger.ReleaseReservation(ctx, hold.ID)
		return nil, err
	}

	if err := s.Ledger.AttachGatewayOrder(ctx, hold.ID, order.ID); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:             uuid.New().String(),
		GatewayOrderID: order.ID,
		Amount:         svc.Price,
		Currency:       provider.Currency,
		Status:         models.PaymentStatusCreated,
		StatusHistory: []models.StatusChange{
			models.NewStatusChange("", models.PaymentStatusCreated, "system", "order opened"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Ledger.InsertPayment(ctx, payment); err != nil {
		return nil, err
	}

	s.Logger.Info("order issued",
		zap.String("bookingID", bookingID),
		zap.String("orderID", order.ID),
		zap.String("providerID", provider.ID),
		zap.Time("start", start), zap.Time("end", end))

	return &IssueOrderResult{
		BookingID:      bookingID,
		GatewayOrderID: order.ID,
		Amount:         svc.Price,
		Currency:       provider.Currency,
		ExpiresAt:      hold.ExpiresAt,
	}, nil
}

// replayOrder reconstructs the original result for an idempotent retry.
func (s *DefaultOrderIssuer) replayOrder(ctx context.Context, hold *models.Reservation) (*IssueOrderResult, error) {
	if hold.Expired(time.Now().UTC()) || hold.GatewayOrderID == "" {
		return nil, NewSlotConflict("previous reservation expired, re-query availability")
	}
	payment, err := s.Ledger.GetPaymentByOrderID(ctx, hold.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	return &IssueOrderResult{
		BookingID:      hold.BookingID,
		GatewayOrderID: hold.GatewayOrderID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		ExpiresAt:      hold.ExpiresAt,
	}, nil
}

func validateIssueRequest(req IssueOrderRequest) error {
	if req.CustomerID == "" {
		return NewValidationError("missing customer id")
	}
	if req.ProviderID == "" {
		return NewValidationError("missing provider id")
	}
	if req.ServiceID == "" {
		return NewValidationError("missing service id")
	}
	if req.Start.IsZero() {
		return NewValidationError("missing start time")
	}
	if req.Start.Before(time.Now()) {
		return NewValidationError("start time is in the past")
	}
	return nil
}
