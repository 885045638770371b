package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	ledgerRepo "slotify/database/repository/ledger"
	providerRepo "slotify/database/repository/provider"
	"slotify/models"
	"slotify/services/gateway"
)

type fakeProviders struct {
	providers map[string]*models.Provider
	services  map[string]*models.Service
}

func (f *fakeProviders) CreateProvider(ctx context.Context, p *models.Provider) error { return nil }

func (f *fakeProviders) GetProviderByID(ctx context.Context, id string) (*models.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, providerRepo.ErrNotFound
	}
	return p, nil
}

func (f *fakeProviders) UpdateSchedule(ctx context.Context, id string, schedule []models.DayRule) error {
	return nil
}

func (f *fakeProviders) CreateService(ctx context.Context, s *models.Service) error { return nil }

func (f *fakeProviders) GetServiceByID(ctx context.Context, id string) (*models.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, providerRepo.ErrNotFound
	}
	return s, nil
}

func (f *fakeProviders) ListServicesByProvider(ctx context.Context, id string) ([]models.Service, error) {
	return nil, nil
}

// fakeLedger is an in-memory ledger honoring the guarded-update semantics of
// the Mongo implementation. Unimplemented methods panic via the embedded nil
// interface, which catches accidental use.
type fakeLedger struct {
	ledgerRepo.LedgerRepository

	bookings     map[string]*models.Booking
	reservations map[string]*models.Reservation
	payments     map[string]*models.Payment

	confirmErr error // forced ConfirmBookingPayment failure
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bookings:     make(map[string]*models.Booking),
		reservations: make(map[string]*models.Reservation),
		payments:     make(map[string]*models.Payment),
	}
}

func (f *fakeLedger) InsertBooking(ctx context.Context, b *models.Booking) error {
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeLedger) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeLedger) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]models.Booking, error) {
	var out []models.Booking
	want := models.Interval{Start: start, End: end}
	for _, b := range f.bookings {
		if b.ProviderID != providerID || b.ID == excludeID {
			continue
		}
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusConfirmed {
			continue
		}
		if b.Interval().Overlaps(want) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeLedger) TransitionBooking(ctx context.Context, id, from, to string, change models.StatusChange) error {
	b, ok := f.bookings[id]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	if b.Status != from {
		return ledgerRepo.ErrStaleStatus
	}
	b.Status = to
	b.StatusHistory = append(b.StatusHistory, change)
	b.UpdatedAt = change.At
	return nil
}

func (f *fakeLedger) DiscardPendingBooking(ctx context.Context, id string) error {
	b, ok := f.bookings[id]
	if ok && b.Status == models.BookingStatusPending {
		delete(f.bookings, id)
	}
	return nil
}

func (f *fakeLedger) InsertReservation(ctx context.Context, r *models.Reservation) error {
	for _, held := range f.reservations {
		if held.ProviderID == r.ProviderID && held.Start.Equal(r.Start) && held.End.Equal(r.End) {
			return ledgerRepo.ErrDuplicateHold
		}
	}
	cp := *r
	f.reservations[r.ID] = &cp
	return nil
}

func (f *fakeLedger) GetReservationByToken(ctx context.Context, token string) (*models.Reservation, error) {
	for _, r := range f.reservations {
		if token != "" && r.RequestToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ledgerRepo.ErrNotFound
}

func (f *fakeLedger) GetReservationByOrderID(ctx context.Context, orderID string) (*models.Reservation, error) {
	for _, r := range f.reservations {
		if r.GatewayOrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ledgerRepo.ErrNotFound
}

func (f *fakeLedger) AttachGatewayOrder(ctx context.Context, reservationID, orderID string) error {
	r, ok := f.reservations[reservationID]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	r.GatewayOrderID = orderID
	r.Version++
	return nil
}

func (f *fakeLedger) ReleaseReservation(ctx context.Context, reservationID string) error {
	delete(f.reservations, reservationID)
	return nil
}

func (f *fakeLedger) InsertPayment(ctx context.Context, p *models.Payment) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeLedger) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ledgerRepo.ErrNotFound
}

func (f *fakeLedger) MarkPaymentCaptured(ctx context.Context, paymentID, gatewayPaymentID, bookingID string, change models.StatusChange) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	if !models.PaymentStatusAdvances(p.Status, models.PaymentStatusCaptured) {
		return ledgerRepo.ErrStaleStatus
	}
	p.Status = models.PaymentStatusCaptured
	p.GatewayPaymentID = gatewayPaymentID
	if bookingID != "" {
		p.BookingID = bookingID
	}
	p.StatusHistory = append(p.StatusHistory, change)
	p.UpdatedAt = change.At
	return nil
}

func (f *fakeLedger) ApplyRefund(ctx context.Context, paymentID string, prevRefunded, newRefunded int64, at time.Time, toStatus string, change models.StatusChange) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	if p.RefundAmount != prevRefunded || newRefunded > p.Amount {
		return ledgerRepo.ErrStaleStatus
	}
	p.RefundAmount = newRefunded
	p.Status = toStatus
	p.RefundedAt = &at
	p.StatusHistory = append(p.StatusHistory, change)
	p.UpdatedAt = at
	return nil
}

func (f *fakeLedger) ConfirmBookingPayment(ctx context.Context, params ledgerRepo.ConfirmParams) (*models.Booking, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	r, ok := f.reservations[params.ReservationID]
	if !ok || r.Expired(params.Now) {
		return nil, ledgerRepo.ErrHoldExpired
	}
	b, ok := f.bookings[params.BookingID]
	if !ok || b.Status != models.BookingStatusPending {
		return nil, ledgerRepo.ErrStaleStatus
	}
	p, ok := f.payments[params.PaymentID]
	if !ok || !models.PaymentStatusAdvances(p.Status, models.PaymentStatusCaptured) {
		return nil, ledgerRepo.ErrStaleStatus
	}

	b.Status = models.BookingStatusConfirmed
	b.PaymentID = params.PaymentID
	b.StatusHistory = append(b.StatusHistory, models.NewStatusChange(models.BookingStatusPending, models.BookingStatusConfirmed, "gateway", "payment captured"))

	p.StatusHistory = append(p.StatusHistory, models.NewStatusChange(p.Status, models.PaymentStatusCaptured, "gateway", "callback verified"))
	p.Status = models.PaymentStatusCaptured
	p.GatewayPaymentID = params.GatewayPaymentID
	p.BookingID = params.BookingID

	delete(f.reservations, params.ReservationID)

	cp := *b
	return &cp, nil
}

// fakeGateway signs and verifies with a local secret and hands out
// sequential order ids.
type fakeGateway struct {
	secret     string
	failCreate bool
	orders     int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*gateway.Order, error) {
	if g.failCreate {
		return nil, &gateway.Error{Op: "create order", StatusCode: 503, Message: "unavailable", Retryable: true}
	}
	g.orders++
	return &gateway.Order{ID: fmt.Sprintf("order_%d", g.orders)}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(orderID, paymentID, signature, g.secret)
}

func (g *fakeGateway) sign(orderID, paymentID string) string {
	return gateway.Signature(orderID, paymentID, g.secret)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: task.Type()}, nil
}
