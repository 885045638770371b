package refund

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	refundRepo "slotify/database/repository/refund"
	"slotify/models"
	"slotify/services/booking"
	"slotify/services/gateway"
)

type fakeRefunds struct {
	requests map[string]*models.RefundRequest
}

func newFakeRefunds() *fakeRefunds {
	return &fakeRefunds{requests: make(map[string]*models.RefundRequest)}
}

func (f *fakeRefunds) Insert(ctx context.Context, req *models.RefundRequest) error {
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRefunds) GetByID(ctx context.Context, id string) (*models.RefundRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, refundRepo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRefunds) ListByStatus(ctx context.Context, status string, limit int64) ([]models.RefundRequest, error) {
	var out []models.RefundRequest
	for _, r := range f.requests {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRefunds) ListByPayment(ctx context.Context, paymentID string) ([]models.RefundRequest, error) {
	var out []models.RefundRequest
	for _, r := range f.requests {
		if r.PaymentID == paymentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRefunds) Update(ctx context.Context, req *models.RefundRequest, expectedStatus string) error {
	stored, ok := f.requests[req.ID]
	if !ok {
		return refundRepo.ErrNotFound
	}
	if stored.Status != expectedStatus {
		return refundRepo.ErrStaleStatus
	}
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

type fakeLedger struct {
	ledgerRepo.LedgerRepository
	payments map[string]*models.Payment
	bookings map[string]*models.Booking
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		payments: make(map[string]*models.Payment),
		bookings: make(map[string]*models.Booking),
	}
}

func (f *fakeLedger) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
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
	return nil
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
	return nil
}

type fakeGateway struct {
	status     string // status returned by CreateRefund
	pollStatus string // status returned by GetRefund
	failCreate bool
	calls      int
	keys       []string
}

func (g *fakeGateway) CreateRefund(ctx context.Context, gatewayPaymentID string, amount int64, idempotencyKey string) (*gateway.Refund, error) {
	g.calls++
	g.keys = append(g.keys, idempotencyKey)
	if g.failCreate {
		return nil, &gateway.Error{Op: "refund", StatusCode: 503, Message: "unavailable", Retryable: true}
	}
	return &gateway.Refund{ID: "rfnd_1", Status: g.status}, nil
}

func (g *fakeGateway) GetRefund(ctx context.Context, refundID string) (*gateway.Refund, error) {
	return &gateway.Refund{ID: refundID, Status: g.pollStatus}, nil
}

func newTestCoordinator(gw *fakeGateway) (*DefaultCoordinator, *fakeRefunds, *fakeLedger) {
	refunds := newFakeRefunds()
	ledger := newFakeLedger()
	ledger.payments["pay-1"] = &models.Payment{
		ID: "pay-1", BookingID: "bk-1", GatewayOrderID: "order_1",
		GatewayPaymentID: "gwpay_1", Amount: 50000, Currency: "INR",
		Status: models.PaymentStatusCaptured,
	}
	ledger.bookings["bk-1"] = &models.Booking{
		ID: "bk-1", PaymentID: "pay-1", Status: models.BookingStatusConfirmed,
	}
	c := &DefaultCoordinator{Refunds: refunds, Ledger: ledger, Gateway: gw, Logger: zap.NewNop()}
	return c, refunds, ledger
}

func TestOpenValidatesPaymentAndAmount(t *testing.T) {
	c, _, ledger := newTestCoordinator(&fakeGateway{status: gateway.RefundStatusProcessed})

	if _, err := c.Open(context.Background(), "pay-x", "cust-1", 0, "r"); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("unknown payment: got %v, want validation_error", err)
	}
	if _, err := c.Open(context.Background(), "pay-1", "cust-1", 60000, "r"); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("amount over captured: got %v, want validation_error", err)
	}

	ledger.payments["pay-1"].Status = models.PaymentStatusPending
	if _, err := c.Open(context.Background(), "pay-1", "cust-1", 0, "r"); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("uncaptured payment: got %v, want validation_error", err)
	}
}

func TestOpenDefaultsToFullRefundable(t *testing.T) {
	c, _, ledger := newTestCoordinator(&fakeGateway{status: gateway.RefundStatusProcessed})
	ledger.payments["pay-1"].RefundAmount = 20000

	req, err := c.Open(context.Background(), "pay-1", "cust-1", 0, "changed plans")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if req.Amount != 30000 {
		t.Errorf("amount = %d, want remaining refundable 30000", req.Amount)
	}
	if req.Status != models.RefundStatusPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
}

func TestApproveFullRefundSettlesEverything(t *testing.T) {
	gw := &fakeGateway{status: gateway.RefundStatusProcessed}
	c, refunds, ledger := newTestCoordinator(gw)

	opened, err := c.Open(context.Background(), "pay-1", "cust-1", 50000, "event cancelled")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	req, err := c.Approve(context.Background(), opened.ID, "admin-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if req.Status != models.RefundStatusProcessed {
		t.Errorf("request status = %s, want processed", req.Status)
	}
	if gw.keys[0] != opened.ID {
		t.Errorf("idempotency key = %s, want the request id", gw.keys[0])
	}

	p := ledger.payments["pay-1"]
	if p.RefundAmount != 50000 || p.Status != models.PaymentStatusRefunded {
		t.Errorf("payment after full refund = %+v", p)
	}
	if ledger.bookings["bk-1"].Status != models.BookingStatusCancelled {
		t.Errorf("booking status = %s, want cancelled", ledger.bookings["bk-1"].Status)
	}

	stored, _ := refunds.GetByID(context.Background(), opened.ID)
	if len(stored.StatusHistory) < 3 { // pending, processing, processed
		t.Errorf("expected full audit trail, got %d entries", len(stored.StatusHistory))
	}
}

func TestApprovePartialRefundKeepsPaymentCaptured(t *testing.T) {
	c, _, ledger := newTestCoordinator(&fakeGateway{status: gateway.RefundStatusProcessed})

	opened, _ := c.Open(context.Background(), "pay-1", "cust-1", 500, "late arrival credit")
	if _, err := c.Approve(context.Background(), opened.ID, "admin-1"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	p := ledger.payments["pay-1"]
	if p.RefundAmount != 500 {
		t.Errorf("refund amount = %d, want 500", p.RefundAmount)
	}
	if p.Status != models.PaymentStatusCaptured {
		t.Errorf("payment status = %s, partial refund must stay captured", p.Status)
	}
	if ledger.bookings["bk-1"].Status != models.BookingStatusConfirmed {
		t.Error("partial refund must not cancel the booking")
	}
}

func TestRejectRequiresReasonAndIsTerminal(t *testing.T) {
	c, _, _ := newTestCoordinator(&fakeGateway{status: gateway.RefundStatusProcessed})
	opened, _ := c.Open(context.Background(), "pay-1", "cust-1", 500, "r")

	if _, err := c.Reject(context.Background(), opened.ID, "admin-1", ""); !booking.HasCode(err, booking.CodeValidation) {
		t.Fatalf("missing reason: got %v, want validation_error", err)
	}

	req, err := c.Reject(context.Background(), opened.ID, "admin-1", "outside refund window")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if req.Status != models.RefundStatusRejected || req.AdminResponse != "outside refund window" {
		t.Errorf("rejected request = %+v", req)
	}

	if _, err := c.Approve(context.Background(), opened.ID, "admin-2"); !booking.HasCode(err, booking.CodeInvalidTransition) {
		t.Errorf("approving a rejected request got %v, want invalid_transition", err)
	}
}

func TestApproveGatewayFailureThenRetry(t *testing.T) {
	gw := &fakeGateway{status: gateway.RefundStatusProcessed, failCreate: true}
	c, _, ledger := newTestCoordinator(gw)

	opened, _ := c.Open(context.Background(), "pay-1", "cust-1", 50000, "r")
	req, err := c.Approve(context.Background(), opened.ID, "admin-1")
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("got %v, want gateway error surfaced", err)
	}
	if req == nil || req.Status != models.RefundStatusFailed {
		t.Fatalf("request after gateway failure = %+v, want failed", req)
	}
	if ledger.payments["pay-1"].RefundAmount != 0 {
		t.Error("failed refund must not move money")
	}

	gw.failCreate = false
	retried, err := c.Retry(context.Background(), opened.ID, "admin-1")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.Status != models.RefundStatusProcessed {
		t.Errorf("retried status = %s, want processed", retried.Status)
	}
	if gw.keys[0] != gw.keys[1] {
		t.Errorf("retry used a different idempotency key: %v", gw.keys)
	}
}

func TestPendingGatewayRefundSettlesOnPoll(t *testing.T) {
	gw := &fakeGateway{status: gateway.RefundStatusPending, pollStatus: gateway.RefundStatusProcessed}
	c, _, ledger := newTestCoordinator(gw)

	opened, _ := c.Open(context.Background(), "pay-1", "cust-1", 50000, "r")
	req, err := c.Approve(context.Background(), opened.ID, "admin-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if req.Status != models.RefundStatusProcessing || req.GatewayRefundID != "rfnd_1" {
		t.Fatalf("in-flight request = %+v, want processing with gateway id", req)
	}
	if ledger.payments["pay-1"].RefundAmount != 0 {
		t.Error("money moved before the gateway confirmed")
	}

	polled, err := c.Poll(context.Background(), opened.ID)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if polled.Status != models.RefundStatusProcessed {
		t.Errorf("polled status = %s, want processed", polled.Status)
	}
	if ledger.payments["pay-1"].RefundAmount != 50000 {
		t.Error("poll settlement did not record the refund")
	}
}

func TestCompensateIsIdempotent(t *testing.T) {
	gw := &fakeGateway{status: gateway.RefundStatusProcessed}
	c, _, ledger := newTestCoordinator(gw)
	// Captured-but-unbooked payment.
	ledger.payments["pay-1"].BookingID = ""

	first, err := c.Compensate(context.Background(), "pay-1", "reservation expired before capture")
	if err != nil {
		t.Fatalf("Compensate failed: %v", err)
	}
	if first.Status != models.RefundStatusProcessed || first.RequestedBy != "system" {
		t.Fatalf("compensation = %+v, want processed system refund", first)
	}
	if ledger.payments["pay-1"].Status != models.PaymentStatusRefunded {
		t.Error("compensation did not refund the full capture")
	}

	second, err := c.Compensate(context.Background(), "pay-1", "reservation expired before capture")
	if err != nil {
		t.Fatalf("re-run failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-run created a new request %s, want %s", second.ID, first.ID)
	}
	if gw.calls != 1 {
		t.Errorf("gateway called %d times, want 1", gw.calls)
	}
}

func TestExceedRefundableCapAfterPartial(t *testing.T) {
	c, _, ledger := newTestCoordinator(&fakeGateway{status: gateway.RefundStatusProcessed})
	ledger.payments["pay-1"].RefundAmount = 40000

	if _, err := c.Open(context.Background(), "pay-1", "cust-1", 20000, "r"); !booking.HasCode(err, booking.CodeValidation) {
		t.Fatalf("got %v, want validation_error for amount over remaining refundable", err)
	}
}
