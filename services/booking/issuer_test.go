package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"slotify/models"
	"slotify/services/gateway"
)

func newTestIssuer() (*DefaultOrderIssuer, *fakeLedger, *fakeGateway) {
	ledger := newFakeLedger()
	gw := &fakeGateway{secret: "s3cret"}
	issuer := &DefaultOrderIssuer{
		Providers: &fakeProviders{
			providers: map[string]*models.Provider{
				"prov-1": {ID: "prov-1", Currency: "INR", Active: true},
			},
			services: map[string]*models.Service{
				"svc-1": {ID: "svc-1", ProviderID: "prov-1", Price: 50000, DurationMinutes: 60, Active: true},
			},
		},
		Ledger:  ledger,
		Gateway: gw,
		Logger:  zap.NewNop(),
		HoldTTL: 12 * time.Minute,
	}
	return issuer, ledger, gw
}

func futureStart() time.Time {
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
}

func TestIssueOrderHappyPath(t *testing.T) {
	issuer, ledger, _ := newTestIssuer()
	start := futureStart()

	result, err := issuer.IssueOrder(context.Background(), IssueOrderRequest{
		CustomerID: "cust-1",
		ProviderID: "prov-1",
		ServiceID:  "svc-1",
		Start:      start,
	})
	if err != nil {
		t.Fatalf("IssueOrder failed: %v", err)
	}
	if result.GatewayOrderID == "" {
		t.Error("expected a gateway order id")
	}
	if result.Amount != 50000 || result.Currency != "INR" {
		t.Errorf("result amount/currency = %d %s, want 50000 INR", result.Amount, result.Currency)
	}

	b, err := ledger.GetBookingByID(context.Background(), result.BookingID)
	if err != nil {
		t.Fatalf("pending booking not stored: %v", err)
	}
	if b.Status != models.BookingStatusPending {
		t.Errorf("booking status = %s, want pending", b.Status)
	}
	if !b.End.Equal(start.Add(time.Hour)) {
		t.Errorf("booking end = %v, want start + service duration", b.End)
	}

	p, err := ledger.GetPaymentByOrderID(context.Background(), result.GatewayOrderID)
	if err != nil {
		t.Fatalf("payment not stored: %v", err)
	}
	if p.Status != models.PaymentStatusCreated {
		t.Errorf("payment status = %s, want created", p.Status)
	}
	if p.BookingID != "" {
		t.Errorf("payment bound to booking %s before confirmation", p.BookingID)
	}

	hold, err := ledger.GetReservationByOrderID(context.Background(), result.GatewayOrderID)
	if err != nil {
		t.Fatalf("reservation not stored: %v", err)
	}
	if hold.Expired(time.Now().UTC()) {
		t.Error("fresh hold already expired")
	}
}

func TestIssueOrderRejectsOverlappingSlot(t *testing.T) {
	issuer, ledger, _ := newTestIssuer()
	start := futureStart()

	ledger.bookings["busy"] = &models.Booking{
		ID:         "busy",
		ProviderID: "prov-1",
		Start:      start.Add(-30 * time.Minute),
		End:        start.Add(30 * time.Minute),
		Status:     models.BookingStatusConfirmed,
	}

	_, err := issuer.IssueOrder(context.Background(), IssueOrderRequest{
		CustomerID: "cust-1", ProviderID: "prov-1", ServiceID: "svc-1", Start: start,
	})
	if !HasCode(err, CodeSlotConflict) {
		t.Fatalf("got %v, want slot_conflict", err)
	}
	if len(ledger.reservations) != 0 {
		t.Error("conflicting request left a reservation behind")
	}
}

func TestIssueOrderConcurrentHoldLosesRace(t *testing.T) {
	issuer, _, _ := newTestIssuer()
	start := futureStart()
	req := IssueOrderRequest{CustomerID: "cust-1", ProviderID: "prov-1", ServiceID: "svc-1", Start: start}

	if _, err := issuer.IssueOrder(context.Background(), req); err != nil {
		t.Fatalf("first IssueOrder failed: %v", err)
	}

	req.CustomerID = "cust-2"
	_, err := issuer.IssueOrder(context.Background(), req)
	if !HasCode(err, CodeSlotConflict) {
		t.Fatalf("second claim got %v, want slot_conflict", err)
	}
}

func TestIssueOrderGatewayFailureReleasesHold(t *testing.T) {
	issuer, ledger, gw := newTestIssuer()
	gw.failCreate = true

	_, err := issuer.IssueOrder(context.Background(), IssueOrderRequest{
		CustomerID: "cust-1", ProviderID: "prov-1", ServiceID: "svc-1", Start: futureStart(),
	})
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("got %v, want gateway error", err)
	}
	if !gwErr.Retryable {
		t.Error("5xx gateway error should be retryable")
	}
	if len(ledger.reservations) != 0 {
		t.Error("hold not released after gateway failure")
	}
	if len(ledger.bookings) != 0 {
		t.Error("pending booking not discarded after gateway failure")
	}
}

func TestIssueOrderTokenReplayReturnsOriginalOrder(t *testing.T) {
	issuer, _, _ := newTestIssuer()
	req := IssueOrderRequest{
		CustomerID: "cust-1", ProviderID: "prov-1", ServiceID: "svc-1",
		Start: futureStart(), RequestToken: "tok-1",
	}

	first, err := issuer.IssueOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("first IssueOrder failed: %v", err)
	}
	second, err := issuer.IssueOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.GatewayOrderID != first.GatewayOrderID || second.BookingID != first.BookingID {
		t.Errorf("replay returned a different order: %+v vs %+v", second, first)
	}
}

func TestIssueOrderValidation(t *testing.T) {
	issuer, _, _ := newTestIssuer()

	cases := map[string]IssueOrderRequest{
		"missing customer": {ProviderID: "prov-1", ServiceID: "svc-1", Start: futureStart()},
		"missing provider": {CustomerID: "c", ServiceID: "svc-1", Start: futureStart()},
		"past start":       {CustomerID: "c", ProviderID: "prov-1", ServiceID: "svc-1", Start: time.Now().Add(-time.Hour)},
		"unknown service":  {CustomerID: "c", ProviderID: "prov-1", ServiceID: "svc-x", Start: futureStart()},
	}
	for name, req := range cases {
		if _, err := issuer.IssueOrder(context.Background(), req); !HasCode(err, CodeValidation) {
			t.Errorf("%s: got %v, want validation_error", name, err)
		}
	}
}
