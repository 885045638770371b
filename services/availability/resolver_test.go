package availability

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	providerRepo "slotify/database/repository/provider"
	"slotify/models"
	"slotify/services/booking"
)

type fakeProviders struct {
	provider *models.Provider
	service  *models.Service
}

func (f *fakeProviders) CreateProvider(ctx context.Context, p *models.Provider) error { return nil }

func (f *fakeProviders) GetProviderByID(ctx context.Context, id string) (*models.Provider, error) {
	if f.provider == nil || f.provider.ID != id {
		return nil, providerRepo.ErrNotFound
	}
	return f.provider, nil
}

func (f *fakeProviders) UpdateSchedule(ctx context.Context, id string, schedule []models.DayRule) error {
	return nil
}

func (f *fakeProviders) CreateService(ctx context.Context, s *models.Service) error { return nil }

func (f *fakeProviders) GetServiceByID(ctx context.Context, id string) (*models.Service, error) {
	if f.service == nil || f.service.ID != id {
		return nil, providerRepo.ErrNotFound
	}
	return f.service, nil
}

func (f *fakeProviders) ListServicesByProvider(ctx context.Context, id string) ([]models.Service, error) {
	return []models.Service{*f.service}, nil
}

type fakeBusyLedger struct {
	ledgerRepo.LedgerRepository
	busy []models.Interval
}

func (f *fakeBusyLedger) BusyIntervals(ctx context.Context, providerID string, from, to time.Time) ([]models.Interval, error) {
	return f.busy, nil
}

func utcIV(day time.Time, startHour, startMin, endHour, endMin int) models.Interval {
	return models.Interval{
		Start: time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, time.UTC),
		End:   time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, time.UTC),
	}
}

func newTestResolver(busy []models.Interval) *DefaultResolver {
	return &DefaultResolver{
		Providers: &fakeProviders{
			provider: &models.Provider{
				ID:     "prov-1",
				Active: true,
				RecurringSchedule: []models.DayRule{
					{Day: time.Monday, Windows: []models.SlotWindow{{Start: 9 * 60, End: 17 * 60}}},
				},
			},
			service: &models.Service{
				ID:              "svc-1",
				ProviderID:      "prov-1",
				DurationMinutes: 60,
				Active:          true,
			},
		},
		Ledger: &fakeBusyLedger{busy: busy},
		Logger: zap.NewNop(),
	}
}

// 2026-08-31 is a Monday.
const monday = "2026-08-31"

func TestResolveSubtractsBookedSlots(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	r := newTestResolver([]models.Interval{utcIV(day, 10, 0, 11, 0)})

	free, err := r.Resolve(context.Background(), "prov-1", "svc-1", monday, monday)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []models.Interval{
		utcIV(day, 9, 0, 10, 0),
		utcIV(day, 11, 0, 17, 0),
	}
	if len(free) != len(want) {
		t.Fatalf("got %d free intervals, want %d: %v", len(free), len(want), free)
	}
	for i := range want {
		if !free[i].Start.Equal(want[i].Start) || !free[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = %v–%v, want %v–%v", i, free[i].Start, free[i].End, want[i].Start, want[i].End)
		}
	}
}

func TestResolveDropsPiecesShorterThanService(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	// 09:30–10:30 booked: the 09:00–09:30 remainder is too short for a
	// 60-minute service and must not be offered.
	r := newTestResolver([]models.Interval{utcIV(day, 9, 30, 10, 30)})

	free, err := r.Resolve(context.Background(), "prov-1", "svc-1", monday, monday)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(free) != 1 {
		t.Fatalf("got %d free intervals, want 1: %v", len(free), free)
	}
	if !free[0].Start.Equal(utcIV(day, 10, 30, 17, 0).Start) {
		t.Errorf("free interval starts at %v, want 10:30", free[0].Start)
	}
}

func TestResolveMergesOverlappingBusyIntervals(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	r := newTestResolver([]models.Interval{
		utcIV(day, 10, 0, 11, 0),
		utcIV(day, 10, 30, 12, 0),
	})

	free, err := r.Resolve(context.Background(), "prov-1", "svc-1", monday, monday)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []models.Interval{
		utcIV(day, 9, 0, 10, 0),
		utcIV(day, 12, 0, 17, 0),
	}
	if len(free) != len(want) {
		t.Fatalf("got %d free intervals, want %d: %v", len(free), len(want), free)
	}
	for i := range want {
		if !free[i].Start.Equal(want[i].Start) || !free[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = %v–%v, want %v–%v", i, free[i].Start, free[i].End, want[i].Start, want[i].End)
		}
	}
}

func TestResolveSkipsDaysWithoutRules(t *testing.T) {
	r := newTestResolver(nil)

	// 2026-09-01 is a Tuesday with no schedule rule.
	free, err := r.Resolve(context.Background(), "prov-1", "svc-1", "2026-09-01", "2026-09-01")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(free) != 0 {
		t.Errorf("expected no slots on an unscheduled day, got %v", free)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	r := newTestResolver(nil)

	if _, err := r.Resolve(context.Background(), "prov-x", "svc-1", monday, monday); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("unknown provider: got %v, want validation error", err)
	}
	if _, err := r.Resolve(context.Background(), "prov-1", "svc-x", monday, monday); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("unknown service: got %v, want validation error", err)
	}
	if _, err := r.Resolve(context.Background(), "prov-1", "svc-1", "31-08-2026", monday); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("bad date: got %v, want validation error", err)
	}
	if _, err := r.Resolve(context.Background(), "prov-1", "svc-1", monday, "2026-08-30"); !booking.HasCode(err, booking.CodeValidation) {
		t.Errorf("inverted range: got %v, want validation error", err)
	}
}

func TestResolveAppliesProviderOffset(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	r := newTestResolver(nil)
	// +330 minutes: provider wall-clock 09:00 is 03:30 UTC.
	prov := r.Providers.(*fakeProviders).provider
	prov.UTCOffsetMinutes = 330

	free, err := r.Resolve(context.Background(), "prov-1", "svc-1", monday, monday)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(free) != 1 {
		t.Fatalf("got %d free intervals, want 1: %v", len(free), free)
	}
	wantStart := time.Date(day.Year(), day.Month(), day.Day(), 3, 30, 0, 0, time.UTC)
	if !free[0].Start.Equal(wantStart) {
		t.Errorf("offset window starts at %v, want %v", free[0].Start, wantStart)
	}
}
