package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	providerRepo "slotify/database/repository/provider"
	"slotify/models"
	"slotify/services/booking"
)

const dateLayout = "2006-01-02"

// Resolver expands a provider's recurring weekly schedule into concrete
// free slots for a date range.
type Resolver interface {
	Resolve(ctx context.Context, providerID, serviceID, fromDate, toDate string) ([]models.Interval, error)
}

// DefaultResolver is the production resolver. Reads are snapshot reads with
// no locking; the result is a hint that the order issuer re-validates before
// any commitment.
type DefaultResolver struct {
	Providers providerRepo.ProviderRepository
	Ledger    ledgerRepo.LedgerRepository
	Cache     *redis.Client
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// Resolve returns the ordered, non-overlapping free intervals of a provider
// between fromDate and toDate (inclusive, "2006-01-02"), each at least as
// long as the service duration.
func (r *DefaultResolver) Resolve(ctx context.Context, providerID, serviceID, fromDate, toDate string) ([]models.Interval, error) {
	provider, err := r.Providers.GetProviderByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			return nil, booking.NewValidationError("unknown provider %s", providerID)
		}
		return nil, err
	}
	svc, err := r.Providers.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			return nil, booking.NewValidationError("unknown service %s", serviceID)
		}
		return nil, err
	}
	if svc.ProviderID != provider.ID {
		return nil, booking.NewValidationError("service %s does not belong to provider %s", serviceID, providerID)
	}

	loc := provider.Location()
	from, err := time.ParseInLocation(dateLayout, fromDate, loc)
	if err != nil {
		return nil, booking.NewValidationError("invalid from date %q", fromDate)
	}
	to, err := time.ParseInLocation(dateLayout, toDate, loc)
	if err != nil {
		return nil, booking.NewValidationError("invalid to date %q", toDate)
	}
	if to.Before(from) {
		return nil, booking.NewValidationError("date range end precedes start")
	}
	rangeEnd := to.AddDate(0, 0, 1)

	cacheKey := fmt.Sprintf("availability:%s:%s:%s:%s", providerID, serviceID, fromDate, toDate)
	if r.Cache != nil {
		if raw, err := r.Cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached []models.Interval
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	candidates := expandSchedule(provider.RecurringSchedule, from, rangeEnd, loc)
	busy, err := r.Ledger.BusyIntervals(ctx, providerID, from.UTC(), rangeEnd.UTC())
	if err != nil {
		return nil, err
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	free := subtractBusy(candidates, mergeIntervals(busy), duration)

	if r.Cache != nil {
		if raw, err := json.Marshal(free); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, raw, r.CacheTTL).Err(); err != nil {
				r.Logger.Debug("availability cache write failed", zap.Error(err))
			}
		}
	}
	return free, nil
}

// expandSchedule turns the recurring weekly rules into concrete candidate
// intervals for every date in [from, rangeEnd). All arithmetic stays in the
// provider's fixed-offset zone; there is no daylight-saving adjustment.
func expandSchedule(rules []models.DayRule, from, rangeEnd time.Time, loc *time.Location) []models.Interval {
	byDay := make(map[time.Weekday][]models.SlotWindow, len(rules))
	for _, rule := range rules {
		byDay[rule.Day] = append(byDay[rule.Day], rule.Windows...)
	}

	var candidates []models.Interval
	for d := from; d.Before(rangeEnd); d = d.AddDate(0, 0, 1) {
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		for _, w := range byDay[d.Weekday()] {
			if w.End <= w.Start {
				continue
			}
			candidates = append(candidates, models.Interval{
				Start: dayStart.Add(time.Duration(w.Start) * time.Minute).UTC(),
				End:   dayStart.Add(time.Duration(w.End) * time.Minute).UTC(),
			})
		}
	}
	sortIntervals(candidates)
	return candidates
}

// mergeIntervals collapses overlapping or touching busy intervals so the
// subtraction below sees a clean, sorted sequence.
func mergeIntervals(in []models.Interval) []models.Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]models.Interval, len(in))
	copy(sorted, in)
	sortIntervals(sorted)

	merged := []models.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// subtractBusy removes the busy intervals from each candidate and drops any
// remaining piece shorter than the service duration.
func subtractBusy(candidates, busy []models.Interval, minLen time.Duration) []models.Interval {
	var free []models.Interval
	for _, c := range candidates {
		cursor := c.Start
		for _, b := range busy {
			if !b.End.After(cursor) {
				continue
			}
			if !b.Start.Before(c.End) {
				break
			}
			if b.Start.After(cursor) {
				free = appendIfLongEnough(free, models.Interval{Start: cursor, End: b.Start}, minLen)
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
		}
		if cursor.Before(c.End) {
			free = appendIfLongEnough(free, models.Interval{Start: cursor, End: c.End}, minLen)
		}
	}
	return free
}

func appendIfLongEnough(out []models.Interval, iv models.Interval, minLen time.Duration) []models.Interval {
	if iv.Duration() >= minLen {
		out = append(out, iv)
	}
	return out
}

func sortIntervals(ivs []models.Interval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
}
