package models

import "time"

// SlotWindow is one bookable window within a day, expressed in minutes from
// midnight local wall-clock time (e.g., 540 for 09:00).
type SlotWindow struct {
	Start int `bson:"start" json:"start"`
	End   int `bson:"end" json:"end"`
}

// DayRule maps a weekday to the provider's bookable windows on that day.
type DayRule struct {
	Day     time.Weekday `bson:"day" json:"day"`
	Windows []SlotWindow `bson:"windows" json:"windows"`
}

// Provider represents a bookable service provider.
type Provider struct {
	ID                string    `bson:"id" json:"id"`
	Name              string    `bson:"name" json:"name"`
	RecurringSchedule []DayRule `bson:"recurring_schedule" json:"recurring_schedule"`
	// UTCOffsetMinutes fixes the provider's wall clock relative to UTC.
	// No daylight-saving adjustment is applied.
	UTCOffsetMinutes int       `bson:"utc_offset_minutes" json:"utc_offset_minutes"`
	Currency         string    `bson:"currency" json:"currency"`
	Active           bool      `bson:"active" json:"active"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// Location returns the provider's fixed-offset time zone.
func (p *Provider) Location() *time.Location {
	return time.FixedZone("provider", p.UTCOffsetMinutes*60)
}

// Service is a bookable offering of a provider. Price is in minor currency
// units (paise, cents).
type Service struct {
	ID              string    `bson:"id" json:"id"`
	ProviderID      string    `bson:"provider_id" json:"provider_id"`
	Name            string    `bson:"name" json:"name"`
	Price           int64     `bson:"price" json:"price"`
	DurationMinutes int       `bson:"duration_minutes" json:"duration_minutes"`
	Active          bool      `bson:"active" json:"active"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
