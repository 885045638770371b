package models

import "time"

// Reservation is a short-lived claim on a slot while payment is in flight.
// It is a persisted row rather than an in-process lock so the claim holds
// across concurrently running service instances. A unique index on
// (provider_id, start, end) makes the claim exclusive; a TTL index on
// expires_at releases it automatically.
type Reservation struct {
	ID             string    `bson:"id" json:"id"`
	ProviderID     string    `bson:"provider_id" json:"provider_id"`
	Start          time.Time `bson:"start" json:"start"`
	End            time.Time `bson:"end" json:"end"`
	BookingID      string    `bson:"booking_id" json:"booking_id"`
	RequestToken   string    `bson:"request_token" json:"request_token"` // client idempotency token
	GatewayOrderID string    `bson:"gateway_order_id,omitempty" json:"gateway_order_id,omitempty"`
	Version        int       `bson:"version" json:"version"`
	ExpiresAt      time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// Expired reports whether the hold has lapsed at the given instant.
func (r *Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
