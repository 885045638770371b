package models

import "time"

// Booking statuses. A booking is created pending when a slot is reserved and
// becomes confirmed only once its payment is captured.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusRejected  = "rejected"
)

// Booking represents a booking record. Start/End form a half-open interval
// [start, end): two bookings touching at a boundary do not overlap.
type Booking struct {
	ID            string         `bson:"id" json:"id"`
	CustomerID    string         `bson:"customer_id" json:"customer_id"`
	ProviderID    string         `bson:"provider_id" json:"provider_id"`
	ServiceID     string         `bson:"service_id" json:"service_id"`
	Start         time.Time      `bson:"start" json:"start"`
	End           time.Time      `bson:"end" json:"end"`
	Status        string         `bson:"status" json:"status"`
	Price         int64          `bson:"price" json:"price"`
	Currency      string         `bson:"currency" json:"currency"`
	PaymentID     string         `bson:"payment_id,omitempty" json:"payment_id,omitempty"` // set once confirmed
	ReservationID string         `bson:"reservation_id,omitempty" json:"reservation_id,omitempty"`
	StatusHistory []StatusChange `bson:"status_history" json:"status_history"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// Interval returns the booking's occupied time interval.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ActiveBookingStatuses are the statuses that occupy a slot. The no-overlap
// invariant is enforced over these.
var ActiveBookingStatuses = []string{BookingStatusPending, BookingStatusConfirmed}
