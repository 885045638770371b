package models

import "time"

// Payment statuses. A payment only ever advances forward through this
// lattice; it is never reset to an earlier state.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusPending    = "pending"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
)

var paymentStatusRank = map[string]int{
	PaymentStatusCreated:    0,
	PaymentStatusPending:    1,
	PaymentStatusAuthorized: 2,
	PaymentStatusCaptured:   3,
	PaymentStatusRefunded:   4,
	PaymentStatusFailed:     5,
}

// PaymentStatusAdvances reports whether moving from one status to another is
// a forward move in the payment lattice.
func PaymentStatusAdvances(from, to string) bool {
	fr, ok := paymentStatusRank[from]
	if !ok {
		return false
	}
	tr, ok := paymentStatusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// Payment represents money movement for a booking. BookingID stays empty
// until the booking is confirmed; before that the payment is resolved via
// GatewayOrderID. Amounts are in minor currency units.
type Payment struct {
	ID               string         `bson:"id" json:"id"`
	BookingID        string         `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	GatewayOrderID   string         `bson:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string         `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	Amount           int64          `bson:"amount" json:"amount"`
	Currency         string         `bson:"currency" json:"currency"`
	Status           string         `bson:"status" json:"status"`
	RefundAmount     int64          `bson:"refund_amount" json:"refund_amount"`
	RefundedAt       *time.Time     `bson:"refunded_at,omitempty" json:"refunded_at,omitempty"`
	StatusHistory    []StatusChange `bson:"status_history" json:"status_history"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at" json:"updated_at"`
}

// Refundable returns how much of the captured amount is still refundable.
func (p *Payment) Refundable() int64 {
	return p.Amount - p.RefundAmount
}
