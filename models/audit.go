package models

import "time"

// StatusChange records a single status transition for audit and dispute
// resolution. Every transition in Booking, Payment and RefundRequest appends
// one of these.
type StatusChange struct {
	From  string    `bson:"from" json:"from"`
	To    string    `bson:"to" json:"to"`
	Actor string    `bson:"actor" json:"actor"` // user/admin/provider id, "gateway" or "system"
	Note  string    `bson:"note,omitempty" json:"note,omitempty"`
	At    time.Time `bson:"at" json:"at"`
}

// NewStatusChange builds an audit entry stamped with the current time.
func NewStatusChange(from, to, actor, note string) StatusChange {
	return StatusChange{From: from, To: to, Actor: actor, Note: note, At: time.Now().UTC()}
}
