package models

import "time"

// RefundRequest statuses. Transitions are one-directional except
// processing → failed, which an admin may retry back to processing.
// processed and rejected are terminal.
const (
	RefundStatusPending    = "pending"
	RefundStatusProcessing = "processing"
	RefundStatusRejected   = "rejected"
	RefundStatusProcessed  = "processed"
	RefundStatusFailed     = "failed"
)

// RefundTerminal reports whether a refund request status is immutable.
func RefundTerminal(status string) bool {
	return status == RefundStatusProcessed || status == RefundStatusRejected
}

// RefundRequest tracks a refund from submission through gateway-side
// reversal to final reconciliation. Its ID doubles as the idempotency key
// for the gateway refund call, so a retried approval cannot double-refund.
type RefundRequest struct {
	ID              string         `bson:"id" json:"id"`
	PaymentID       string         `bson:"payment_id" json:"payment_id"`
	RequestedBy     string         `bson:"requested_by" json:"requested_by"`
	Amount          int64          `bson:"amount" json:"amount"`
	Status          string         `bson:"status" json:"status"`
	Reason          string         `bson:"reason,omitempty" json:"reason,omitempty"`
	AdminResponse   string         `bson:"admin_response,omitempty" json:"admin_response,omitempty"`
	GatewayRefundID string         `bson:"gateway_refund_id,omitempty" json:"gateway_refund_id,omitempty"`
	FailureReason   string         `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	StatusHistory   []StatusChange `bson:"status_history" json:"status_history"`
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at" json:"updated_at"`
}
