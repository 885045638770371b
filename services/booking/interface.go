package booking

import (
	"context"
	"time"

	"slotify/models"
	"slotify/services/gateway"

	"github.com/hibiken/asynq"
)

// PaymentGateway is the slice of the gateway client the booking engine uses.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// TaskEnqueuer enqueues background tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RefundOpener opens a refund request against a captured payment. Implemented
// by the refund coordinator; declared here so booking does not depend on it.
type RefundOpener interface {
	Open(ctx context.Context, paymentID, requestedBy string, amount int64, reason string) (*models.RefundRequest, error)
}

// IssueOrderRequest asks for a slot reservation plus a gateway order.
type IssueOrderRequest struct {
	CustomerID   string    `json:"customerId"`
	ProviderID   string    `json:"providerId"`
	ServiceID    string    `json:"serviceId"`
	Start        time.Time `json:"start"`
	RequestToken string    `json:"requestToken"` // client idempotency token
}

// IssueOrderResult is returned to the client so it can complete payment at
// the gateway.
type IssueOrderResult struct {
	BookingID      string    `json:"bookingId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// OrderIssuer reserves a slot and opens a payment order for it.
type OrderIssuer interface {
	IssueOrder(ctx context.Context, req IssueOrderRequest) (*IssueOrderResult, error)
}

// CallbackPayload carries the payment credentials the client returns from
// the gateway. Every field is untrusted until the signature verifies.
type CallbackPayload struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyResult reports the outcome of processing a payment callback.
type VerifyResult struct {
	Booking       *models.Booking `json:"booking,omitempty"`
	PaymentID     string          `json:"paymentId"`
	RefundPending bool            `json:"refundPending,omitempty"`
}

// PaymentVerifier validates gateway callbacks and commits confirmed bookings.
type PaymentVerifier interface {
	VerifyAndCommit(ctx context.Context, payload CallbackPayload) (*VerifyResult, error)
}

// LedgerService drives post-confirmation booking lifecycle transitions.
type LedgerService interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListCustomerBookings(ctx context.Context, customerID string, limit int64) ([]models.Booking, error)
	ListProviderBookings(ctx context.Context, providerID string, from, to time.Time) ([]models.Booking, error)
	Complete(ctx context.Context, bookingID, actor string) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actor, reason string) (*models.Booking, *models.RefundRequest, error)
	Reject(ctx context.Context, bookingID, actor, reason string) (*models.Booking, error)
}
