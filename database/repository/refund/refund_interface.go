package refundRepo

import (
	"context"
	"errors"

	"slotify/models"
)

var (
	// ErrNotFound is returned when a refund request does not exist.
	ErrNotFound = errors.New("refund request not found")
	// ErrStaleStatus is returned when a guarded update found the request in
	// a different status than expected.
	ErrStaleStatus = errors.New("refund request status changed concurrently")
)

// RefundRepository stores refund requests. Update is guarded on the current
// status so the one-directional state machine holds under concurrent admins.
type RefundRepository interface {
	Insert(ctx context.Context, req *models.RefundRequest) error
	GetByID(ctx context.Context, id string) (*models.RefundRequest, error)
	ListByStatus(ctx context.Context, status string, limit int64) ([]models.RefundRequest, error)
	ListByPayment(ctx context.Context, paymentID string) ([]models.RefundRequest, error)
	// Update replaces the stored document with req, but only if the stored
	// status still equals expectedStatus.
	Update(ctx context.Context, req *models.RefundRequest, expectedStatus string) error
}
