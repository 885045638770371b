package refund

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	refundRepo "slotify/database/repository/refund"
	"slotify/models"
	"slotify/services/booking"
	"slotify/services/gateway"
)

// RefundGateway is the slice of the gateway client the coordinator uses.
type RefundGateway interface {
	CreateRefund(ctx context.Context, gatewayPaymentID string, amount int64, idempotencyKey string) (*gateway.Refund, error)
	GetRefund(ctx context.Context, refundID string) (*gateway.Refund, error)
}

// Coordinator manages refund requests from submission through gateway-side
// reversal to final reconciliation.
type Coordinator interface {
	Open(ctx context.Context, paymentID, requestedBy string, amount int64, reason string) (*models.RefundRequest, error)
	Approve(ctx context.Context, requestID, admin string) (*models.RefundRequest, error)
	Reject(ctx context.Context, requestID, admin, reason string) (*models.RefundRequest, error)
	Retry(ctx context.Context, requestID, admin string) (*models.RefundRequest, error)
	Poll(ctx context.Context, requestID string) (*models.RefundRequest, error)
	Compensate(ctx context.Context, paymentID, reason string) (*models.RefundRequest, error)
	Get(ctx context.Context, requestID string) (*models.RefundRequest, error)
	ListByStatus(ctx context.Context, status string, limit int64) ([]models.RefundRequest, error)
}

// DefaultCoordinator is the production refund coordinator.
type DefaultCoordinator struct {
	Refunds refundRepo.RefundRepository
	Ledger  ledgerRepo.LedgerRepository
	Gateway RefundGateway
	Logger  *zap.Logger
}

// Open submits a refund request against a captured payment. amount == 0
// means "everything still refundable".
func (c *DefaultCoordinator) Open(ctx context.Context, paymentID, requestedBy string, amount int64, reason string) (*models.RefundRequest, error) {
	payment, err := c.Ledger.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, booking.NewValidationError("unknown payment %s", paymentID)
		}
		return nil, err
	}
	if payment.Status != models.PaymentStatusCaptured {
		return nil, booking.NewValidationError("payment %s is %s, only captured payments are refundable", paymentID, payment.Status)
	}
	if amount == 0 {
		amount = payment.Refundable()
	}
	if amount <= 0 || amount > payment.Refundable() {
		return nil, booking.NewValidationError("refund amount %d exceeds refundable %d", amount, payment.Refundable())
	}

	now := time.Now().UTC()
	req := &models.RefundRequest{
		ID:          uuid.New().String(),
		PaymentID:   paymentID,
		RequestedBy: requestedBy,
		Amount:      amount,
		Status:      models.RefundStatusPending,
		Reason:      reason,
		StatusHistory: []models.StatusChange{
			models.NewStatusChange("", models.RefundStatusPending, requestedBy, reason),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Refunds.Insert(ctx, req); err != nil {
		return nil, err
	}
	c.Logger.Info("refund request opened",
		zap.String("refundRequestID", req.ID),
		zap.String("paymentID", paymentID),
		zap.Int64("amount", amount))
	return req, nil
}

// Approve moves a pending request to processing and calls the gateway's
// reversal endpoint. The request id is the idempotency key, so a retried
// approval after a timeout cannot produce a double refund.
func (c *DefaultCoordinator) Approve(ctx context.Context, requestID, admin string) (*models.RefundRequest, error) {
	req, err := c.mustGet(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := c.guardTransition(req, models.RefundStatusPending); err != nil {
		return nil, err
	}

	req.AdminResponse = "approved by " + admin
	if err := c.move(ctx, req, models.RefundStatusPending, models.RefundStatusProcessing, admin, "approved"); err != nil {
		return nil, err
	}
	return c.execute(ctx, req, admin)
}

// Reject declines a pending request. The reason is mandatory and persisted;
// rejected is terminal.
func (c *DefaultCoordinator) Reject(ctx context.Context, requestID, admin, reason string) (*models.RefundRequest, error) {
	if reason == "" {
		return nil, booking.NewValidationError("a rejection reason is required")
	}
	req, err := c.mustGet(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := c.guardTransition(req, models.RefundStatusPending); err != nil {
		return nil, err
	}
	req.AdminResponse = reason
	if err := c.move(ctx, req, models.RefundStatusPending, models.RefundStatusRejected, admin, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// Retry re-triggers the gateway call for a failed request.
func (c *DefaultCoordinator) Retry(ctx context.Context, requestID, admin string) (*models.RefundRequest, error) {
	req, err := c.mustGet(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := c.guardTransition(req, models.RefundStatusFailed); err != nil {
		return nil, err
	}
	req.FailureReason = ""
	if err := c.move(ctx, req, models.RefundStatusFailed, models.RefundStatusProcessing, admin, "retry"); err != nil {
		return nil, err
	}
	return c.execute(ctx, req, admin)
}

// Poll checks the gateway for the outcome of an in-flight refund and settles
// the request if the gateway reports it processed.
func (c *DefaultCoordinator) Poll(ctx context.Context, requestID string) (*models.RefundRequest, error) {
	req, err := c.mustGet(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RefundStatusProcessing || req.GatewayRefundID == "" {
		return req, nil
	}
	gw, err := c.Gateway.GetRefund(ctx, req.GatewayRefundID)
	if err != nil {
		return nil, err
	}
	switch gw.Status {
	case gateway.RefundStatusProcessed:
		if err := c.settle(ctx, req, "gateway"); err != nil {
			return nil, err
		}
	case gateway.RefundStatusFailed:
		req.FailureReason = "gateway reported refund failed"
		if err := c.move(ctx, req, models.RefundStatusProcessing, models.RefundStatusFailed, "gateway", req.FailureReason); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Compensate opens and immediately executes a system refund for a payment
// that was captured without a booking. Safe to re-run: an existing
// non-terminal compensation for the payment is resumed instead of duplicated.
func (c *DefaultCoordinator) Compensate(ctx context.Context, paymentID, reason string) (*models.RefundRequest, error) {
	existing, err := c.Refunds.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		req := &existing[i]
		if req.RequestedBy != "system" {
			continue
		}
		switch req.Status {
		case models.RefundStatusProcessed:
			return req, nil
		case models.RefundStatusPending:
			if err := c.move(ctx, req, models.RefundStatusPending, models.RefundStatusProcessing, "system", "compensation"); err != nil {
				return nil, err
			}
			return c.execute(ctx, req, "system")
		case models.RefundStatusProcessing:
			return c.execute(ctx, req, "system")
		case models.RefundStatusFailed:
			return c.Retry(ctx, req.ID, "system")
		}
	}

	req, err := c.Open(ctx, paymentID, "system", 0, reason)
	if err != nil {
		return nil, err
	}
	if err := c.move(ctx, req, models.RefundStatusPending, models.RefundStatusProcessing, "system", "compensation"); err != nil {
		return nil, err
	}
	return c.execute(ctx, req, "system")
}

// Get returns a refund request by id.
func (c *DefaultCoordinator) Get(ctx context.Context, requestID string) (*models.RefundRequest, error) {
	return c.mustGet(ctx, requestID)
}

// ListByStatus lists refund requests in a status, oldest first.
func (c *DefaultCoordinator) ListByStatus(ctx context.Context, status string, limit int64) ([]models.RefundRequest, error) {
	return c.Refunds.ListByStatus(ctx, status, limit)
}

// execute performs the gateway reversal for a request already in processing
// and settles or fails it based on the response.
func (c *DefaultCoordinator) execute(ctx context.Context, req *models.RefundRequest, actor string) (*models.RefundRequest, error) {
	payment, err := c.Ledger.GetPaymentByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	gw, err := c.Gateway.CreateRefund(ctx, payment.GatewayPaymentID, req.Amount, req.ID)
	if err != nil {
		req.FailureReason = err.Error()
		if mErr := c.move(ctx, req, models.RefundStatusProcessing, models.RefundStatusFailed, actor, "gateway call failed"); mErr != nil {
			return nil, mErr
		}
		// Surfaced with its retry hint, never swallowed.
		return req, err
	}

	req.GatewayRefundID = gw.ID
	if err := c.Refunds.Update(ctx, req, models.RefundStatusProcessing); err != nil {
		return nil, err
	}

	switch gw.Status {
	case gateway.RefundStatusProcessed:
		if err := c.settle(ctx, req, actor); err != nil {
			return nil, err
		}
	case gateway.RefundStatusFailed:
		req.FailureReason = "gateway rejected refund"
		if err := c.move(ctx, req, models.RefundStatusProcessing, models.RefundStatusFailed, actor, req.FailureReason); err != nil {
			return nil, err
		}
	}
	// RefundStatusPending is settled later by the poll task.
	return req, nil
}

// settle records the refunded money on the payment, cancels the associated
// booking, and marks the request processed.
func (c *DefaultCoordinator) settle(ctx context.Context, req *models.RefundRequest, actor string) error {
	payment, err := c.Ledger.GetPaymentByID(ctx, req.PaymentID)
	if err != nil {
		return err
	}

	newRefunded := payment.RefundAmount + req.Amount
	toStatus := models.PaymentStatusCaptured
	if newRefunded >= payment.Amount {
		toStatus = models.PaymentStatusRefunded
	}
	now := time.Now().UTC()
	change := models.NewStatusChange(payment.Status, toStatus, actor, "refund "+req.ID+" settled")
	if err := c.Ledger.ApplyRefund(ctx, payment.ID, payment.RefundAmount, newRefunded, now, toStatus, change); err != nil {
		return err
	}

	// A full refund releases the booking; a partial one leaves it standing.
	if payment.BookingID != "" && toStatus == models.PaymentStatusRefunded {
		bc := models.NewStatusChange(models.BookingStatusConfirmed, models.BookingStatusCancelled, actor, "refund processed")
		err := c.Ledger.TransitionBooking(ctx, payment.BookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled, bc)
		if err != nil && !errors.Is(err, ledgerRepo.ErrStaleStatus) {
			return err
		}
	}

	if err := c.move(ctx, req, models.RefundStatusProcessing, models.RefundStatusProcessed, actor, "gateway confirmed"); err != nil {
		return err
	}
	c.Logger.Info("refund processed",
		zap.String("refundRequestID", req.ID),
		zap.String("paymentID", payment.ID),
		zap.Int64("amount", req.Amount))
	return nil
}

// guardTransition enforces the one-directional state machine. processed and
// rejected are terminal and immutable.
func (c *DefaultCoordinator) guardTransition(req *models.RefundRequest, from string) error {
	if models.RefundTerminal(req.Status) {
		return booking.NewInvalidTransition("refund request %s is %s and cannot change", req.ID, req.Status)
	}
	if req.Status != from {
		return booking.NewInvalidTransition("refund request %s is %s, expected %s", req.ID, req.Status, from)
	}
	return nil
}

// move updates the request status with its audit entry, guarded on the
// current stored status.
func (c *DefaultCoordinator) move(ctx context.Context, req *models.RefundRequest, from, to, actor, note string) error {
	change := models.NewStatusChange(from, to, actor, note)
	req.Status = to
	req.UpdatedAt = change.At
	req.StatusHistory = append(req.StatusHistory, change)
	err := c.Refunds.Update(ctx, req, from)
	if errors.Is(err, refundRepo.ErrStaleStatus) {
		return booking.NewInvalidTransition("refund request %s changed concurrently", req.ID)
	}
	return err
}

func (c *DefaultCoordinator) mustGet(ctx context.Context, requestID string) (*models.RefundRequest, error) {
	req, err := c.Refunds.GetByID(ctx, requestID)
	if errors.Is(err, refundRepo.ErrNotFound) {
		return nil, booking.NewValidationError("unknown refund request %s", requestID)
	}
	return req, err
}
