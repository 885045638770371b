package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	ledgerRepo "slotify/database/repository/ledger"
	"slotify/models"
)

// TypeRefundCompensate is the task type for automatic compensating refunds.
const TypeRefundCompensate = "refund:compensate"

// CompensatePayload is the payload of a refund:compensate task.
type CompensatePayload struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

// DefaultPaymentVerifier validates gateway callbacks and commits bookings.
type DefaultPaymentVerifier struct {
	Ledger  ledgerRepo.LedgerRepository
	Gateway PaymentGateway
	Tasks   TaskEnqueuer
	Logger  *zap.Logger
}

// VerifyAndCommit processes a payment callback. Duplicate deliveries of the
// same (orderId, paymentId) pair are no-ops returning the already-confirmed
// result. A valid payment that lost its slot is captured and immediately
// queued for a compensating refund; money is never left captured-but-unbooked
// silently.
func (s *DefaultPaymentVerifier) VerifyAndCommit(ctx context.Context, payload CallbackPayload) (*VerifyResult, error) {
	if payload.OrderID == "" || payload.PaymentID == "" || payload.Signature == "" {
		return nil, NewValidationError("orderId, paymentId and signature are required")
	}

	if !s.Gateway.VerifySignature(payload.OrderID, payload.PaymentID, payload.Signature) {
		// Security event: reject before touching any state.
		s.Logger.Warn("payment callback signature mismatch",
			zap.String("orderID", payload.OrderID),
			zap.String("paymentID", payload.PaymentID))
		return nil, NewInvalidSignature("payment signature verification failed")
	}

	payment, err := s.Ledger.GetPaymentByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, NewValidationError("unknown order %s", payload.OrderID)
		}
		return nil, err
	}

	// A different capture for an order that already settled. The original
	// payment and its booking are legitimate and must stay untouched; the
	// conflicting capture is an anomaly for operators to reverse at the
	// gateway.
	if payment.GatewayPaymentID != "" && payment.GatewayPaymentID != payload.PaymentID {
		s.Logger.Error("conflicting capture reported for a settled order",
			zap.String("orderID", payload.OrderID),
			zap.String("paymentID", payment.ID),
			zap.String("settledGatewayPaymentID", payment.GatewayPaymentID),
			zap.String("conflictingGatewayPaymentID", payload.PaymentID))
		return nil, NewInconsistentState("order %s was already settled by a different capture", payload.OrderID)
	}

	// Duplicate delivery: the pair was already processed.
	if payment.GatewayPaymentID == payload.PaymentID {
		switch payment.Status {
		case models.PaymentStatusCaptured:
			if payment.BookingID != "" {
				confirmed, err := s.Ledger.GetBookingByID(ctx, payment.BookingID)
				if err != nil {
					return nil, err
				}
				return &VerifyResult{Booking: confirmed, PaymentID: payment.ID}, nil
			}
			// Captured without a booking: the compensating refund is already
			// on its way.
			return &VerifyResult{PaymentID: payment.ID, RefundPending: true}, NewSlotConflict("slot was lost, refund pending")
		case models.PaymentStatusRefunded:
			return &VerifyResult{PaymentID: payment.ID, RefundPending: true}, NewSlotConflict("slot was lost, payment refunded")
		}
	}

	hold, err := s.Ledger.GetReservationByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, ledgerRepo.ErrNotFound) {
			// Hold already expired and swept. Funds were captured at the
			// gateway, so compensate.
			return s.captureAndCompensate(ctx, payment, payload.PaymentID, "reservation expired before capture")
		}
		return nil, err
	}

	confirmed, err := s.Ledger.ConfirmBookingPayment(ctx, ledgerRepo.ConfirmParams{
		BookingID:        hold.BookingID,
		PaymentID:        payment.ID,
		ReservationID:    hold.ID,
		GatewayPaymentID: payload.PaymentID,
		Now:              time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ledgerRepo.ErrHoldExpired):
			return s.captureAndCompensate(ctx, payment, payload.PaymentID, "reservation expired before capture")
		case errors.Is(err, ledgerRepo.ErrSlotTaken):
			return s.captureAndCompensate(ctx, payment, payload.PaymentID, "slot lost to a concurrent booking")
		case errors.Is(err, ledgerRepo.ErrStaleStatus):
			// Another delivery of this callback won the commit.
			return s.reloadConfirmed(ctx, payment.ID)
		}
		return nil, err
	}

	s.Logger.Info("booking confirmed",
		zap.String("bookingID", confirmed.ID),
		zap.String("paymentID", payment.ID),
		zap.String("orderID", payload.OrderID))

	return &VerifyResult{Booking: confirmed, PaymentID: payment.ID}, nil
}

// captureAndCompensate records the captured funds and queues an automatic
// refund. This is the InconsistentState remediation path: it is reported to
// operators, never exposed raw to the user.
func (s *DefaultPaymentVerifier) captureAndCompensate(ctx context.Context, payment *models.Payment, gatewayPaymentID, reason string) (*VerifyResult, error) {
	change := models.NewStatusChange(payment.Status, models.PaymentStatusCaptured, "gateway", reason)
	if err := s.Ledger.MarkPaymentCaptured(ctx, payment.ID, gatewayPaymentID, "", change); err != nil {
		if !errors.Is(err, ledgerRepo.ErrStaleStatus) {
			return nil, err
		}
	}

	// Operator alert plus automatic remediation.
	s.Logger.Error("payment captured without booking, compensating refund queued",
		zap.String("paymentID", payment.ID),
		zap.String("gatewayPaymentID", gatewayPaymentID),
		zap.String("reason", reason))

	payload, err := json.Marshal(CompensatePayload{PaymentID: payment.ID, Reason: reason})
	if err != nil {
		return nil, err
	}
	task := asynq.NewTask(TypeRefundCompensate, payload)
	if _, err := s.Tasks.EnqueueContext(ctx, task, asynq.MaxRetry(10), asynq.TaskID("compensate:"+payment.ID)); err != nil {
		if !errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, NewInconsistentState("payment %s captured without booking and compensation could not be queued: %v", payment.ID, err)
		}
	}

	return &VerifyResult{PaymentID: payment.ID, RefundPending: true}, NewSlotConflict("slot was lost, refund pending")
}

func (s *DefaultPaymentVerifier) reloadConfirmed(ctx context.Context, paymentID string) (*VerifyResult, error) {
	payment, err := s.Ledger.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.BookingID == "" {
		return &VerifyResult{PaymentID: payment.ID, RefundPending: true}, NewSlotConflict("slot was lost, refund pending")
	}
	confirmed, err := s.Ledger.GetBookingByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Booking: confirmed, PaymentID: payment.ID}, nil
}
