package ledgerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotify/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// preCaptureStatuses are the payment statuses capture may advance from.
var preCaptureStatuses = []string{
	models.PaymentStatusCreated,
	models.PaymentStatusPending,
	models.PaymentStatusAuthorized,
}

// InsertPayment persists a new payment document.
func (r *MongoLedgerRepo) InsertPayment(ctx context.Context, p *models.Payment) error {
	if _, err := r.paymentColl.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByID retrieves a payment document by ID.
func (r *MongoLedgerRepo) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findPayment(ctx, bson.M{"id": id})
}

// GetPaymentByOrderID retrieves a payment by the gateway's order id. This is
// the idempotency key for callback processing.
func (r *MongoLedgerRepo) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.findPayment(ctx, bson.M{"gateway_order_id": orderID})
}

func (r *MongoLedgerRepo) findPayment(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var p models.Payment
	err := r.paymentColl.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &p, nil
}

// MarkPaymentCaptured advances a payment to captured. Guarded on the
// pre-capture statuses so the lattice only ever moves forward.
func (r *MongoLedgerRepo) MarkPaymentCaptured(ctx context.Context, paymentID, gatewayPaymentID, bookingID string, change models.StatusChange) error {
	filter := bson.M{"id": paymentID, "status": bson.M{"$in": preCaptureStatuses}}
	set := bson.M{
		"status":             models.PaymentStatusCaptured,
		"gateway_payment_id": gatewayPaymentID,
		"updated_at":         change.At,
	}
	if bookingID != "" {
		set["booking_id"] = bookingID
	}
	update := bson.M{"$set": set, "$push": bson.M{"status_history": change}}
	res, err := r.paymentColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to capture payment %s: %w", paymentID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetPaymentByID(ctx, paymentID); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}

// ApplyRefund records refunded money against a captured payment. The filter
// pins the previously observed refund_amount and re-checks the cap against
// the captured amount server-side, so two racing settlements cannot both
// apply and refund_amount can never exceed amount.
func (r *MongoLedgerRepo) ApplyRefund(ctx context.Context, paymentID string, prevRefunded, newRefunded int64, at time.Time, toStatus string, change models.StatusChange) error {
	if newRefunded < prevRefunded {
		return fmt.Errorf("refund amount would move backwards for payment %s", paymentID)
	}
	filter := bson.M{
		"id":            paymentID,
		"status":        bson.M{"$in": []string{models.PaymentStatusCaptured, models.PaymentStatusRefunded}},
		"refund_amount": prevRefunded,
		"$expr":         bson.M{"$lte": bson.A{newRefunded, "$amount"}},
	}
	update := bson.M{
		"$set": bson.M{
			"refund_amount": newRefunded,
			"refunded_at":   at,
			"status":        toStatus,
			"updated_at":    at,
		},
		"$push": bson.M{"status_history": change},
	}
	res, err := r.paymentColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to apply refund to payment %s: %w", paymentID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetPaymentByID(ctx, paymentID); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}
