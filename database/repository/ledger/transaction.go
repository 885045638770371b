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

// ConfirmBookingPayment promotes a pending booking into a confirmed one
// against its captured payment, inside a single transaction. The hold and
// the overlap invariant are both re-checked at commit time: a valid payment
// signature alone is never enough to take a slot.
func (r *MongoLedgerRepo) ConfirmBookingPayment(ctx context.Context, p ConfirmParams) (*models.Booking, error) {
	client := r.bookingColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	var confirmed models.Booking

	txnFn := func(sc mongo.SessionContext) error {
		// Re-confirm the hold is still live.
		var hold models.Reservation
		err := r.reservationColl.FindOne(sc, bson.M{
			"id":         p.ReservationID,
			"expires_at": bson.M{"$gt": p.Now},
		}).Decode(&hold)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrHoldExpired
		}
		if err != nil {
			return fmt.Errorf("failed to re-check reservation: %w", err)
		}

		// Re-confirm no other committed booking now overlaps the slot.
		n, err := r.bookingColl.CountDocuments(sc, overlapFilter(hold.ProviderID, hold.Start, hold.End, p.BookingID))
		if err != nil {
			return fmt.Errorf("failed to re-check overlap: %w", err)
		}
		if n > 0 {
			return ErrSlotTaken
		}

		// Confirm the booking.
		bookingChange := models.NewStatusChange(models.BookingStatusPending, models.BookingStatusConfirmed, "gateway", "payment captured")
		bookingUpdate := bson.M{
			"$set": bson.M{
				"status":     models.BookingStatusConfirmed,
				"payment_id": p.PaymentID,
				"updated_at": bookingChange.At,
			},
			"$push": bson.M{"status_history": bookingChange},
		}
		res, err := r.bookingColl.UpdateOne(sc, bson.M{"id": p.BookingID, "status": models.BookingStatusPending}, bookingUpdate)
		if err != nil {
			return fmt.Errorf("failed to confirm booking: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrStaleStatus
		}

		// Capture the payment and bind it to the booking. The observed
		// status goes into the audit entry and pins the guarded update.
		var pay models.Payment
		if err := r.paymentColl.FindOne(sc, bson.M{"id": p.PaymentID}).Decode(&pay); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if !models.PaymentStatusAdvances(pay.Status, models.PaymentStatusCaptured) {
			return ErrStaleStatus
		}
		paymentChange := models.NewStatusChange(pay.Status, models.PaymentStatusCaptured, "gateway", "callback verified")
		paymentUpdate := bson.M{
			"$set": bson.M{
				"status":             models.PaymentStatusCaptured,
				"gateway_payment_id": p.GatewayPaymentID,
				"booking_id":         p.BookingID,
				"updated_at":         paymentChange.At,
			},
			"$push": bson.M{"status_history": paymentChange},
		}
		res, err = r.paymentColl.UpdateOne(sc, bson.M{"id": p.PaymentID, "status": pay.Status}, paymentUpdate)
		if err != nil {
			return fmt.Errorf("failed to capture payment: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrStaleStatus
		}

		// The confirmed booking itself now occupies the slot; the hold has
		// served its purpose.
		if _, err := r.reservationColl.DeleteOne(sc, bson.M{"id": p.ReservationID}); err != nil {
			return fmt.Errorf("failed to release reservation: %w", err)
		}

		if err := r.bookingColl.FindOne(sc, bson.M{"id": p.BookingID}).Decode(&confirmed); err != nil {
			return fmt.Errorf("failed to reload confirmed booking: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		if errors.Is(err, ErrHoldExpired) || errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrStaleStatus) {
			return nil, err
		}
		return nil, fmt.Errorf("confirm transaction failed: %w", err)
	}

	return &confirmed, nil
}

// SweepExpiredPending discards pending bookings whose reservation hold no
// longer exists, and fails stale unpaid payments. The TTL index does the
// actual hold expiry; this sweep cleans up the booking and payment rows the
// expired holds leave behind.
func (r *MongoLedgerRepo) SweepExpiredPending(ctx context.Context, bookingCutoff, paymentCutoff time.Time) (int, error) {
	cur, err := r.bookingColl.Find(ctx, bson.M{
		"status":     models.BookingStatusPending,
		"created_at": bson.M{"$lt": bookingCutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query stale pending bookings: %w", err)
	}
	defer cur.Close(ctx)

	var stale []models.Booking
	if err := cur.All(ctx, &stale); err != nil {
		return 0, fmt.Errorf("failed to decode stale pending bookings: %w", err)
	}

	swept := 0
	for _, b := range stale {
		// Skip bookings whose hold is somehow still live (clock skew).
		n, err := r.reservationColl.CountDocuments(ctx, bson.M{"booking_id": b.ID, "expires_at": bson.M{"$gt": bookingCutoff}})
		if err != nil {
			return swept, fmt.Errorf("failed to check hold for booking %s: %w", b.ID, err)
		}
		if n > 0 {
			continue
		}
		if err := r.DiscardPendingBooking(ctx, b.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return swept, err
		}
		swept++
	}

	// Payments whose order never completed: forward them to failed so the
	// lattice stays honest. A much longer cutoff keeps late callbacks safe.
	// One pass per status keeps the audit entry's from-value accurate.
	for _, from := range []string{models.PaymentStatusCreated, models.PaymentStatusPending} {
		change := models.NewStatusChange(from, models.PaymentStatusFailed, "system", "order expired unpaid")
		_, err = r.paymentColl.UpdateMany(ctx, bson.M{
			"status":     from,
			"created_at": bson.M{"$lt": paymentCutoff},
		}, bson.M{
			"$set":  bson.M{"status": models.PaymentStatusFailed, "updated_at": change.At},
			"$push": bson.M{"status_history": change},
		})
		if err != nil {
			return swept, fmt.Errorf("failed to fail stale payments: %w", err)
		}
	}

	return swept, nil
}
