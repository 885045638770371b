package ledgerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotify/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertBooking persists a new booking document.
func (r *MongoLedgerRepo) InsertBooking(ctx context.Context, b *models.Booking) error {
	if _, err := r.bookingColl.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking document by ID.
func (r *MongoLedgerRepo) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := r.bookingColl.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return &b, nil
}

// overlapFilter matches {pending, confirmed} bookings of a provider whose
// half-open [start, end) intersects the given interval.
func overlapFilter(providerID string, start, end time.Time, excludeID string) bson.M {
	filter := bson.M{
		"provider_id": providerID,
		"status":      bson.M{"$in": models.ActiveBookingStatuses},
		"start":       bson.M{"$lt": end},
		"end":         bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

// FindOverlapping returns active bookings intersecting the interval.
func (r *MongoLedgerRepo) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]models.Booking, error) {
	cur, err := r.bookingColl.Find(ctx, overlapFilter(providerID, start, end, excludeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer cur.Close(ctx)

	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping bookings: %w", err)
	}
	return bookings, nil
}

// BusyIntervals returns the occupied intervals of a provider inside [from, to).
func (r *MongoLedgerRepo) BusyIntervals(ctx context.Context, providerID string, from, to time.Time) ([]models.Interval, error) {
	opts := options.Find().
		SetProjection(bson.M{"start": 1, "end": 1, "_id": 0}).
		SetSort(bson.D{{Key: "start", Value: 1}})
	cur, err := r.bookingColl.Find(ctx, overlapFilter(providerID, from, to, ""), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query busy intervals: %w", err)
	}
	defer cur.Close(ctx)

	var intervals []models.Interval
	if err := cur.All(ctx, &intervals); err != nil {
		return nil, fmt.Errorf("failed to decode busy intervals: %w", err)
	}
	return intervals, nil
}

// TransitionBooking moves a booking between statuses, guarded on the current
// status, and appends the audit entry in the same update.
func (r *MongoLedgerRepo) TransitionBooking(ctx context.Context, id, from, to string, change models.StatusChange) error {
	filter := bson.M{"id": id, "status": from}
	update := bson.M{
		"$set":  bson.M{"status": to, "updated_at": change.At},
		"$push": bson.M{"status_history": change},
	}
	res, err := r.bookingColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to transition booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetBookingByID(ctx, id); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}

// DiscardPendingBooking removes a pending booking. Matched-on-status so a
// booking confirmed by a racing callback is never discarded.
func (r *MongoLedgerRepo) DiscardPendingBooking(ctx context.Context, id string) error {
	res, err := r.bookingColl.DeleteOne(ctx, bson.M{"id": id, "status": models.BookingStatusPending})
	if err != nil {
		return fmt.Errorf("failed to discard pending booking %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookingsByCustomer returns a customer's bookings, newest first.
func (r *MongoLedgerRepo) ListBookingsByCustomer(ctx context.Context, customerID string, limit int64) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.bookingColl.Find(ctx, bson.M{"customer_id": customerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for customer %s: %w", customerID, err)
	}
	defer cur.Close(ctx)

	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsByProvider returns a provider's bookings inside [from, to).
func (r *MongoLedgerRepo) ListBookingsByProvider(ctx context.Context, providerID string, from, to time.Time) ([]models.Booking, error) {
	filter := bson.M{
		"provider_id": providerID,
		"start":       bson.M{"$lt": to},
		"end":         bson.M{"$gt": from},
	}
	cur, err := r.bookingColl.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for provider %s: %w", providerID, err)
	}
	defer cur.Close(ctx)

	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}
