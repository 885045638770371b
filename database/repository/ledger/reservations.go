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

// InsertReservation claims a slot. The unique (provider_id, start, end)
// index turns a racing second claim into ErrDuplicateHold.
func (r *MongoLedgerRepo) InsertReservation(ctx context.Context, res *models.Reservation) error {
	if _, err := r.reservationColl.InsertOne(ctx, res); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateHold
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// GetReservationByToken resolves a reservation by the client's idempotency
// token. Used to make order issuing safe under client retry.
func (r *MongoLedgerRepo) GetReservationByToken(ctx context.Context, token string) (*models.Reservation, error) {
	return r.findReservation(ctx, bson.M{"request_token": token})
}

// GetReservationByOrderID resolves a reservation by the gateway order id.
func (r *MongoLedgerRepo) GetReservationByOrderID(ctx context.Context, orderID string) (*models.Reservation, error) {
	return r.findReservation(ctx, bson.M{"gateway_order_id": orderID})
}

func (r *MongoLedgerRepo) findReservation(ctx context.Context, filter bson.M) (*models.Reservation, error) {
	var res models.Reservation
	err := r.reservationColl.FindOne(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}
	return &res, nil
}

// AttachGatewayOrder binds the gateway order id to a live hold and bumps its
// version counter.
func (r *MongoLedgerRepo) AttachGatewayOrder(ctx context.Context, reservationID, orderID string) error {
	filter := bson.M{"id": reservationID, "expires_at": bson.M{"$gt": time.Now().UTC()}}
	update := bson.M{
		"$set": bson.M{"gateway_order_id": orderID},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.reservationColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to attach order to reservation %s: %w", reservationID, err)
	}
	if res.MatchedCount == 0 {
		return ErrHoldExpired
	}
	return nil
}

// ReleaseReservation drops a hold explicitly (gateway failure, commit done).
func (r *MongoLedgerRepo) ReleaseReservation(ctx context.Context, reservationID string) error {
	if _, err := r.reservationColl.DeleteOne(ctx, bson.M{"id": reservationID}); err != nil {
		return fmt.Errorf("failed to release reservation %s: %w", reservationID, err)
	}
	return nil
}
