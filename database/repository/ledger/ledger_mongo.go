package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"slotify/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLedgerRepo implements LedgerRepository using MongoDB.
type MongoLedgerRepo struct {
	bookingColl     *mongo.Collection
	reservationColl *mongo.Collection
	paymentColl     *mongo.Collection
}

// NewMongoLedgerRepo constructs a new instance of MongoLedgerRepo.
func NewMongoLedgerRepo() *MongoLedgerRepo {
	db := database.MongoClient.Database(database.DatabaseName)
	return &MongoLedgerRepo{
		bookingColl:     db.Collection("bookings"),
		reservationColl: db.Collection("reservations"),
		paymentColl:     db.Collection("payments"),
	}
}

// EnsureIndexes creates the indexes the ledger relies on for correctness.
// The unique (provider_id, start, end) index on reservations is what makes
// a slot claim exclusive across service instances; the TTL index on
// expires_at releases lapsed holds without manual intervention.
func (r *MongoLedgerRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bookingModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_booking_id"),
		},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "status", Value: 1}, {Key: "start", Value: 1}, {Key: "end", Value: 1}},
			Options: options.Index().SetName("booking_provider_status_window_idx"),
		},
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("booking_customer_idx"),
		},
	}
	if _, err := r.bookingColl.Indexes().CreateMany(ctx, bookingModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	reservationModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_reservation_id"),
		},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "start", Value: 1}, {Key: "end", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_slot_hold"),
		},
		{
			Keys:    bson.D{{Key: "request_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_request_token"),
		},
		{
			Keys:    bson.D{{Key: "gateway_order_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reservation_order_idx"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("reservation_ttl_idx"),
		},
	}
	if _, err := r.reservationColl.Indexes().CreateMany(ctx, reservationModels); err != nil {
		return fmt.Errorf("failed to create reservation indexes: %w", err)
	}

	paymentModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_payment_id"),
		},
		{
			Keys:    bson.D{{Key: "gateway_order_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_gateway_order_id"),
		},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("payment_booking_idx"),
		},
	}
	if _, err := r.paymentColl.Indexes().CreateMany(ctx, paymentModels); err != nil {
		return fmt.Errorf("failed to create payment indexes: %w", err)
	}
	return nil
}
