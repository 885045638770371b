package refundRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotify/database"
	"slotify/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRefundRepo implements RefundRepository using MongoDB.
type MongoRefundRepo struct {
	coll *mongo.Collection
}

// NewMongoRefundRepo constructs a new instance of MongoRefundRepo.
func NewMongoRefundRepo() *MongoRefundRepo {
	db := database.MongoClient.Database(database.DatabaseName)
	return &MongoRefundRepo{coll: db.Collection("refund_requests")}
}

// EnsureIndexes creates the necessary indexes on the refund_requests collection.
func (r *MongoRefundRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_refund_id"),
		},
		{
			Keys:    bson.D{{Key: "payment_id", Value: 1}},
			Options: options.Index().SetName("refund_payment_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("refund_status_idx"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create refund indexes: %w", err)
	}
	return nil
}

// Insert persists a new refund request.
func (r *MongoRefundRepo) Insert(ctx context.Context, req *models.RefundRequest) error {
	if _, err := r.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to insert refund request: %w", err)
	}
	return nil
}

// GetByID retrieves a refund request by ID.
func (r *MongoRefundRepo) GetByID(ctx context.Context, id string) (*models.RefundRequest, error) {
	var req models.RefundRequest
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch refund request %s: %w", id, err)
	}
	return &req, nil
}

// ListByStatus returns refund requests in a given status, oldest first so
// admins work the queue in order.
func (r *MongoRefundRepo) ListByStatus(ctx context.Context, status string, limit int64) ([]models.RefundRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund requests: %w", err)
	}
	defer cur.Close(ctx)

	var reqs []models.RefundRequest
	if err := cur.All(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("failed to decode refund requests: %w", err)
	}
	return reqs, nil
}

// ListByPayment returns all refund requests against a payment.
func (r *MongoRefundRepo) ListByPayment(ctx context.Context, paymentID string) ([]models.RefundRequest, error) {
	cur, err := r.coll.Find(ctx, bson.M{"payment_id": paymentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list refund requests for payment %s: %w", paymentID, err)
	}
	defer cur.Close(ctx)

	var reqs []models.RefundRequest
	if err := cur.All(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("failed to decode refund requests: %w", err)
	}
	return reqs, nil
}

// Update replaces the stored document, guarded on the expected status.
func (r *MongoRefundRepo) Update(ctx context.Context, req *models.RefundRequest, expectedStatus string) error {
	filter := bson.M{"id": req.ID, "status": expectedStatus}
	res, err := r.coll.ReplaceOne(ctx, filter, req)
	if err != nil {
		return fmt.Errorf("failed to update refund request %s: %w", req.ID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, req.ID); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}
