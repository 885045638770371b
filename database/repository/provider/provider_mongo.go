package providerRepo

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

// ErrNotFound is returned when a provider or service does not exist.
var ErrNotFound = errors.New("not found")

// MongoProviderRepo implements ProviderRepository using MongoDB.
type MongoProviderRepo struct {
	providerColl *mongo.Collection
	serviceColl  *mongo.Collection
}

// NewMongoProviderRepo constructs a new instance of MongoProviderRepo.
func NewMongoProviderRepo() *MongoProviderRepo {
	db := database.MongoClient.Database(database.DatabaseName)
	return &MongoProviderRepo{
		providerColl: db.Collection("providers"),
		serviceColl:  db.Collection("services"),
	}
}

// EnsureIndexes creates the necessary indexes on the provider collections.
func (r *MongoProviderRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := r.providerColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_provider_id"),
	}); err != nil {
		return fmt.Errorf("failed to create provider indexes: %w", err)
	}

	serviceModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_service_id"),
		},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("service_provider_active_idx"),
		},
	}
	if _, err := r.serviceColl.Indexes().CreateMany(ctx, serviceModels); err != nil {
		return fmt.Errorf("failed to create service indexes: %w", err)
	}
	return nil
}

// CreateProvider inserts a new provider document.
func (r *MongoProviderRepo) CreateProvider(ctx context.Context, p *models.Provider) error {
	if _, err := r.providerColl.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

// GetProviderByID retrieves a provider document by ID.
func (r *MongoProviderRepo) GetProviderByID(ctx context.Context, providerID string) (*models.Provider, error) {
	var provider models.Provider
	err := r.providerColl.FindOne(ctx, bson.M{"id": providerID}).Decode(&provider)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider %s: %w", providerID, err)
	}
	return &provider, nil
}

// UpdateSchedule replaces a provider's recurring weekly schedule.
func (r *MongoProviderRepo) UpdateSchedule(ctx context.Context, providerID string, schedule []models.DayRule) error {
	update := bson.M{"$set": bson.M{
		"recurring_schedule": schedule,
		"updated_at":         time.Now().UTC(),
	}}
	res, err := r.providerColl.UpdateOne(ctx, bson.M{"id": providerID}, update)
	if err != nil {
		return fmt.Errorf("failed to update schedule for provider %s: %w", providerID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateService inserts a new service document.
func (r *MongoProviderRepo) CreateService(ctx context.Context, s *models.Service) error {
	if _, err := r.serviceColl.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

// GetServiceByID retrieves a service document by ID.
func (r *MongoProviderRepo) GetServiceByID(ctx context.Context, serviceID string) (*models.Service, error) {
	var svc models.Service
	err := r.serviceColl.FindOne(ctx, bson.M{"id": serviceID}).Decode(&svc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service %s: %w", serviceID, err)
	}
	return &svc, nil
}

// ListServicesByProvider returns all active services of a provider.
func (r *MongoProviderRepo) ListServicesByProvider(ctx context.Context, providerID string) ([]models.Service, error) {
	cur, err := r.serviceColl.Find(ctx, bson.M{"provider_id": providerID, "active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list services for provider %s: %w", providerID, err)
	}
	defer cur.Close(ctx)

	var services []models.Service
	if err := cur.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	return services, nil
}
