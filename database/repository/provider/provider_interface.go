package providerRepo

import (
	"context"

	"slotify/models"
)

// ProviderRepository exposes read/write access to providers and their
// service catalogue.
type ProviderRepository interface {
	CreateProvider(ctx context.Context, p *models.Provider) error
	GetProviderByID(ctx context.Context, providerID string) (*models.Provider, error)
	UpdateSchedule(ctx context.Context, providerID string, schedule []models.DayRule) error

	CreateService(ctx context.Context, s *models.Service) error
	GetServiceByID(ctx context.Context, serviceID string) (*models.Service, error)
	ListServicesByProvider(ctx context.Context, providerID string) ([]models.Service, error)
}
