package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	providerRepo "slotify/database/repository/provider"
	"slotify/models"
)

// ProviderHandler serves provider and service-catalogue management.
type ProviderHandler struct {
	Repo   providerRepo.ProviderRepository
	Logger *zap.Logger
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(repo providerRepo.ProviderRepository, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{Repo: repo, Logger: logger}
}

// CreateProvider registers a new provider.
func (h *ProviderHandler) CreateProvider(c *gin.Context) {
	var provider models.Provider
	if err := c.ShouldBindJSON(&provider); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if provider.Name == "" || provider.Currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and currency are required"})
		return
	}
	if err := validateSchedule(provider.RecurringSchedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	provider.ID = uuid.New().String()
	provider.Active = true
	provider.CreatedAt = now
	provider.UpdatedAt = now

	if err := h.Repo.CreateProvider(c.Request.Context(), &provider); err != nil {
		h.Logger.Error("failed to create provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create provider"})
		return
	}
	c.JSON(http.StatusCreated, provider)
}

// GetProvider returns a provider by id.
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	provider, err := h.Repo.GetProviderByID(c.Request.Context(), c.Param("providerID"))
	if err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		h.Logger.Error("failed to load provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load provider"})
		return
	}
	c.JSON(http.StatusOK, provider)
}

// UpdateSchedule replaces a provider's recurring weekly schedule.
func (h *ProviderHandler) UpdateSchedule(c *gin.Context) {
	var input struct {
		RecurringSchedule []models.DayRule `json:"recurring_schedule" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if err := validateSchedule(input.RecurringSchedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Repo.UpdateSchedule(c.Request.Context(), c.Param("providerID"), input.RecurringSchedule); err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		h.Logger.Error("failed to update schedule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update schedule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// CreateService adds a service to a provider's catalogue.
func (h *ProviderHandler) CreateService(c *gin.Context) {
	var svc models.Service
	if err := c.ShouldBindJSON(&svc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if svc.Name == "" || svc.Price <= 0 || svc.DurationMinutes <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, positive price and positive duration are required"})
		return
	}

	providerID := c.Param("providerID")
	if _, err := h.Repo.GetProviderByID(c.Request.Context(), providerID); err != nil {
		if errors.Is(err, providerRepo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		h.Logger.Error("failed to load provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load provider"})
		return
	}

	now := time.Now().UTC()
	svc.ID = uuid.New().String()
	svc.ProviderID = providerID
	svc.Active = true
	svc.CreatedAt = now
	svc.UpdatedAt = now

	if err := h.Repo.CreateService(c.Request.Context(), &svc); err != nil {
		h.Logger.Error("failed to create service", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create service"})
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// ListServices returns a provider's service catalogue.
func (h *ProviderHandler) ListServices(c *gin.Context) {
	services, err := h.Repo.ListServicesByProvider(c.Request.Context(), c.Param("providerID"))
	if err != nil {
		h.Logger.Error("failed to list services", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list services"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func validateSchedule(rules []models.DayRule) error {
	for _, rule := range rules {
		if rule.Day < time.Sunday || rule.Day > time.Saturday {
			return errors.New("schedule day out of range")
		}
		for _, w := range rule.Windows {
			if w.Start < 0 || w.End > 24*60 || w.End <= w.Start {
				return errors.New("schedule window must satisfy 0 <= start < end <= 1440")
			}
		}
	}
	return nil
}
