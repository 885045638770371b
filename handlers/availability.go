package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"slotify/models"
	"slotify/services/availability"
)

// AvailabilityHandler serves free-slot queries.
type AvailabilityHandler struct {
	Resolver availability.Resolver
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(resolver availability.Resolver) *AvailabilityHandler {
	return &AvailabilityHandler{Resolver: resolver}
}

// GetAvailability returns the free intervals of a provider's service over a
// date range. The response is advisory; the slot is only protected once an
// order is issued.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	providerID := c.Param("providerID")
	serviceID := c.Query("serviceId")
	fromDate := c.Query("from")
	toDate := c.Query("to")
	if serviceID == "" || fromDate == "" || toDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceId, from and to are required"})
		return
	}

	slots, err := h.Resolver.Resolve(c.Request.Context(), providerID, serviceID, fromDate, toDate)
	if err != nil {
		respondError(c, getLogger(), err)
		return
	}
	if slots == nil {
		slots = []models.Interval{}
	}
	c.JSON(http.StatusOK, gin.H{"providerId": providerID, "serviceId": serviceID, "slots": slots})
}
