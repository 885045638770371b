package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"slotify/handlers"
	"slotify/utils"
)

// HandlerBundle carries the constructed handlers into route registration.
type HandlerBundle struct {
	Provider     *handlers.ProviderHandler
	Availability *handlers.AvailabilityHandler
	Booking      *handlers.BookingHandler
	Refund       *handlers.RefundHandler
}

// RegisterProviderRoutes registers provider and catalogue management endpoints.
func RegisterProviderRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/providers")
	{
		api.POST("", hb.Provider.CreateProvider)
		api.GET("/:providerID", hb.Provider.GetProvider)
		api.PUT("/:providerID/schedule", hb.Provider.UpdateSchedule)
		api.POST("/:providerID/services", hb.Provider.CreateService)
		api.GET("/:providerID/services", hb.Provider.ListServices)
		api.GET("/:providerID/availability", hb.Availability.GetAvailability)
		api.GET("/:providerID/bookings", hb.Booking.ListProviderBookings)
	}
}

// RegisterBookingRoutes registers the order, callback, and lifecycle endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/bookings")
	{
		api.POST("/orders", hb.Booking.IssueOrder)
		api.POST("/payment-callback", hb.Booking.PaymentCallback)
		api.GET("/:bookingID", hb.Booking.GetBooking)
		api.POST("/:bookingID/complete", hb.Booking.CompleteBooking)
		api.POST("/:bookingID/cancel", hb.Booking.CancelBooking)
		api.POST("/:bookingID/reject", hb.Booking.RejectBooking)
	}
	r.GET("/api/customers/:customerID/bookings", hb.Booking.ListCustomerBookings)
}

// RegisterRefundRoutes registers refund submission and admin review endpoints.
func RegisterRefundRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/refunds")
	{
		api.POST("", hb.Refund.OpenRefund)
		api.GET("", hb.Refund.ListRefunds)
		api.GET("/:requestID", hb.Refund.GetRefund)
		api.POST("/:requestID/approve", hb.Refund.ApproveRefund)
		api.POST("/:requestID/reject", hb.Refund.RejectRefund)
		api.POST("/:requestID/retry", hb.Refund.RetryRefund)
	}
}

// RegisterHealthRoute registers the health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": utils.GetHealthStatus()})
	})
}

// RegisterRoutes wires all endpoints onto the router.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterProviderRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterRefundRoutes(r, hb)
	RegisterHealthRoute(r)
}
