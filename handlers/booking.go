package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotify/services/booking"
)

// BookingHandler serves order issue, payment callback, and booking lifecycle
// endpoints.
type BookingHandler struct {
	Issuer   booking.OrderIssuer
	Verifier booking.PaymentVerifier
	Ledger   booking.LedgerService
	Logger   *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(issuer booking.OrderIssuer, verifier booking.PaymentVerifier, ledger booking.LedgerService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Issuer: issuer, Verifier: verifier, Ledger: ledger, Logger: logger}
}

// IssueOrder reserves a slot and opens a payment order for it.
func (h *BookingHandler) IssueOrder(c *gin.Context) {
	var req booking.IssueOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	result, err := h.Issuer.IssueOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// PaymentCallback receives the gateway's payment confirmation and commits
// the booking. Duplicate deliveries return the same confirmed booking.
func (h *BookingHandler) PaymentCallback(c *gin.Context) {
	var payload booking.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	result, err := h.Verifier.VerifyAndCommit(c.Request.Context(), payload)
	if err != nil {
		// The slot-lost path still has a result: the caller learns a refund
		// is on its way.
		if result != nil && result.RefundPending {
			c.JSON(http.StatusConflict, gin.H{
				"error":         "slot is no longer available, refund pending",
				"paymentId":     result.PaymentID,
				"refundPending": true,
			})
			return
		}
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBooking returns a booking by id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.Ledger.GetBooking(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListCustomerBookings returns a customer's bookings, newest first.
func (h *BookingHandler) ListCustomerBookings(c *gin.Context) {
	bookings, err := h.Ledger.ListCustomerBookings(c.Request.Context(), c.Param("customerID"), 100)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// ListProviderBookings returns a provider's bookings inside a window.
func (h *BookingHandler) ListProviderBookings(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
		return
	}

	bookings, err := h.Ledger.ListProviderBookings(c.Request.Context(), c.Param("providerID"), from, to)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

type lifecycleInput struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// CompleteBooking marks a confirmed booking as delivered.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	var input lifecycleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	b, err := h.Ledger.Complete(c.Request.Context(), c.Param("bookingID"), input.Actor)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelBooking cancels a confirmed booking. When a captured payment exists
// the response carries the refund request that must settle first.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var input lifecycleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	b, refundReq, err := h.Ledger.Cancel(c.Request.Context(), c.Param("bookingID"), input.Actor, input.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if refundReq != nil {
		c.JSON(http.StatusAccepted, gin.H{"booking": b, "refundRequest": refundReq})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// RejectBooking declines a pending booking.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var input lifecycleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	b, err := h.Ledger.Reject(c.Request.Context(), c.Param("bookingID"), input.Actor, input.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
