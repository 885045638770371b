package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotify/services/refund"
)

// RefundHandler serves refund submission and admin review endpoints.
type RefundHandler struct {
	Coordinator refund.Coordinator
	Logger      *zap.Logger
}

// NewRefundHandler constructs a RefundHandler.
func NewRefundHandler(coordinator refund.Coordinator, logger *zap.Logger) *RefundHandler {
	return &RefundHandler{Coordinator: coordinator, Logger: logger}
}

// OpenRefund submits a refund request against a captured payment.
func (h *RefundHandler) OpenRefund(c *gin.Context) {
	var input struct {
		PaymentID   string `json:"paymentId" binding:"required"`
		RequestedBy string `json:"requestedBy" binding:"required"`
		Amount      int64  `json:"amount"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	req, err := h.Coordinator.Open(c.Request.Context(), input.PaymentID, input.RequestedBy, input.Amount, input.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ApproveRefund approves a pending request and triggers the gateway reversal.
func (h *RefundHandler) ApproveRefund(c *gin.Context) {
	var input struct {
		Admin string `json:"admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	req, err := h.Coordinator.Approve(c.Request.Context(), c.Param("requestID"), input.Admin)
	if err != nil {
		// A failed gateway call still moved the request to failed; return it
		// alongside the error so the admin can retry.
		if req != nil {
			h.Logger.Warn("refund approval failed at gateway",
				zap.String("refundRequestID", req.ID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{
				"error":         "payment gateway unavailable, refund marked failed",
				"refundRequest": req,
			})
			return
		}
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// RejectRefund declines a pending request. A reason is mandatory.
func (h *RefundHandler) RejectRefund(c *gin.Context) {
	var input struct {
		Admin  string `json:"admin" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	req, err := h.Coordinator.Reject(c.Request.Context(), c.Param("requestID"), input.Admin, input.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// RetryRefund re-runs the gateway reversal for a failed request.
func (h *RefundHandler) RetryRefund(c *gin.Context) {
	var input struct {
		Admin string `json:"admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	req, err := h.Coordinator.Retry(c.Request.Context(), c.Param("requestID"), input.Admin)
	if err != nil {
		if req != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":         "payment gateway unavailable, refund remains failed",
				"refundRequest": req,
			})
			return
		}
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetRefund returns a refund request by id.
func (h *RefundHandler) GetRefund(c *gin.Context) {
	req, err := h.Coordinator.Get(c.Request.Context(), c.Param("requestID"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ListRefunds lists refund requests in a status, oldest first.
func (h *RefundHandler) ListRefunds(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter is required"})
		return
	}

	requests, err := h.Coordinator.ListByStatus(c.Request.Context(), status, 100)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundRequests": requests})
}
