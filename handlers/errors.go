package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotify/services/booking"
	"slotify/services/gateway"
	"slotify/utils"
)

// respondError translates service errors into HTTP responses. Internal
// details never leak: inconsistent-state and unknown errors return a generic
// message and are logged for operators.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *booking.Error
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case booking.CodeValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		case booking.CodeInvalidSignature:
			c.JSON(http.StatusUnauthorized, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		case booking.CodeSlotConflict, booking.CodeInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		default:
			logger.Error("internal state error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": svcErr.Code})
		}
		return
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		logger.Warn("gateway call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable", "retryable": gwErr.Retryable})
		return
	}

	logger.Error("unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func getLogger() *zap.Logger {
	return utils.GetLogger()
}
