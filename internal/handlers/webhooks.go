package handlers

import (
	"errors"
	"io"
	"net/http"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"

	"github.com/gin-gonic/gin"
)

// PaymentWebhook handles POST /api/webhooks/payment. The raw body is read
// before any parsing because the signature covers the exact bytes the
// provider sent.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}

	signature := c.GetHeader("Signature")

	ack, err := h.services.Webhooks.HandleEvent(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   apperrors.CodeValidation,
				Message: err.Error(),
			})
			return
		}

		// A non-2xx tells the provider to retry the delivery later.
		logger.WithContext(c.Request.Context()).Error("Webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	c.JSON(http.StatusOK, ack)
}
