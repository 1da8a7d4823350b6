package handlers

import (
	"net/http"

	"bunkhouse/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateRefund handles POST /api/refunds (admin only)
func (h *Handlers) CreateRefund(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.services.Refunds.Refund(c.Request.Context(), &req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
