package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"

	"github.com/gin-gonic/gin"
)

// GetAvailability handles GET /api/availability. Responses are cached in
// Valkey as raw JSON keyed by the query parameters; the TTL matches the
// cache_expires_at stamped into the body so the two never disagree.
func (h *Handlers) GetAvailability(c *gin.Context) {
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "VALIDATION_ERROR",
			Message: "Missing required parameters: start_date and end_date",
		})
		return
	}

	participants := 1
	if raw := c.Query("participants"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "VALIDATION_ERROR",
				Message: "participants must be a positive integer",
			})
			return
		}
		participants = parsed
	}

	ctx := c.Request.Context()

	if h.valkeyClient != nil {
		if cached, err := h.valkeyClient.GetAvailabilityRaw(ctx, startDate, endDate, participants); err == nil {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}
	}

	resp, err := h.services.Availability.GetAvailability(ctx, startDate, endDate, participants)
	if err != nil {
		// Bad dates stay 400; a store failure must not masquerade as one.
		respondError(c, err)
		return
	}

	if h.valkeyClient != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := h.valkeyClient.SetAvailability(ctx, startDate, endDate, participants, raw, h.services.Availability.CacheTTL()); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache availability response", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
