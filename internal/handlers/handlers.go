package handlers

import (
	"errors"
	"net/http"

	"bunkhouse/internal/cache"
	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/models"
	"bunkhouse/internal/service"

	"github.com/gin-gonic/gin"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	services     *service.Services
	valkeyClient *cache.ValkeyClient
}

// NewHandlers creates handlers. valkeyClient may be nil, in which case the
// availability endpoint serves uncached.
func NewHandlers(services *service.Services, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		services:     services,
		valkeyClient: valkeyClient,
	}
}

// respondError maps service errors to HTTP status codes and a stable
// machine-readable error body.
func respondError(c *gin.Context, err error) {
	var ve *apperrors.ValidationError
	var ce *apperrors.CapacityError
	var nr *apperrors.NotRefundableError
	var pe *apperrors.ProviderError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   apperrors.CodeValidation,
			Message: ve.Error(),
		})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   apperrors.CodeCapacityExceeded,
			Message: ce.Error(),
		})
	case errors.As(err, &nr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   apperrors.CodeNotRefundable,
			Message: nr.Error(),
		})
	case errors.As(err, &pe):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   apperrors.CodeProvider,
			Message: "payment provider request failed",
		})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   apperrors.CodeNotFound,
			Message: "resource not found",
		})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   apperrors.CodeConflict,
			Message: err.Error(),
		})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "INTERNAL_ERROR",
			Message: "internal server error",
		})
	}
}

// actorFrom returns the authenticated actor for audit attribution.
func actorFrom(c *gin.Context) string {
	if actor, exists := c.Get("actor"); exists {
		if s, ok := actor.(string); ok {
			return s
		}
	}
	return "anonymous"
}
