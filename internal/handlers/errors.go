package handlers

import (
	"errors"
	"net/http"

	"github.com/recouphq/collections-service-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service sentinel errors to HTTP statuses. Cross-
// tenant lookups surface as plain 404s so ids from other tenants are
// indistinguishable from unknown ids.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrExecutionNotFound),
		errors.Is(err, services.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCampaignNoActions),
		errors.Is(err, services.ErrUnknownActionKind),
		errors.Is(err, services.ErrNegativeDelay),
		errors.Is(err, services.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCampaignInactive),
		errors.Is(err, services.ErrActiveExecutionExists),
		errors.Is(err, services.ErrExecutionTerminal),
		errors.Is(err, services.ErrCampaignHasActiveExecutions):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
	}
}
