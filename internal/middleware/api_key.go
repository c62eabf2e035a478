package middleware

import (
	"net/http"
	"strings"

	"github.com/recouphq/collections-service-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware handles API key authentication
type APIKeyMiddleware struct {
	tenantService *services.TenantService
}

// NewAPIKeyMiddleware creates a new API key middleware
func NewAPIKeyMiddleware(tenantService *services.TenantService) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		tenantService: tenantService,
	}
}

// APIKeyAuthMiddleware validates the API key and sets the tenant context
func (m *APIKeyMiddleware) APIKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get API key from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization header is required",
			})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "ApiKey ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization header must use the ApiKey scheme",
			})
			c.Abort()
			return
		}

		// Extract the API key
		apiKey := strings.TrimPrefix(authHeader, "ApiKey ")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid API key format",
			})
			c.Abort()
			return
		}

		// Validate the API key
		tenant, err := m.tenantService.ValidateAPIKey(apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid API key",
			})
			c.Abort()
			return
		}

		// Set tenant information in context
		c.Set("tenant_id", tenant.ID)
		c.Set("tenant", tenant)

		c.Next()
	}
}
