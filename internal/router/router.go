package router

import (
	"time"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/handlers"
	"github.com/recouphq/collections-service-backend/internal/middleware"
	"github.com/recouphq/collections-service-backend/internal/services"
	"github.com/recouphq/collections-service-backend/internal/services/excel"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin router with the dunning management API
func SetupRouter(
	db *gorm.DB,
	publisher *services.DunningEventPublisher,
	scheduler *services.SchedulerService,
	excelService *excel.Service,
	cfg *config.EngineConfig,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create a new router
	r := gin.New()

	// Use middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create services
	tenantService := services.NewTenantService(db)

	// Create middleware with services
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(tenantService)

	// Create handlers with services
	campaignHandler := handlers.NewCampaignHandler(db)
	executionHandler := handlers.NewExecutionHandler(db, publisher, cfg)
	statsHandler := handlers.NewStatsHandler(db, excelService, scheduler)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// Protected routes
		protected := api.Group("")
		protected.Use(apiKeyMiddleware.APIKeyAuthMiddleware())
		{
			// Campaign routes
			campaigns := protected.Group("/campaigns")
			{
				campaigns.POST("", campaignHandler.CreateCampaign)
				campaigns.GET("", campaignHandler.GetCampaigns)
				campaigns.GET("/:id", campaignHandler.GetCampaignByID)
				campaigns.PUT("/:id", campaignHandler.UpdateCampaign)
				campaigns.DELETE("/:id", campaignHandler.DeleteCampaign)
				campaigns.GET("/:id/stats", campaignHandler.GetCampaignStats)
			}

			// Execution routes
			executions := protected.Group("/executions")
			{
				executions.POST("", executionHandler.StartExecution)
				executions.GET("", executionHandler.GetExecutions)
				executions.GET("/:id", executionHandler.GetExecutionByID)
				executions.POST("/:id/cancel", executionHandler.CancelExecution)
				executions.POST("/:id/payments", executionHandler.RecordPayment)
				executions.GET("/:id/actions", executionHandler.GetActionLogs)
			}

			// Stats and worker routes
			protected.GET("/stats", statsHandler.GetTenantStats)
			protected.GET("/stats/export", statsHandler.ExportStats)
			protected.GET("/pending-actions", statsHandler.GetPendingActions)
		}
	}

	return r
}
