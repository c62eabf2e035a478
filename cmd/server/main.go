package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recouphq/collections-service-backend/docs"
	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/database"
	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/router"
	"github.com/recouphq/collections-service-backend/internal/services"
	"github.com/recouphq/collections-service-backend/internal/services/actions"
	"github.com/recouphq/collections-service-backend/internal/services/excel"
	"github.com/recouphq/collections-service-backend/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// @title Collections Dunning API
// @version 1.0
// @description Multi-tenant dunning workflow engine for recovering overdue subscription payments

// @contact.name API Support
// @contact.email support@recouphq.io

// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Enter `ApiKey ` followed by your tenant API key (e.g. "ApiKey dk_...")

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Set Swagger base path dynamically
	basePath := getEnv("BASE_PATH", "/")
	docs.SwaggerInfo.BasePath = basePath

	// Configure logging
	configureLogging()

	// Initialize Sentry
	utils.InitSentry()

	// Initialize database connection
	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Load engine configuration
	cfg := config.Load()

	// Initialize RabbitMQ service. The engine runs without a broker; events
	// are simply not published and payment recovery falls back to the API.
	var rabbitMQService *services.RabbitMQService
	if svc, err := services.NewRabbitMQService(); err != nil {
		logrus.Warnf("Failed to initialize RabbitMQ: %v", err)
	} else {
		rabbitMQService = svc
		defer rabbitMQService.Close()
	}
	publisher := services.NewDunningEventPublisher(rabbitMQService)

	// Wire action handlers. External collaborators are HTTP-backed when their
	// base URLs are configured and log-only otherwise.
	registry := buildActionRegistry(cfg)

	// Initialize execution service and the payment event consumer
	executionService := services.NewExecutionService(db, publisher, cfg)
	paymentConsumer := services.NewPaymentEventConsumer(rabbitMQService, executionService)
	if rabbitMQService != nil {
		if err := paymentConsumer.Start(); err != nil {
			logrus.Warnf("Failed to start payment event consumer: %v", err)
		} else {
			defer paymentConsumer.Stop()
		}
	}

	// Create bootstrap tenant if configured and none exists
	tenantService := services.NewTenantService(db)
	tenantService.EnsureBootstrapTenant()

	// Start the scheduler
	executor := services.NewExecutorService(db, registry, publisher, cfg)
	scheduler := services.NewSchedulerService(db, executor, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize Excel export service
	exportsDir := getEnv("EXPORTS_DIR", "./exports")
	excelService := excel.NewExcelService(
		repository.NewCampaignRepository(db),
		repository.NewExecutionRepository(db),
		exportsDir,
	)

	// Initialize router
	r := router.SetupRouter(db, publisher, scheduler, excelService, cfg)

	// Configure HTTP server
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

// buildActionRegistry wires one handler per supported action kind
func buildActionRegistry(cfg *config.EngineConfig) *actions.Registry {
	var sender actions.NotificationSender
	if commsURL := os.Getenv("COMMS_API_URL"); commsURL != "" {
		sender = actions.NewHTTPNotificationSender(commsURL, cfg.HandlerTimeout)
	} else {
		logrus.Warn("COMMS_API_URL not set, notifications are log-only")
		sender = &actions.LogNotificationSender{}
	}

	var lifecycle actions.SubscriptionLifecycle
	if lifecycleURL := os.Getenv("LIFECYCLE_API_URL"); lifecycleURL != "" {
		lifecycle = actions.NewHTTPSubscriptionLifecycle(lifecycleURL, cfg.HandlerTimeout)
	} else {
		logrus.Warn("LIFECYCLE_API_URL not set, lifecycle actions are log-only")
		lifecycle = &actions.LogSubscriptionLifecycle{}
	}

	registry := actions.NewRegistry()
	registry.Register(actions.NewEmailHandler(sender))
	registry.Register(actions.NewSMSHandler(sender))
	registry.Register(actions.NewSuspendHandler(lifecycle))
	registry.Register(actions.NewTerminateHandler(lifecycle))
	registry.Register(actions.NewWebhookHandler(cfg.HandlerTimeout))
	registry.Register(actions.NewCustomHandler())
	return registry
}

func configureLogging() {
	logLevel := getEnv("LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
