package database

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// DB is the global database instance
var DB *gorm.DB

// InitDB initializes the database connection and performs migrations
func InitDB() (*gorm.DB, error) {
	// Get database connection parameters from environment variables
	host := getEnv("DB_HOST", "")
	port := getEnv("DB_PORT", "")
	user := getEnv("DB_USER", "")
	password := getEnv("DB_PASSWORD", "")
	dbname := getEnv("DB_NAME", "")
	sslmode := getEnv("DB_SSLMODE", "disable")

	// Validate required environment variables
	if host == "" || port == "" || user == "" || password == "" || dbname == "" {
		return nil, fmt.Errorf("missing required database environment variables. Please check your .env file")
	}

	// Create DSN string
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	// Configure GORM logger
	gormLogger := logger.New(
		logrus.New(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// Open database connection
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate the schema
	err = db.AutoMigrate(
		&models.Tenant{},
		&models.APIKey{},
		&models.DunningCampaign{},
		&models.DunningExecution{},
		&models.DunningActionLog{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Migration: partial unique index backing the one-active-execution
	// invariant. GORM cannot express partial indexes in tags, so it is
	// created directly when missing.
	var activeIndexExists bool
	err = db.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'dunning_executions'
			AND indexname = 'idx_executions_one_active_per_subscription'
		)
	`).Scan(&activeIndexExists).Error
	if err != nil {
		logrus.Warnf("Failed to check if active-execution unique index exists: %v", err)
	} else if !activeIndexExists {
		logrus.Info("Creating unique index on active executions per (tenant_id, subscription_id)...")
		err = db.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_one_active_per_subscription
			ON dunning_executions(tenant_id, subscription_id)
			WHERE status IN ('PENDING', 'IN_PROGRESS')
		`).Error
		if err != nil {
			logrus.Warnf("Failed to create active-execution unique index: %v", err)
		} else {
			logrus.Info("Successfully created active-execution unique index")
		}
	}

	// Migration: partial index covering the poller's due-query so it never
	// scans terminal rows
	var dueIndexExists bool
	err = db.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'dunning_executions'
			AND indexname = 'idx_executions_due'
		)
	`).Scan(&dueIndexExists).Error
	if err != nil {
		logrus.Warnf("Failed to check if due-query index exists: %v", err)
	} else if !dueIndexExists {
		logrus.Info("Creating due-query index on dunning_executions(next_action_at)...")
		err = db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_executions_due
			ON dunning_executions(next_action_at)
			WHERE status IN ('PENDING', 'IN_PROGRESS')
		`).Error
		if err != nil {
			logrus.Warnf("Failed to create due-query index: %v", err)
		} else {
			logrus.Info("Successfully created due-query index")
		}
	}

	// Set global DB instance
	DB = db

	logrus.Info("Database connection established and migrations completed")
	return db, nil
}

// GetDB returns the global database instance
func GetDB() *gorm.DB {
	return DB
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
