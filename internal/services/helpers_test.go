package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	db, err := gorm.Open(dsn, &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.APIKey{},
		&models.DunningCampaign{},
		&models.DunningExecution{},
		&models.DunningActionLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testConfig compresses a "day" to 1ms so multi-day campaigns run in-test
func testConfig() *config.EngineConfig {
	return &config.EngineConfig{
		PollInterval:   50 * time.Millisecond,
		BatchLimit:     100,
		WorkerCount:    4,
		LeaseTimeout:   time.Minute,
		HandlerTimeout: time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		DayDuration:    time.Millisecond,
	}
}

func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: "tenant-" + t.Name(), IsActive: true}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func seedCampaign(t *testing.T, db *gorm.DB, tenantID string, actions ...models.CampaignAction) *models.DunningCampaign {
	t.Helper()
	if len(actions) == 0 {
		actions = []models.CampaignAction{
			{Kind: models.ActionNotifyEmail, DelayDays: 0},
			{Kind: models.ActionSuspendService, DelayDays: 1},
			{Kind: models.ActionTerminateService, DelayDays: 2},
		}
	}
	campaign := &models.DunningCampaign{
		TenantID:          tenantID,
		Name:              "campaign-" + t.Name(),
		Actions:           actions,
		MaxRetries:        3,
		RetryIntervalDays: 1,
		IsActive:          true,
	}
	if err := db.Create(campaign).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return campaign
}

func startTestExecution(t *testing.T, svc *ExecutionService, tenantID, campaignID, subscriptionID string, amount int64) *models.ExecutionResponse {
	t.Helper()
	resp, err := svc.StartExecution(tenantID, &models.StartExecutionRequest{
		CampaignID:        campaignID,
		SubscriptionID:    subscriptionID,
		CustomerID:        "cus_1",
		OutstandingAmount: amount,
	})
	if err != nil {
		t.Fatalf("start execution: %v", err)
	}
	return resp
}

func loadExecution(t *testing.T, db *gorm.DB, id string) *models.DunningExecution {
	t.Helper()
	var execution models.DunningExecution
	if err := db.First(&execution, "id = ?", id).Error; err != nil {
		t.Fatalf("load execution: %v", err)
	}
	return &execution
}

func loadCampaign(t *testing.T, db *gorm.DB, id string) *models.DunningCampaign {
	t.Helper()
	var campaign models.DunningCampaign
	if err := db.First(&campaign, "id = ?", id).Error; err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	return &campaign
}
