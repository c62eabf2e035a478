package services

import (
	"testing"
	"time"

	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"
)

func TestDue_ReturnsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	campaign := seedCampaign(t, db, tenant.ID)
	repo := repository.NewExecutionRepository(db)

	now := time.Now()
	times := []time.Time{
		now.Add(-time.Minute),
		now.Add(-time.Hour),
		now.Add(time.Hour), // not yet due
	}
	var ids []string
	for i, at := range times {
		at := at
		execution := &models.DunningExecution{
			CampaignID:        campaign.ID,
			TenantID:          tenant.ID,
			SubscriptionID:    "sub_" + string(rune('a'+i)),
			CustomerID:        "cus_1",
			Status:            models.ExecutionPending,
			TotalSteps:        1,
			ActionPlan:        models.ActionList{{Kind: models.ActionNotifyEmail}},
			NextActionAt:      &at,
			OutstandingAmount: 1000,
			StartedAt:         now,
		}
		if err := repo.Create(execution); err != nil {
			t.Fatalf("create execution: %v", err)
		}
		ids = append(ids, execution.ID)
	}

	due, err := repo.Due(now, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due executions, got %d", len(due))
	}
	// Longest-waiting first
	if due[0].ID != ids[1] || due[1].ID != ids[0] {
		t.Fatalf("due ordering wrong: %s, %s", due[0].ID, due[1].ID)
	}
}

func TestClaim_OnlyOneWorkerWins(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	campaign := seedCampaign(t, db, tenant.ID)
	executionSvc := NewExecutionService(db, NewDunningEventPublisher(nil), testConfig())
	resp := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)
	repo := repository.NewExecutionRepository(db)

	claimed, err := repo.Claim(resp.ID, "worker-a", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("first claim should win: claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.Claim(resp.ID, "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("second worker must not steal a live lease")
	}

	// The holder can release, after which the lease is free again
	if err := repo.Release(resp.ID, "worker-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	claimed, err = repo.Claim(resp.ID, "worker-b", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("claim after release should win: claimed=%v err=%v", claimed, err)
	}
}

func TestClaim_ExpiredLeaseIsStolen(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	campaign := seedCampaign(t, db, tenant.ID)
	executionSvc := NewExecutionService(db, NewDunningEventPublisher(nil), testConfig())
	resp := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)
	repo := repository.NewExecutionRepository(db)

	if _, err := repo.Claim(resp.ID, "worker-a", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Age the lease past the timeout
	stale := time.Now().Add(-time.Hour)
	if err := db.Model(&models.DunningExecution{}).
		Where("id = ?", resp.ID).Update("locked_at", stale).Error; err != nil {
		t.Fatalf("age lease: %v", err)
	}

	claimed, err := repo.Claim(resp.ID, "worker-b", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("stale lease must be stealable: claimed=%v err=%v", claimed, err)
	}

	// The original holder can no longer release what it lost
	if err := repo.Release(resp.ID, "worker-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	execution := loadExecution(t, db, resp.ID)
	if execution.LockedBy != "worker-b" {
		t.Fatalf("lease must stay with the thief, locked_by=%s", execution.LockedBy)
	}
}

func TestPollOnce_AdvancesDueExecutions(t *testing.T) {
	handler := &fakeHandler{kind: models.ActionNotifyEmail}
	executor, executionSvc, db, tenant := newExecutorFixture(t, handler)
	campaign := seedCampaign(t, db, tenant.ID,
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 0},
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 1})
	first := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)
	second := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_2", 3000)

	scheduler := NewSchedulerService(db, executor, testConfig())
	// DelayDays 0 makes both due immediately
	scheduler.PollOnce()

	if handler.calls != 2 {
		t.Fatalf("expected both executions dispatched, calls=%d", handler.calls)
	}
	for _, id := range []string{first.ID, second.ID} {
		execution := loadExecution(t, db, id)
		if execution.CurrentStep != 1 {
			t.Fatalf("execution %s not advanced, step=%d", id, execution.CurrentStep)
		}
		if execution.LockedBy != "" {
			t.Fatalf("lease must be released after advance, locked_by=%s", execution.LockedBy)
		}
	}
}

func TestPendingActions_CapsLimit(t *testing.T) {
	handler := &fakeHandler{kind: models.ActionNotifyEmail}
	executor, executionSvc, db, tenant := newExecutorFixture(t, handler)
	campaign := seedCampaign(t, db, tenant.ID,
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 0})
	for _, sub := range []string{"sub_1", "sub_2", "sub_3"} {
		startTestExecution(t, executionSvc, tenant.ID, campaign.ID, sub, 1000)
	}

	scheduler := NewSchedulerService(db, executor, testConfig())
	due, err := scheduler.PendingActions(tenant.ID, 2)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected limit 2 honored, got %d", len(due))
	}

	due, err = scheduler.PendingActions(tenant.ID, 0)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("zero limit falls back to batch limit, got %d", len(due))
	}
}

func TestPendingActions_ScopedToTenant(t *testing.T) {
	handler := &fakeHandler{kind: models.ActionNotifyEmail}
	executor, executionSvc, db, tenant := newExecutorFixture(t, handler)
	campaign := seedCampaign(t, db, tenant.ID,
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 0})
	mine := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)

	other := &models.Tenant{Name: "other-" + t.Name(), IsActive: true}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	otherCampaign := seedCampaign(t, db, other.ID,
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 0})
	startTestExecution(t, executionSvc, other.ID, otherCampaign.ID, "sub_1", 9000)

	scheduler := NewSchedulerService(db, executor, testConfig())
	due, err := scheduler.PendingActions(tenant.ID, 10)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected only the caller's executions, got %d", len(due))
	}
	if due[0].ID != mine.ID || due[0].TenantID != tenant.ID {
		t.Fatalf("wrong tenant's execution surfaced: %s (tenant %s)", due[0].ID, due[0].TenantID)
	}
}
