package services

import (
	"context"
	"testing"

	"github.com/recouphq/collections-service-backend/internal/models"
)

func TestStats_SummarizesCampaign(t *testing.T) {
	handler := &fakeHandler{kind: models.ActionNotifyEmail}
	executor, executionSvc, db, tenant := newExecutorFixture(t, handler)
	campaign := seedCampaign(t, db, tenant.ID,
		models.CampaignAction{Kind: models.ActionNotifyEmail, DelayDays: 0})
	statsSvc := NewStatsService(db)

	// One fully recovered, one exhausted without payment, one canceled, one
	// still pending
	recovered := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 4000)
	if _, err := executionSvc.RecordPayment(tenant.ID, recovered.ID, 4000); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	exhausted := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_2", 6000)
	if _, err := executor.Advance(context.Background(), exhausted.ID); err != nil {
		t.Fatalf("advance: %v", err)
	}

	canceled := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_3", 2000)
	if _, err := executionSvc.Cancel(tenant.ID, canceled.ID, "churned", "ops"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_4", 3000)

	stats, err := statsSvc.CampaignStats(tenant.ID, campaign.ID)
	if err != nil {
		t.Fatalf("campaign stats: %v", err)
	}
	s := stats.Summary
	if s.TotalExecutions != 4 {
		t.Fatalf("expected 4 executions, got %d", s.TotalExecutions)
	}
	if s.ByStatus[models.ExecutionCompleted] != 2 ||
		s.ByStatus[models.ExecutionCanceled] != 1 ||
		s.ByStatus[models.ExecutionPending] != 1 {
		t.Fatalf("status breakdown wrong: %+v", s.ByStatus)
	}
	if s.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", s.SuccessRate)
	}
	if s.TotalOutstandingAmount != 15000 || s.TotalRecoveredAmount != 4000 {
		t.Fatalf("amounts wrong: outstanding=%d recovered=%d", s.TotalOutstandingAmount, s.TotalRecoveredAmount)
	}
	if s.AverageRecoveredAmount != 2000 {
		t.Fatalf("expected avg recovered 2000 over completed runs, got %f", s.AverageRecoveredAmount)
	}
}

func TestStats_TenantSpansCampaigns(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	first := seedCampaign(t, db, tenant.ID)
	second := seedCampaign(t, db, tenant.ID)
	executionSvc := NewExecutionService(db, NewDunningEventPublisher(nil), testConfig())
	statsSvc := NewStatsService(db)

	startTestExecution(t, executionSvc, tenant.ID, first.ID, "sub_1", 1000)
	startTestExecution(t, executionSvc, tenant.ID, second.ID, "sub_2", 2000)

	stats, err := statsSvc.TenantStats(tenant.ID)
	if err != nil {
		t.Fatalf("tenant stats: %v", err)
	}
	if stats.Summary.TotalExecutions != 2 || stats.Summary.TotalOutstandingAmount != 3000 {
		t.Fatalf("tenant summary wrong: %+v", stats.Summary)
	}
}

func TestStats_UnknownCampaign(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	statsSvc := NewStatsService(db)

	_, err := statsSvc.CampaignStats(tenant.ID, "00000000-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("expected error for unknown campaign")
	}
}
