package services

import (
	"errors"
	"testing"

	"github.com/recouphq/collections-service-backend/internal/models"
)

func newExecutionService(t *testing.T) (*ExecutionService, *models.Tenant, *models.DunningCampaign) {
	t.Helper()
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	campaign := seedCampaign(t, db, tenant.ID)
	return NewExecutionService(db, NewDunningEventPublisher(nil), testConfig()), tenant, campaign
}

func TestStartExecution_SnapshotsActionPlan(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)

	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)
	if resp.Status != models.ExecutionPending {
		t.Fatalf("expected PENDING, got %s", resp.Status)
	}
	if resp.TotalSteps != 3 {
		t.Fatalf("expected 3 steps, got %d", resp.TotalSteps)
	}
	if resp.NextActionAt == nil {
		t.Fatal("expected next_action_at to be set")
	}

	// Editing the campaign must not change the plan under the execution
	if err := svc.db.Model(&models.DunningCampaign{}).
		Where("id = ?", campaign.ID).
		Update("actions", models.ActionList{{Kind: models.ActionCustom, DelayDays: 9}}).Error; err != nil {
		t.Fatalf("update campaign: %v", err)
	}
	execution := loadExecution(t, svc.db, resp.ID)
	if len(execution.ActionPlan) != 3 || execution.ActionPlan[0].Kind != models.ActionNotifyEmail {
		t.Fatalf("action plan changed under execution: %+v", execution.ActionPlan)
	}
}

func TestStartExecution_OneActivePerSubscription(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)

	startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)
	_, err := svc.StartExecution(tenant.ID, &models.StartExecutionRequest{
		CampaignID:        campaign.ID,
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		OutstandingAmount: 1000,
	})
	if !errors.Is(err, ErrActiveExecutionExists) {
		t.Fatalf("expected ErrActiveExecutionExists, got %v", err)
	}

	// A different subscription is unaffected
	startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_2", 5000)
}

func TestStartExecution_RejectsInactiveCampaignAndBadAmount(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)

	_, err := svc.StartExecution(tenant.ID, &models.StartExecutionRequest{
		CampaignID:        campaign.ID,
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		OutstandingAmount: 0,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if err := svc.db.Model(&models.DunningCampaign{}).
		Where("id = ?", campaign.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate campaign: %v", err)
	}
	_, err = svc.StartExecution(tenant.ID, &models.StartExecutionRequest{
		CampaignID:        campaign.ID,
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		OutstandingAmount: 5000,
	})
	if !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected ErrCampaignInactive, got %v", err)
	}
}

func TestRecordPayment_PartialKeepsRunning(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	updated, err := svc.RecordPayment(tenant.ID, resp.ID, 2000)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if updated.RecoveredAmount != 2000 {
		t.Fatalf("expected recovered 2000, got %d", updated.RecoveredAmount)
	}
	if updated.Status.IsTerminal() {
		t.Fatalf("partial payment must not complete the execution, got %s", updated.Status)
	}
	if updated.NextActionAt == nil {
		t.Fatal("partial payment must keep the next action scheduled")
	}
}

func TestRecordPayment_FullAmountCompletesEarly(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	updated, err := svc.RecordPayment(tenant.ID, resp.ID, 5000)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if updated.Status != models.ExecutionCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.Status)
	}
	if updated.NextActionAt != nil {
		t.Fatal("completed execution must have no next action")
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed execution must have completed_at")
	}

	reloaded := loadCampaign(t, svc.db, campaign.ID)
	if reloaded.TotalExecutions != 1 || reloaded.SuccessfulExecutions != 1 {
		t.Fatalf("expected counters 1/1, got %d/%d", reloaded.TotalExecutions, reloaded.SuccessfulExecutions)
	}
	if reloaded.TotalRecoveredAmount != 5000 {
		t.Fatalf("expected recovered counter 5000, got %d", reloaded.TotalRecoveredAmount)
	}
}

func TestRecordPayment_ClampsOverpayment(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	updated, err := svc.RecordPayment(tenant.ID, resp.ID, 99999)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if updated.RecoveredAmount != 5000 {
		t.Fatalf("overpayment must clamp to outstanding, got %d", updated.RecoveredAmount)
	}
	if updated.Status != models.ExecutionCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.Status)
	}
}

func TestRecordPayment_LogDeltasSumToRecovered(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	for _, amount := range []int64{1000, 1500, 9000} {
		if _, err := svc.RecordPayment(tenant.ID, resp.ID, amount); err != nil {
			t.Fatalf("record payment %d: %v", amount, err)
		}
	}

	execution := loadExecution(t, svc.db, resp.ID)
	sum, ok := VerifyLogConsistency(execution)
	if !ok {
		t.Fatalf("log deltas sum %d != recovered %d", sum, execution.RecoveredAmount)
	}
	if execution.RecoveredAmount != 5000 {
		t.Fatalf("expected recovered 5000, got %d", execution.RecoveredAmount)
	}
}

func TestRecordPayment_RejectedOnTerminal(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	if _, err := svc.Cancel(tenant.ID, resp.ID, "customer churned", "ops"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := svc.RecordPayment(tenant.ID, resp.ID, 1000)
	if !errors.Is(err, ErrExecutionTerminal) {
		t.Fatalf("expected ErrExecutionTerminal, got %v", err)
	}
}

func TestCancel_IsIdempotentAndAudited(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	canceled, err := svc.Cancel(tenant.ID, resp.ID, "wrote off", "ops@acme")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != models.ExecutionCanceled {
		t.Fatalf("expected CANCELED, got %s", canceled.Status)
	}
	if canceled.CanceledReason != "wrote off" || canceled.CanceledBy != "ops@acme" {
		t.Fatalf("cancel audit fields not set: %+v", canceled)
	}

	before := loadExecution(t, svc.db, resp.ID)
	for i := 0; i < 2; i++ {
		if _, err := svc.Cancel(tenant.ID, resp.ID, "again", "ops@acme"); !errors.Is(err, ErrExecutionTerminal) {
			t.Fatalf("repeat cancel: expected ErrExecutionTerminal, got %v", err)
		}
	}
	after := loadExecution(t, svc.db, resp.ID)
	if len(after.ExecutionLog) != len(before.ExecutionLog) {
		t.Fatal("repeated cancel must not mutate the execution log")
	}
	if after.CanceledReason != before.CanceledReason {
		t.Fatal("repeated cancel must not overwrite the original reason")
	}

	reloaded := loadCampaign(t, svc.db, campaign.ID)
	if reloaded.TotalExecutions != 1 || reloaded.SuccessfulExecutions != 0 {
		t.Fatalf("cancel counters wrong: %d/%d", reloaded.TotalExecutions, reloaded.SuccessfulExecutions)
	}
}

func TestGetByID_CrossTenantLooksLikeMissing(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	other := &models.Tenant{Name: "other-" + t.Name(), IsActive: true}
	if err := svc.db.Create(other).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	resp := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)

	_, err := svc.GetByID(other.ID, resp.ID)
	if !errors.Is(err, ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound for cross-tenant read, got %v", err)
	}
}

func TestList_FiltersByStatus(t *testing.T) {
	svc, tenant, campaign := newExecutionService(t)
	first := startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_1", 5000)
	startTestExecution(t, svc, tenant.ID, campaign.ID, "sub_2", 3000)
	if _, err := svc.Cancel(tenant.ID, first.ID, "done", "ops"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	canceled, total, err := svc.List(tenant.ID, models.ExecutionCanceled, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(canceled) != 1 || canceled[0].ID != first.ID {
		t.Fatalf("status filter broken: total=%d len=%d", total, len(canceled))
	}

	all, total, err := svc.List(tenant.ID, "", 0, 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected 2 executions, got total=%d len=%d", total, len(all))
	}
}
