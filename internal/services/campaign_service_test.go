package services

import (
	"errors"
	"testing"

	"github.com/recouphq/collections-service-backend/internal/models"
)

func newCampaignService(t *testing.T) (*CampaignService, *ExecutionService, *models.Tenant) {
	t.Helper()
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	return NewCampaignService(db), NewExecutionService(db, NewDunningEventPublisher(nil), testConfig()), tenant
}

func validCreateRequest() *models.CreateCampaignRequest {
	return &models.CreateCampaignRequest{
		Name: "standard dunning",
		Actions: []models.CampaignAction{
			{Kind: models.ActionNotifyEmail, DelayDays: 0},
			{Kind: models.ActionSuspendService, DelayDays: 3},
		},
	}
}

func TestCreateCampaign_DefaultsApplied(t *testing.T) {
	svc, _, tenant := newCampaignService(t)

	resp, err := svc.CreateCampaign(tenant.ID, validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !resp.IsActive {
		t.Fatal("new campaigns default to active")
	}
	if resp.MaxRetries != 3 || resp.RetryIntervalDays != 1 {
		t.Fatalf("retry defaults wrong: %d/%d", resp.MaxRetries, resp.RetryIntervalDays)
	}
}

func TestCreateCampaign_RejectsEmptyActions(t *testing.T) {
	svc, _, tenant := newCampaignService(t)

	req := validCreateRequest()
	req.Actions = nil
	_, err := svc.CreateCampaign(tenant.ID, req)
	if !errors.Is(err, ErrCampaignNoActions) {
		t.Fatalf("expected ErrCampaignNoActions, got %v", err)
	}
}

func TestCreateCampaign_RejectsUnknownKind(t *testing.T) {
	svc, _, tenant := newCampaignService(t)

	req := validCreateRequest()
	req.Actions = []models.CampaignAction{{Kind: "send-pigeon", DelayDays: 1}}
	_, err := svc.CreateCampaign(tenant.ID, req)
	if !errors.Is(err, ErrUnknownActionKind) {
		t.Fatalf("expected ErrUnknownActionKind, got %v", err)
	}
}

func TestCreateCampaign_RejectsNegativeDelay(t *testing.T) {
	svc, _, tenant := newCampaignService(t)

	req := validCreateRequest()
	req.Actions[1].DelayDays = -1
	_, err := svc.CreateCampaign(tenant.ID, req)
	if !errors.Is(err, ErrNegativeDelay) {
		t.Fatalf("expected ErrNegativeDelay, got %v", err)
	}
}

func TestUpdateCampaign_CrossTenantIsNotFound(t *testing.T) {
	svc, _, tenant := newCampaignService(t)
	resp, err := svc.CreateCampaign(tenant.ID, validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateCampaign("00000000-0000-0000-0000-000000000000", resp.ID, &models.UpdateCampaignRequest{
		Name:    "hijack",
		Actions: validCreateRequest().Actions,
	})
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestDeleteCampaign_SoftKeepsHistory(t *testing.T) {
	svc, _, tenant := newCampaignService(t)
	resp, err := svc.CreateCampaign(tenant.ID, validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteCampaign(tenant.ID, resp.ID, false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	reloaded, err := svc.GetCampaignByID(tenant.ID, resp.ID)
	if err != nil {
		t.Fatalf("get after soft delete: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("soft delete must deactivate the campaign")
	}
}

func TestDeleteCampaign_HardBlockedByActiveExecutions(t *testing.T) {
	svc, executionSvc, tenant := newCampaignService(t)
	resp, err := svc.CreateCampaign(tenant.ID, validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	execution := startTestExecution(t, executionSvc, tenant.ID, resp.ID, "sub_1", 5000)

	err = svc.DeleteCampaign(tenant.ID, resp.ID, true)
	if !errors.Is(err, ErrCampaignHasActiveExecutions) {
		t.Fatalf("expected ErrCampaignHasActiveExecutions, got %v", err)
	}

	// Once the execution settles, the hard delete goes through
	if _, err := executionSvc.Cancel(tenant.ID, execution.ID, "done", "ops"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.DeleteCampaign(tenant.ID, resp.ID, true); err != nil {
		t.Fatalf("hard delete after settle: %v", err)
	}
	if _, err := svc.GetCampaignByID(tenant.ID, resp.ID); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected campaign gone, got %v", err)
	}
}
