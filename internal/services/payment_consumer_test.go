package services

import (
	"encoding/json"
	"testing"

	"github.com/recouphq/collections-service-backend/internal/models"
)

func newConsumerFixture(t *testing.T) (*PaymentEventConsumer, *ExecutionService, *models.Tenant, *models.DunningCampaign) {
	t.Helper()
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	campaign := seedCampaign(t, db, tenant.ID)
	executionSvc := NewExecutionService(db, NewDunningEventPublisher(nil), testConfig())
	return NewPaymentEventConsumer(nil, executionSvc), executionSvc, tenant, campaign
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestPaymentConsumer_AppliesByExecutionID(t *testing.T) {
	consumer, executionSvc, tenant, campaign := newConsumerFixture(t)
	resp := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)

	body := mustMarshal(t, map[string]interface{}{
		"execution_id": resp.ID,
		"amount":       2000,
	})
	if err := consumer.handle(body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	execution := loadExecution(t, executionSvc.db, resp.ID)
	if execution.RecoveredAmount != 2000 {
		t.Fatalf("expected recovered 2000, got %d", execution.RecoveredAmount)
	}
}

func TestPaymentConsumer_AppliesBySubscription(t *testing.T) {
	consumer, executionSvc, tenant, campaign := newConsumerFixture(t)
	resp := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)

	body := mustMarshal(t, map[string]interface{}{
		"tenant_id":       tenant.ID,
		"subscription_id": "sub_1",
		"amount":          5000,
	})
	if err := consumer.handle(body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	execution := loadExecution(t, executionSvc.db, resp.ID)
	if execution.Status != models.ExecutionCompleted {
		t.Fatalf("full payment must complete, got %s", execution.Status)
	}
}

func TestPaymentConsumer_StaleEventsSwallowed(t *testing.T) {
	consumer, executionSvc, tenant, campaign := newConsumerFixture(t)
	resp := startTestExecution(t, executionSvc, tenant.ID, campaign.ID, "sub_1", 5000)
	if _, err := executionSvc.Cancel(tenant.ID, resp.ID, "churned", "ops"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The ledger does not know our state; both are normal, not errors
	for _, body := range [][]byte{
		mustMarshal(t, map[string]interface{}{"execution_id": resp.ID, "amount": 1000}),
		mustMarshal(t, map[string]interface{}{"execution_id": "00000000-0000-0000-0000-000000000000", "amount": 1000}),
	} {
		if err := consumer.handle(body); err != nil {
			t.Fatalf("stale event must be swallowed: %v", err)
		}
	}
}

func TestPaymentConsumer_MalformedRejected(t *testing.T) {
	consumer, _, _, _ := newConsumerFixture(t)

	if err := consumer.handle([]byte(`{"amount": -5}`)); err == nil {
		t.Fatal("non-positive amount must be rejected")
	}
	if err := consumer.handle([]byte(`{"amount": 100}`)); err == nil {
		t.Fatal("missing identifiers must be rejected")
	}
	if err := consumer.handle([]byte(`not json`)); err == nil {
		t.Fatal("malformed body must be rejected")
	}
}
