package actions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recouphq/collections-service-backend/internal/models"
)

func testExecContext() ExecutionContext {
	return ExecutionContext{
		ExecutionID:       "exec-1",
		TenantID:          "tenant-1",
		CampaignID:        "campaign-1",
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		Step:              1,
		OutstandingAmount: 5000,
		RecoveredAmount:   1500,
		WebhookSecret:     "campaign-secret",
	}
}

func TestWebhook_SignsAndDelivers(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	handler := NewWebhookHandler(time.Second)
	result, err := handler.Execute(context.Background(), testExecContext(),
		models.JSON{"url": srv.URL})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Details)
	}

	if gotSignature != Sign(gotBody, "campaign-secret") {
		t.Fatal("signature does not verify against the campaign secret")
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["event"] != "dunning.action" || envelope["execution_id"] != "exec-1" {
		t.Fatalf("unexpected envelope: %v", envelope)
	}
	if envelope["outstanding_amount"] != float64(5000) {
		t.Fatalf("unexpected outstanding amount: %v", envelope["outstanding_amount"])
	}
}

func TestWebhook_ActionSecretWins(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	handler := NewWebhookHandler(time.Second)
	_, err := handler.Execute(context.Background(), testExecContext(),
		models.JSON{"url": srv.URL, "secret": "step-secret"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotSignature != Sign(gotBody, "step-secret") {
		t.Fatal("per-action secret must override the campaign secret")
	}
}

func TestWebhook_Non2xxIsApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	handler := NewWebhookHandler(time.Second)
	result, err := handler.Execute(context.Background(), testExecContext(),
		models.JSON{"url": srv.URL})
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed result, got %s", result.Status)
	}
}

func TestWebhook_ConnectionErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	handler := NewWebhookHandler(time.Second)
	_, err := handler.Execute(context.Background(), testExecContext(),
		models.JSON{"url": srv.URL})
	if err == nil {
		t.Fatal("connection error must surface as a transport error")
	}
}

func TestWebhook_MissingURLFailsWithoutRetry(t *testing.T) {
	handler := NewWebhookHandler(time.Second)
	result, err := handler.Execute(context.Background(), testExecContext(), nil)
	if err != nil {
		t.Fatalf("missing url is a config error, not transport: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed result, got %s", result.Status)
	}
}
