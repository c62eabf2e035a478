package actions

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, computed
// with the campaign's webhook secret
const SignatureHeader = "X-Dunning-Signature"

// WebhookHandler posts a canonical dunning envelope to an operator-configured
// URL. Any non-2xx response or transport error marks the step failed.
type WebhookHandler struct {
	client *http.Client
}

// NewWebhookHandler creates the call-webhook handler with a bounded
// connect/read timeout
func NewWebhookHandler(timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		client: &http.Client{Timeout: timeout},
	}
}

func (h *WebhookHandler) Kind() models.ActionKind {
	return models.ActionCallWebhook
}

// webhookEnvelope is the canonical payload POSTed to webhook targets
type webhookEnvelope struct {
	Event             string  `json:"event"`
	ExecutionID       string  `json:"execution_id"`
	CampaignID        string  `json:"campaign_id"`
	TenantID          string  `json:"tenant_id"`
	SubscriptionID    string  `json:"subscription_id"`
	CustomerID        string  `json:"customer_id"`
	InvoiceID         *string `json:"invoice_id,omitempty"`
	Step              int     `json:"step"`
	OutstandingAmount int64   `json:"outstanding_amount"`
	RecoveredAmount   int64   `json:"recovered_amount"`
	SentAt            string  `json:"sent_at"`
}

func (h *WebhookHandler) Execute(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error) {
	url := configString(config, "url")
	if url == "" {
		return &Result{
			Status:  StatusFailed,
			Details: "webhook action has no url configured",
		}, nil
	}

	envelope := webhookEnvelope{
		Event:             "dunning.action",
		ExecutionID:       exec.ExecutionID,
		CampaignID:        exec.CampaignID,
		TenantID:          exec.TenantID,
		SubscriptionID:    exec.SubscriptionID,
		CustomerID:        exec.CustomerID,
		InvoiceID:         exec.InvoiceID,
		Step:              exec.Step,
		OutstandingAmount: exec.OutstandingAmount,
		RecoveredAmount:   exec.RecoveredAmount,
		SentAt:            time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Result{
			Status:  StatusFailed,
			Details: fmt.Sprintf("invalid webhook url: %v", err),
		}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	// Per-action secret wins over the campaign-level secret
	secret := configString(config, "secret")
	if secret == "" {
		secret = exec.WebhookSecret
	}
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, secret))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		// Timeout or connection error: transport failure, retryable
		return nil, fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{
			Status:  StatusFailed,
			Details: fmt.Sprintf("webhook returned status %d", resp.StatusCode),
		}, nil
	}

	return &Result{
		Status:  StatusSuccess,
		Details: fmt.Sprintf("webhook delivered with status %d", resp.StatusCode),
	}, nil
}

// Sign computes the hex HMAC-SHA256 signature of body under secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
