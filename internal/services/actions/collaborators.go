package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// NotificationReceipt is the collaborator's acknowledgement of a dispatched
// notification
type NotificationReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NotificationSender is the communications collaborator behind the notify
// actions
type NotificationSender interface {
	Send(ctx context.Context, channel, recipient, template string, payload map[string]interface{}) (*NotificationReceipt, error)
}

// SubscriptionLifecycle is the subscription-lifecycle collaborator behind the
// suspend and terminate actions
type SubscriptionLifecycle interface {
	Suspend(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error
	Terminate(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error
}

// HTTPNotificationSender posts notifications to the communications service
type HTTPNotificationSender struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNotificationSender(baseURL string, timeout time.Duration) *HTTPNotificationSender {
	return &HTTPNotificationSender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPNotificationSender) Send(ctx context.Context, channel, recipient, template string, payload map[string]interface{}) (*NotificationReceipt, error) {
	body, err := json.Marshal(map[string]interface{}{
		"channel":   channel,
		"recipient": recipient,
		"template":  template,
		"context":   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NotificationReceipt{Status: "rejected"}, nil
	}

	var receipt NotificationReceipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&receipt); err != nil {
		// Collaborator accepted the notification but returned an unexpected
		// body; treat as sent without a correlation id
		return &NotificationReceipt{Status: "sent"}, nil
	}
	if receipt.Status == "" {
		receipt.Status = "sent"
	}
	return &receipt, nil
}

// RejectionError is a definitive refusal from a collaborator (a 4xx). The
// request itself went through, so retrying cannot change the outcome; handlers
// record it as a failed result instead of surfacing a transport error.
type RejectionError struct {
	StatusCode int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("collaborator rejected the request with status %d", e.StatusCode)
}

// HTTPSubscriptionLifecycle calls the subscription-lifecycle service
type HTTPSubscriptionLifecycle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSubscriptionLifecycle(baseURL string, timeout time.Duration) *HTTPSubscriptionLifecycle {
	return &HTTPSubscriptionLifecycle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSubscriptionLifecycle) Suspend(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error {
	return s.post(ctx, "/subscriptions/"+subscriptionID+"/suspend", reason, metadata)
}

func (s *HTTPSubscriptionLifecycle) Terminate(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error {
	return s.post(ctx, "/subscriptions/"+subscriptionID+"/terminate", reason, metadata)
}

func (s *HTTPSubscriptionLifecycle) post(ctx context.Context, path, reason string, metadata map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"reason":   reason,
		"metadata": metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build lifecycle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("lifecycle call failed: %w", err)
	}
	defer resp.Body.Close()

	// A 4xx means the lifecycle service understood and refused; a 5xx is a
	// service fault worth retrying
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &RejectionError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lifecycle service returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotificationSender logs notifications instead of sending them. Used when
// no communications service is configured (local development).
type LogNotificationSender struct{}

func (LogNotificationSender) Send(ctx context.Context, channel, recipient, template string, payload map[string]interface{}) (*NotificationReceipt, error) {
	logrus.Infof("[notify:%s] recipient=%s template=%s", channel, recipient, template)
	return &NotificationReceipt{ID: "", Status: "sent"}, nil
}

// LogSubscriptionLifecycle logs lifecycle transitions instead of applying them
type LogSubscriptionLifecycle struct{}

func (LogSubscriptionLifecycle) Suspend(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error {
	logrus.Infof("[lifecycle] suspend subscription=%s reason=%s", subscriptionID, reason)
	return nil
}

func (LogSubscriptionLifecycle) Terminate(ctx context.Context, subscriptionID, reason string, metadata map[string]interface{}) error {
	logrus.Infof("[lifecycle] terminate subscription=%s reason=%s", subscriptionID, reason)
	return nil
}
