package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// stubSender scripts the communications collaborator
type stubSender struct {
	receipt *NotificationReceipt
	err     error

	channel  string
	template string
}

func (s *stubSender) Send(ctx context.Context, channel, recipient, template string, payload map[string]interface{}) (*NotificationReceipt, error) {
	s.channel = channel
	s.template = template
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

func TestRegistry_ResolvesByKind(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewEmailHandler(&stubSender{receipt: &NotificationReceipt{Status: "sent"}}))
	registry.Register(NewCustomHandler())

	h, err := registry.Resolve(models.ActionNotifyEmail)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.Kind() != models.ActionNotifyEmail {
		t.Fatalf("wrong handler kind: %s", h.Kind())
	}

	if _, err := registry.Resolve(models.ActionSuspendService); err == nil {
		t.Fatal("unregistered kind must not resolve")
	}
}

func TestNotify_RejectedReceiptIsApplicationFailure(t *testing.T) {
	sender := &stubSender{receipt: &NotificationReceipt{Status: "rejected"}}
	handler := NewSMSHandler(sender)

	result, err := handler.Execute(context.Background(), ExecutionContext{CustomerID: "cus_1"}, nil)
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed result, got %s", result.Status)
	}
	if sender.channel != "sms" {
		t.Fatalf("expected sms channel, got %s", sender.channel)
	}
}

func TestNotify_SenderErrorIsTransport(t *testing.T) {
	sender := &stubSender{err: errors.New("dial tcp: connection refused")}
	handler := NewEmailHandler(sender)

	_, err := handler.Execute(context.Background(), ExecutionContext{CustomerID: "cus_1"}, nil)
	if err == nil {
		t.Fatal("sender error must surface for retry")
	}
}

func TestNotify_TemplateDefaultsApplied(t *testing.T) {
	sender := &stubSender{receipt: &NotificationReceipt{ID: "msg-1", Status: "sent"}}
	handler := NewEmailHandler(sender)

	result, err := handler.Execute(context.Background(), ExecutionContext{CustomerID: "cus_1"}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sender.template != "dunning_default" {
		t.Fatalf("expected default template, got %s", sender.template)
	}
	if result.ExternalID != "msg-1" {
		t.Fatalf("receipt id must flow into the result, got %q", result.ExternalID)
	}
}

func TestCustom_UnknownHandlerNameFails(t *testing.T) {
	handler := NewCustomHandler()
	handler.RegisterFunc("flag-account", func(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error) {
		return &Result{Status: StatusSuccess, Details: "flagged"}, nil
	})

	result, err := handler.Execute(context.Background(), ExecutionContext{},
		models.JSON{"handler": "does-not-exist"})
	if err != nil {
		t.Fatalf("unknown name is a config error, not transport: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed result, got %s", result.Status)
	}

	result, err = handler.Execute(context.Background(), ExecutionContext{},
		models.JSON{"handler": "flag-account"})
	if err != nil || result.Status != StatusSuccess {
		t.Fatalf("registered func should run: result=%+v err=%v", result, err)
	}
}

func TestCustom_MissingHandlerNameFails(t *testing.T) {
	handler := NewCustomHandler()
	result, err := handler.Execute(context.Background(), ExecutionContext{}, nil)
	if err != nil {
		t.Fatalf("missing name is a config error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed result, got %s", result.Status)
	}
}
