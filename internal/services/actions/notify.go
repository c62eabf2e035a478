package actions

import (
	"context"
	"fmt"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// NotifyHandler dispatches dunning notifications through the communications
// collaborator. One instance per channel (email, sms).
type NotifyHandler struct {
	kind    models.ActionKind
	channel string
	sender  NotificationSender
}

// NewEmailHandler creates the notify-email handler
func NewEmailHandler(sender NotificationSender) *NotifyHandler {
	return &NotifyHandler{kind: models.ActionNotifyEmail, channel: "email", sender: sender}
}

// NewSMSHandler creates the notify-sms handler
func NewSMSHandler(sender NotificationSender) *NotifyHandler {
	return &NotifyHandler{kind: models.ActionNotifySMS, channel: "sms", sender: sender}
}

func (h *NotifyHandler) Kind() models.ActionKind {
	return h.kind
}

func (h *NotifyHandler) Execute(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error) {
	template := configString(config, "template")
	if template == "" {
		template = "dunning_default"
	}
	recipient := configString(config, "recipient")
	if recipient == "" {
		// The communications service resolves contact details from the
		// customer record when no explicit recipient is configured
		recipient = exec.CustomerID
	}

	payload := map[string]interface{}{
		"execution_id":       exec.ExecutionID,
		"subscription_id":    exec.SubscriptionID,
		"customer_id":        exec.CustomerID,
		"outstanding_amount": exec.OutstandingAmount,
		"recovered_amount":   exec.RecoveredAmount,
		"step":               exec.Step,
	}
	if exec.InvoiceID != nil {
		payload["invoice_id"] = *exec.InvoiceID
	}

	receipt, err := h.sender.Send(ctx, h.channel, recipient, template, payload)
	if err != nil {
		// Transport failure, eligible for retry by the executor
		return nil, err
	}
	if receipt.Status == "rejected" {
		return &Result{
			Status:  StatusFailed,
			Details: fmt.Sprintf("%s notification rejected for recipient %s", h.channel, recipient),
		}, nil
	}

	return &Result{
		Status:     StatusSuccess,
		Details:    fmt.Sprintf("%s notification sent using template %s", h.channel, template),
		ExternalID: receipt.ID,
	}, nil
}
