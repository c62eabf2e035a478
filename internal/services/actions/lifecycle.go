package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// LifecycleHandler drives the suspend and terminate actions through the
// subscription-lifecycle collaborator
type LifecycleHandler struct {
	kind      models.ActionKind
	lifecycle SubscriptionLifecycle
}

// NewSuspendHandler creates the suspend-service handler
func NewSuspendHandler(lifecycle SubscriptionLifecycle) *LifecycleHandler {
	return &LifecycleHandler{kind: models.ActionSuspendService, lifecycle: lifecycle}
}

// NewTerminateHandler creates the terminate-service handler
func NewTerminateHandler(lifecycle SubscriptionLifecycle) *LifecycleHandler {
	return &LifecycleHandler{kind: models.ActionTerminateService, lifecycle: lifecycle}
}

func (h *LifecycleHandler) Kind() models.ActionKind {
	return h.kind
}

func (h *LifecycleHandler) Execute(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error) {
	reason := configString(config, "reason")
	if reason == "" {
		reason = "overdue balance collection"
	}

	metadata := map[string]interface{}{
		"execution_id":       exec.ExecutionID,
		"campaign_id":        exec.CampaignID,
		"customer_id":        exec.CustomerID,
		"outstanding_amount": exec.OutstandingAmount,
	}

	var err error
	var verb string
	switch h.kind {
	case models.ActionSuspendService:
		verb = "suspended"
		err = h.lifecycle.Suspend(ctx, exec.SubscriptionID, reason, metadata)
	case models.ActionTerminateService:
		verb = "terminated"
		err = h.lifecycle.Terminate(ctx, exec.SubscriptionID, reason, metadata)
	default:
		return &Result{
			Status:  StatusFailed,
			Details: fmt.Sprintf("lifecycle handler misconfigured for kind %q", h.kind),
		}, nil
	}
	if err != nil {
		// A rejection is final; only transport faults surface for retry
		var rejected *RejectionError
		if errors.As(err, &rejected) {
			return &Result{
				Status:  StatusFailed,
				Details: fmt.Sprintf("subscription %s could not be %s: %v", exec.SubscriptionID, verb, err),
			}, nil
		}
		return nil, err
	}

	return &Result{
		Status:  StatusSuccess,
		Details: fmt.Sprintf("subscription %s %s", exec.SubscriptionID, verb),
	}, nil
}
