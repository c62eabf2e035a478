package services

import (
	"time"

	"github.com/recouphq/collections-service-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DunningEventPublisher emits execution lifecycle events to the dunning
// events queue for downstream consumers (reporting, CRM sync). A nil
// publisher or a missing broker disables publishing without affecting the
// engine; events are best-effort.
type DunningEventPublisher struct {
	rabbitMQ *RabbitMQService
}

// NewDunningEventPublisher creates a publisher over an optional RabbitMQ
// service
func NewDunningEventPublisher(rabbitMQ *RabbitMQService) *DunningEventPublisher {
	return &DunningEventPublisher{rabbitMQ: rabbitMQ}
}

func (p *DunningEventPublisher) publish(eventType string, execution *models.DunningExecution, extra map[string]interface{}) {
	if p == nil || p.rabbitMQ == nil {
		return
	}

	message := map[string]interface{}{
		"event_type":         eventType,
		"execution_id":       execution.ID,
		"campaign_id":        execution.CampaignID,
		"tenant_id":          execution.TenantID,
		"subscription_id":    execution.SubscriptionID,
		"customer_id":        execution.CustomerID,
		"status":             string(execution.Status),
		"current_step":       execution.CurrentStep,
		"outstanding_amount": execution.OutstandingAmount,
		"recovered_amount":   execution.RecoveredAmount,
		"occurred_at":        time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		message[k] = v
	}

	if err := p.rabbitMQ.PublishMessage(DunningEventsQueue, message); err != nil {
		logrus.Warnf("Failed to publish %s event for execution %s: %v", eventType, execution.ID, err)
	}
}

// ExecutionStarted emits dunning.execution.started
func (p *DunningEventPublisher) ExecutionStarted(execution *models.DunningExecution) {
	p.publish("dunning.execution.started", execution, nil)
}

// StepExecuted emits dunning.step.executed after each advanced step
func (p *DunningEventPublisher) StepExecuted(execution *models.DunningExecution, actionType models.ActionKind, stepStatus string) {
	p.publish("dunning.step.executed", execution, map[string]interface{}{
		"action_type": string(actionType),
		"step_status": stepStatus,
	})
}

// ExecutionCompleted emits dunning.execution.completed
func (p *DunningEventPublisher) ExecutionCompleted(execution *models.DunningExecution) {
	p.publish("dunning.execution.completed", execution, nil)
}

// ExecutionCanceled emits dunning.execution.canceled
func (p *DunningEventPublisher) ExecutionCanceled(execution *models.DunningExecution) {
	p.publish("dunning.execution.canceled", execution, map[string]interface{}{
		"canceled_reason": execution.CanceledReason,
		"canceled_by":     execution.CanceledBy,
	})
}

// PaymentRecorded emits dunning.payment.recorded
func (p *DunningEventPublisher) PaymentRecorded(execution *models.DunningExecution, amount int64) {
	p.publish("dunning.payment.recorded", execution, map[string]interface{}{
		"amount": amount,
	})
}
