package services

import (
	"fmt"
	"time"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

// ExecutionService owns the dunning execution state machine: starting runs,
// applying recovered payments, cancellation and the read paths. Step
// advancement lives in ExecutorService; both share the transition helpers
// here.
type ExecutionService struct {
	db            *gorm.DB
	executionRepo *repository.ExecutionRepository
	campaignRepo  *repository.CampaignRepository
	actionLogRepo *repository.ActionLogRepository
	publisher     *DunningEventPublisher
	dayDuration   time.Duration
}

func NewExecutionService(db *gorm.DB, publisher *DunningEventPublisher, cfg *config.EngineConfig) *ExecutionService {
	dayDuration := 24 * time.Hour
	if cfg != nil && cfg.DayDuration > 0 {
		dayDuration = cfg.DayDuration
	}
	return &ExecutionService{
		db:            db,
		executionRepo: repository.NewExecutionRepository(db),
		campaignRepo:  repository.NewCampaignRepository(db),
		actionLogRepo: repository.NewActionLogRepository(db),
		publisher:     publisher,
		dayDuration:   dayDuration,
	}
}

// StartExecution creates a new execution for a subscription. Fails when the
// campaign is inactive or another non-terminal execution already exists for
// the subscription.
func (s *ExecutionService) StartExecution(tenantID string, req *models.StartExecutionRequest) (*models.ExecutionResponse, error) {
	campaign, err := s.campaignRepo.GetByTenantIDAndID(tenantID, req.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.IsActive {
		return nil, ErrCampaignInactive
	}
	if len(campaign.Actions) == 0 {
		return nil, ErrCampaignNoActions
	}
	if req.OutstandingAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	existing, err := s.executionRepo.GetActiveBySubscription(tenantID, req.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active executions: %w", err)
	}
	if existing != nil {
		return nil, ErrActiveExecutionExists
	}

	now := time.Now()
	nextActionAt := s.afterDays(now, campaign.Actions[0].DelayDays)

	// The action list is copied by value so later campaign edits never
	// change a step under this execution
	plan := make(models.ActionList, len(campaign.Actions))
	copy(plan, campaign.Actions)

	execution := &models.DunningExecution{
		CampaignID:        campaign.ID,
		TenantID:          tenantID,
		SubscriptionID:    req.SubscriptionID,
		CustomerID:        req.CustomerID,
		InvoiceID:         req.InvoiceID,
		Status:            models.ExecutionPending,
		CurrentStep:       0,
		TotalSteps:        len(plan),
		ActionPlan:        plan,
		NextActionAt:      &nextActionAt,
		OutstandingAmount: req.OutstandingAmount,
		Metadata:          req.Metadata,
		StartedAt:         now,
	}

	if err := s.executionRepo.Create(execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	s.publisher.ExecutionStarted(execution)
	return s.toResponse(execution), nil
}

// RecordPayment applies a recovered amount to an execution scoped to a tenant
func (s *ExecutionService) RecordPayment(tenantID, executionID string, amount int64) (*models.ExecutionResponse, error) {
	execution, err := s.executionRepo.GetByTenantIDAndID(tenantID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	return s.applyPayment(execution, amount)
}

// RecordPaymentByID applies a recovered amount without tenant scoping. Used
// by the payment event consumer, which trusts the ledger's identifiers.
func (s *ExecutionService) RecordPaymentByID(executionID string, amount int64) (*models.ExecutionResponse, error) {
	execution, err := s.executionRepo.GetByID(executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	return s.applyPayment(execution, amount)
}

// RecordPaymentForSubscription applies a recovered amount to the active
// execution of a subscription, if one exists
func (s *ExecutionService) RecordPaymentForSubscription(tenantID, subscriptionID string, amount int64) (*models.ExecutionResponse, error) {
	execution, err := s.executionRepo.GetActiveBySubscription(tenantID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	return s.applyPayment(execution, amount)
}

// applyPayment clamps the amount to the remaining balance, appends a payment
// log entry and completes the execution early when fully recovered
func (s *ExecutionService) applyPayment(execution *models.DunningExecution, amount int64) (*models.ExecutionResponse, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if execution.Status.IsTerminal() {
		return nil, ErrExecutionTerminal
	}

	delta := amount
	if remaining := execution.OutstandingAmount - execution.RecoveredAmount; delta > remaining {
		delta = remaining
	}

	now := time.Now()
	execution.RecoveredAmount += delta
	execution.ExecutionLog = append(execution.ExecutionLog, models.ExecutionLogEntry{
		Step:           execution.CurrentStep,
		ActionType:     "payment",
		ExecutedAt:     now,
		Status:         models.LogStatusPayment,
		Details:        fmt.Sprintf("payment of %d applied", delta),
		RecoveredDelta: delta,
	})

	completed := execution.RecoveredAmount >= execution.OutstandingAmount

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if completed {
			completeExecution(execution, now)
			if err := rollTerminalCounters(tx, execution); err != nil {
				return err
			}
		}
		return tx.Save(execution).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.publisher.PaymentRecorded(execution, delta)
	if completed {
		s.publisher.ExecutionCompleted(execution)
	}
	return s.toResponse(execution), nil
}

// Cancel terminates an execution explicitly. Terminal executions reject the
// call with the same state-violation error every time and stay unchanged.
func (s *ExecutionService) Cancel(tenantID, executionID, reason, canceledBy string) (*models.ExecutionResponse, error) {
	execution, err := s.executionRepo.GetByTenantIDAndID(tenantID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	if execution.Status.IsTerminal() {
		return nil, ErrExecutionTerminal
	}

	now := time.Now()
	execution.Status = models.ExecutionCanceled
	execution.NextActionAt = nil
	execution.CanceledReason = reason
	execution.CanceledBy = canceledBy
	execution.ExecutionLog = append(execution.ExecutionLog, models.ExecutionLogEntry{
		Step:       execution.CurrentStep,
		ActionType: "cancel",
		ExecutedAt: now,
		Status:     models.LogStatusCancel,
		Details:    reason,
	})

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rollTerminalCounters(tx, execution); err != nil {
			return err
		}
		return tx.Save(execution).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	s.publisher.ExecutionCanceled(execution)
	return s.toResponse(execution), nil
}

// GetByID retrieves an execution scoped to a tenant
func (s *ExecutionService) GetByID(tenantID, executionID string) (*models.ExecutionResponse, error) {
	execution, err := s.executionRepo.GetByTenantIDAndID(tenantID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	return s.toResponse(execution), nil
}

// List retrieves a page of a tenant's executions, optionally filtered by
// status
func (s *ExecutionService) List(tenantID string, status models.ExecutionStatus, offset, limit int) ([]*models.ExecutionResponse, int64, error) {
	executions, total, err := s.executionRepo.ListByTenant(tenantID, status, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}

	responses := make([]*models.ExecutionResponse, len(executions))
	for i, execution := range executions {
		responses[i] = s.toResponse(execution)
	}
	return responses, total, nil
}

// GetActionLogs retrieves the audit records of an execution
func (s *ExecutionService) GetActionLogs(tenantID, executionID string) ([]*models.ActionLogResponse, error) {
	execution, err := s.executionRepo.GetByTenantIDAndID(tenantID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}

	logs, err := s.actionLogRepo.GetByTenantAndExecutionID(tenantID, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action logs: %w", err)
	}

	responses := make([]*models.ActionLogResponse, len(logs))
	for i, log := range logs {
		responses[i] = &models.ActionLogResponse{
			ID:           log.ID,
			ExecutionID:  log.ExecutionID,
			CampaignID:   log.CampaignID,
			Step:         log.Step,
			ActionType:   log.ActionType,
			Status:       log.Status,
			Attempts:     log.Attempts,
			ErrorMessage: log.ErrorMessage,
			ExternalID:   log.ExternalID,
			ExecutedAt:   log.ExecutedAt.Format(time.RFC3339),
		}
	}
	return responses, nil
}

// afterDays converts a delay in days to a timestamp using the configured day
// duration
func (s *ExecutionService) afterDays(from time.Time, days int) time.Time {
	return from.Add(time.Duration(days) * s.dayDuration)
}

// completeExecution applies the COMPLETED terminal transition in memory
func completeExecution(execution *models.DunningExecution, now time.Time) {
	execution.Status = models.ExecutionCompleted
	execution.NextActionAt = nil
	execution.CompletedAt = &now
}

// rollTerminalCounters applies the campaign aggregate updates for a terminal
// transition inside tx. successful_executions moves only on a COMPLETED
// transition with recovered money, so it is bumped exactly once per execution.
func rollTerminalCounters(tx *gorm.DB, execution *models.DunningExecution) error {
	var successful int64
	if execution.Status == models.ExecutionCompleted && execution.RecoveredAmount > 0 {
		successful = 1
	}
	return repository.NewCampaignRepository(tx).
		IncrementCounters(execution.CampaignID, 1, successful, execution.RecoveredAmount)
}

// toResponse converts an execution model to its response DTO
func (s *ExecutionService) toResponse(execution *models.DunningExecution) *models.ExecutionResponse {
	resp := &models.ExecutionResponse{
		ID:                execution.ID,
		CampaignID:        execution.CampaignID,
		TenantID:          execution.TenantID,
		SubscriptionID:    execution.SubscriptionID,
		CustomerID:        execution.CustomerID,
		InvoiceID:         execution.InvoiceID,
		Status:            execution.Status,
		CurrentStep:       execution.CurrentStep,
		TotalSteps:        execution.TotalSteps,
		OutstandingAmount: execution.OutstandingAmount,
		RecoveredAmount:   execution.RecoveredAmount,
		ExecutionLog:      execution.ExecutionLog,
		CanceledReason:    execution.CanceledReason,
		CanceledBy:        execution.CanceledBy,
		StartedAt:         execution.StartedAt.Format(time.RFC3339),
		CreatedAt:         execution.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         execution.UpdatedAt.Format(time.RFC3339),
	}
	if execution.NextActionAt != nil {
		next := execution.NextActionAt.Format(time.RFC3339)
		resp.NextActionAt = &next
	}
	if execution.CompletedAt != nil {
		completed := execution.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}
