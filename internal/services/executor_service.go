package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"
	"github.com/recouphq/collections-service-backend/internal/services/actions"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExecutorService advances due executions one step at a time. The advance
// policy is advance-regardless: a failed handler still consumes its step and
// the campaign proceeds, with transport-level failures retried a bounded
// number of times inside the step before it is recorded as failed.
type ExecutorService struct {
	db            *gorm.DB
	executionRepo *repository.ExecutionRepository
	campaignRepo  *repository.CampaignRepository
	actionLogRepo *repository.ActionLogRepository
	registry      *actions.Registry
	publisher     *DunningEventPublisher
	cfg           *config.EngineConfig
	dayDuration   time.Duration
}

func NewExecutorService(db *gorm.DB, registry *actions.Registry, publisher *DunningEventPublisher, cfg *config.EngineConfig) *ExecutorService {
	dayDuration := 24 * time.Hour
	if cfg.DayDuration > 0 {
		dayDuration = cfg.DayDuration
	}
	return &ExecutorService{
		db:            db,
		executionRepo: repository.NewExecutionRepository(db),
		campaignRepo:  repository.NewCampaignRepository(db),
		actionLogRepo: repository.NewActionLogRepository(db),
		registry:      registry,
		publisher:     publisher,
		cfg:           cfg,
		dayDuration:   dayDuration,
	}
}

// Advance executes the current step of one due execution and moves the state
// machine forward. Handler failures never surface as errors; the audit record
// is returned either way. A nil record with a nil error means the execution
// was skipped (inactive campaign) or finalized without dispatching an action.
func (s *ExecutorService) Advance(ctx context.Context, executionID string) (*models.DunningActionLog, error) {
	execution, err := s.executionRepo.GetByID(executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if execution == nil {
		return nil, ErrExecutionNotFound
	}
	if execution.Status.IsTerminal() {
		return nil, ErrExecutionTerminal
	}

	campaign, err := s.campaignRepo.GetByID(execution.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, fmt.Errorf("execution %s references missing campaign %s", execution.ID, execution.CampaignID)
	}
	if !campaign.IsActive {
		// Paused campaign: leave the execution untouched; it becomes due
		// again once the campaign is reactivated
		logrus.Warnf("Skipping execution %s: campaign %s is inactive", execution.ID, campaign.ID)
		return nil, nil
	}

	if execution.CurrentStep >= execution.TotalSteps {
		return nil, s.finalize(execution)
	}
	if execution.CurrentStep >= len(execution.ActionPlan) {
		// The snapshot can never be shorter than total_steps; a row in this
		// shape cannot make progress
		return nil, s.markFailed(execution, "action plan inconsistent with total steps")
	}

	action := execution.ActionPlan[execution.CurrentStep]
	result, attempts := s.dispatch(ctx, execution, campaign, action)

	now := time.Now()
	actionLog := &models.DunningActionLog{
		ExecutionID: execution.ID,
		CampaignID:  campaign.ID,
		TenantID:    execution.TenantID,
		Step:        execution.CurrentStep,
		ActionType:  action.Kind,
		Config:      action.Config,
		Status:      result.Status,
		Attempts:    attempts,
		ExternalID:  result.ExternalID,
		ExecutedAt:  now,
	}
	if result.Status == actions.StatusFailed {
		actionLog.ErrorMessage = result.Details
	}

	var completed bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Re-read inside the transaction: a cancel may have landed while the
		// handler was in flight. The late result is still audited but must
		// not resurrect a terminal execution.
		var fresh models.DunningExecution
		if err := tx.First(&fresh, "id = ?", execution.ID).Error; err != nil {
			return err
		}
		if fresh.Status.IsTerminal() {
			logrus.Infof("Execution %s reached terminal state %s during dispatch; recording late result only",
				fresh.ID, fresh.Status)
			return s.actionLogRepo.CreateTx(tx, actionLog)
		}

		fresh.ExecutionLog = append(fresh.ExecutionLog, models.ExecutionLogEntry{
			Step:       fresh.CurrentStep,
			ActionType: string(action.Kind),
			ExecutedAt: now,
			Status:     result.Status,
			Details:    result.Details,
		})
		fresh.CurrentStep++

		if fresh.CurrentStep >= fresh.TotalSteps {
			completeExecution(&fresh, now)
			if err := rollTerminalCounters(tx, &fresh); err != nil {
				return err
			}
			completed = true
		} else {
			fresh.Status = models.ExecutionInProgress
			next := now.Add(time.Duration(fresh.ActionPlan[fresh.CurrentStep].DelayDays) * s.dayDuration)
			fresh.NextActionAt = &next
		}

		if err := tx.Save(&fresh).Error; err != nil {
			return err
		}
		*execution = fresh
		return s.actionLogRepo.CreateTx(tx, actionLog)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist advance: %w", err)
	}

	s.publisher.StepExecuted(execution, action.Kind, result.Status)
	if completed {
		s.publisher.ExecutionCompleted(execution)
	}
	return actionLog, nil
}

// dispatch resolves and runs the handler for one step. Transport-level
// failures are retried with exponential backoff plus jitter up to the
// configured attempt budget; application-level failures are final on the
// first response.
func (s *ExecutorService) dispatch(ctx context.Context, execution *models.DunningExecution, campaign *models.DunningCampaign, action models.CampaignAction) (*actions.Result, int) {
	handler, err := s.registry.Resolve(action.Kind)
	if err != nil {
		return &actions.Result{
			Status:  actions.StatusFailed,
			Details: err.Error(),
		}, 1
	}

	execCtx := actions.ExecutionContext{
		ExecutionID:       execution.ID,
		TenantID:          execution.TenantID,
		CampaignID:        campaign.ID,
		SubscriptionID:    execution.SubscriptionID,
		CustomerID:        execution.CustomerID,
		InvoiceID:         execution.InvoiceID,
		Step:              execution.CurrentStep,
		OutstandingAmount: execution.OutstandingAmount,
		RecoveredAmount:   execution.RecoveredAmount,
		WebhookSecret:     campaign.WebhookSecret,
	}

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		result, err := handler.Execute(callCtx, execCtx, action.Config)
		cancel()

		if err == nil {
			return result, attempt
		}
		lastErr = err
		logrus.Warnf("Handler %s attempt %d/%d failed for execution %s: %v",
			action.Kind, attempt, maxAttempts, execution.ID, err)
		if attempt < maxAttempts {
			time.Sleep(s.backoff(attempt))
		}
	}

	return &actions.Result{
		Status:  actions.StatusFailed,
		Details: fmt.Sprintf("handler failed after %d attempts: %v", maxAttempts, lastErr),
	}, maxAttempts
}

// backoff returns the delay before retry attempt+1: base doubled per attempt
// with up to half the base of jitter
func (s *ExecutorService) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return delay + jitter
}

// finalize completes an execution whose steps are exhausted without
// dispatching anything
func (s *ExecutorService) finalize(execution *models.DunningExecution) error {
	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var fresh models.DunningExecution
		if err := tx.First(&fresh, "id = ?", execution.ID).Error; err != nil {
			return err
		}
		if fresh.Status.IsTerminal() {
			return ErrExecutionTerminal
		}
		completeExecution(&fresh, now)
		if err := rollTerminalCounters(tx, &fresh); err != nil {
			return err
		}
		if err := tx.Save(&fresh).Error; err != nil {
			return err
		}
		*execution = fresh
		return nil
	})
	if errors.Is(err, ErrExecutionTerminal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}
	s.publisher.ExecutionCompleted(execution)
	return nil
}

// markFailed applies the FAILED terminal transition, reserved for
// unrecoverable executor conditions
func (s *ExecutorService) markFailed(execution *models.DunningExecution, reason string) error {
	now := time.Now()
	execution.Status = models.ExecutionFailed
	execution.NextActionAt = nil
	execution.ExecutionLog = append(execution.ExecutionLog, models.ExecutionLogEntry{
		Step:       execution.CurrentStep,
		ActionType: "executor",
		ExecutedAt: now,
		Status:     models.LogStatusFailed,
		Details:    reason,
	})

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := rollTerminalCounters(tx, execution); err != nil {
			return err
		}
		return tx.Save(execution).Error
	})
	if err != nil {
		return fmt.Errorf("failed to mark execution failed: %w", err)
	}
	logrus.Errorf("Execution %s marked FAILED: %s", execution.ID, reason)
	return nil
}
