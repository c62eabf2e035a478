package repository

import (
	"errors"
	"time"

	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

// nonTerminalStatuses is the filter used by the due-query and the
// one-active-execution check
var nonTerminalStatuses = []models.ExecutionStatus{
	models.ExecutionPending,
	models.ExecutionInProgress,
}

type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create creates a new execution
func (r *ExecutionRepository) Create(execution *models.DunningExecution) error {
	return r.db.Create(execution).Error
}

// GetByID retrieves an execution by ID without tenant scoping (executor path)
func (r *ExecutionRepository) GetByID(id string) (*models.DunningExecution, error) {
	var execution models.DunningExecution
	err := r.db.First(&execution, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &execution, nil
}

// GetByTenantIDAndID retrieves an execution scoped to a tenant
func (r *ExecutionRepository) GetByTenantIDAndID(tenantID, executionID string) (*models.DunningExecution, error) {
	var execution models.DunningExecution
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, executionID).First(&execution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &execution, nil
}

// GetActiveBySubscription returns the non-terminal execution for a
// subscription, if any. Backs the one-active-execution invariant.
func (r *ExecutionRepository) GetActiveBySubscription(tenantID, subscriptionID string) (*models.DunningExecution, error) {
	var execution models.DunningExecution
	err := r.db.Where("tenant_id = ? AND subscription_id = ? AND status IN ?",
		tenantID, subscriptionID, nonTerminalStatuses).
		First(&execution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &execution, nil
}

// ListByTenant retrieves a page of executions for a tenant, optionally
// filtered by status, newest first
func (r *ExecutionRepository) ListByTenant(tenantID string, status models.ExecutionStatus, offset, limit int) ([]*models.DunningExecution, int64, error) {
	var executions []*models.DunningExecution
	var total int64

	query := r.db.Model(&models.DunningExecution{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&executions).Error
	return executions, total, err
}

// ListByCampaign retrieves every execution of one campaign (stats path)
func (r *ExecutionRepository) ListByCampaign(tenantID, campaignID string) ([]*models.DunningExecution, error) {
	var executions []*models.DunningExecution
	err := r.db.Where("tenant_id = ? AND campaign_id = ?", tenantID, campaignID).
		Find(&executions).Error
	return executions, err
}

// ListAllByTenant retrieves every execution of a tenant (stats path)
func (r *ExecutionRepository) ListAllByTenant(tenantID string) ([]*models.DunningExecution, error) {
	var executions []*models.DunningExecution
	err := r.db.Where("tenant_id = ?", tenantID).Find(&executions).Error
	return executions, err
}

// CountNonTerminalByCampaign counts pending/in-progress executions of a
// campaign. Guards campaign hard deletion.
func (r *ExecutionRepository) CountNonTerminalByCampaign(campaignID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.DunningExecution{}).
		Where("campaign_id = ? AND status IN ?", campaignID, nonTerminalStatuses).
		Count(&count).Error
	return count, err
}

// Due returns non-terminal executions whose next action time has passed,
// oldest due first so the longest-waiting work is served before newer work
func (r *ExecutionRepository) Due(now time.Time, limit int) ([]*models.DunningExecution, error) {
	var executions []*models.DunningExecution
	err := r.db.Where("status IN ? AND next_action_at IS NOT NULL AND next_action_at <= ?",
		nonTerminalStatuses, now).
		Order("next_action_at ASC").
		Limit(limit).
		Find(&executions).Error
	return executions, err
}

// DueByTenant returns one tenant's due executions, oldest due first. Backs
// the management API's pending-actions listing, which must never show another
// tenant's rows.
func (r *ExecutionRepository) DueByTenant(tenantID string, now time.Time, limit int) ([]*models.DunningExecution, error) {
	var executions []*models.DunningExecution
	err := r.db.Where("tenant_id = ? AND status IN ? AND next_action_at IS NOT NULL AND next_action_at <= ?",
		tenantID, nonTerminalStatuses, now).
		Order("next_action_at ASC").
		Limit(limit).
		Find(&executions).Error
	return executions, err
}

// Claim takes the worker lease on an execution. The conditional update only
// succeeds when no live lease exists, so exactly one worker wins; a stale
// lease older than leaseTimeout is treated as expired and stolen.
func (r *ExecutionRepository) Claim(executionID, workerID string, leaseTimeout time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-leaseTimeout)
	res := r.db.Model(&models.DunningExecution{}).
		Where("id = ? AND status IN ? AND (locked_at IS NULL OR locked_at < ?)",
			executionID, nonTerminalStatuses, cutoff).
		Updates(map[string]interface{}{
			"locked_at": now,
			"locked_by": workerID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release drops the worker lease. Only the holder may release; an expired
// lease stolen by another worker stays with the new holder.
func (r *ExecutionRepository) Release(executionID, workerID string) error {
	return r.db.Model(&models.DunningExecution{}).
		Where("id = ? AND locked_by = ?", executionID, workerID).
		Updates(map[string]interface{}{
			"locked_at": nil,
			"locked_by": "",
		}).Error
}
