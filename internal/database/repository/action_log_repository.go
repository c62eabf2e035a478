package repository

import (
	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

type ActionLogRepository struct {
	db *gorm.DB
}

func NewActionLogRepository(db *gorm.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// CreateTx creates a new action log record inside an existing transaction
func (r *ActionLogRepository) CreateTx(tx *gorm.DB, log *models.DunningActionLog) error {
	return tx.Create(log).Error
}

// GetByTenantAndExecutionID retrieves audit records scoped to a tenant
func (r *ActionLogRepository) GetByTenantAndExecutionID(tenantID, executionID string) ([]*models.DunningActionLog, error) {
	var logs []*models.DunningActionLog
	err := r.db.Where("tenant_id = ? AND execution_id = ?", tenantID, executionID).
		Order("executed_at ASC").
		Find(&logs).Error
	return logs, err
}
