package repository

import (
	"errors"

	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(campaign *models.DunningCampaign) error {
	return r.db.Create(campaign).Error
}

// GetByID retrieves a campaign by ID without tenant scoping. Used by the
// executor, which owns executions across tenants.
func (r *CampaignRepository) GetByID(id string) (*models.DunningCampaign, error) {
	var campaign models.DunningCampaign
	err := r.db.First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// GetByTenantIDAndID retrieves a campaign scoped to a tenant
func (r *CampaignRepository) GetByTenantIDAndID(tenantID, campaignID string) (*models.DunningCampaign, error) {
	var campaign models.DunningCampaign
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, campaignID).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// GetByTenantID retrieves a page of campaigns for a tenant ordered by
// priority descending
func (r *CampaignRepository) GetByTenantID(tenantID string, offset, limit int) ([]*models.DunningCampaign, int64, error) {
	var campaigns []*models.DunningCampaign
	var total int64

	query := r.db.Model(&models.DunningCampaign{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("priority DESC, created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, total, err
}

// Update updates a campaign
func (r *CampaignRepository) Update(campaign *models.DunningCampaign) error {
	return r.db.Save(campaign).Error
}

// Deactivate soft-deletes a campaign by marking it inactive
func (r *CampaignRepository) Deactivate(tenantID, campaignID string) error {
	return r.db.Model(&models.DunningCampaign{}).
		Where("tenant_id = ? AND id = ?", tenantID, campaignID).
		Update("is_active", false).Error
}

// HardDelete removes a campaign row. Callers must first verify no pending or
// in-progress executions reference it.
func (r *CampaignRepository) HardDelete(tenantID, campaignID string) error {
	return r.db.Where("tenant_id = ? AND id = ?", tenantID, campaignID).
		Delete(&models.DunningCampaign{}).Error
}

// IncrementCounters applies the campaign aggregate counter deltas as a single
// atomic update so concurrent executor workers never race a read-modify-write
func (r *CampaignRepository) IncrementCounters(campaignID string, executions, successful, recovered int64) error {
	updates := map[string]interface{}{}
	if executions != 0 {
		updates["total_executions"] = gorm.Expr("total_executions + ?", executions)
	}
	if successful != 0 {
		updates["successful_executions"] = gorm.Expr("successful_executions + ?", successful)
	}
	if recovered != 0 {
		updates["total_recovered_amount"] = gorm.Expr("total_recovered_amount + ?", recovered)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.DunningCampaign{}).
		Where("id = ?", campaignID).
		Updates(updates).Error
}
