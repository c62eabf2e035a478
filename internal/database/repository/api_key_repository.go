package repository

import (
	"errors"
	"time"

	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create creates a new API key
func (r *APIKeyRepository) Create(apiKey *models.APIKey) (*models.APIKey, error) {
	if err := r.db.Create(apiKey).Error; err != nil {
		return nil, err
	}
	return apiKey, nil
}

// GetByKey retrieves an API key by its key value
func (r *APIKeyRepository) GetByKey(key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.First(&apiKey, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apiKey, nil
}

// GetByTenantID retrieves the API key for a tenant
func (r *APIKeyRepository) GetByTenantID(tenantID string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.First(&apiKey, "tenant_id = ?", tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apiKey, nil
}

// Delete deletes an API key by ID
func (r *APIKeyRepository) Delete(id uint) error {
	return r.db.Delete(&models.APIKey{}, "id = ?", id).Error
}

// TouchLastUsed updates the last_used_at timestamp
func (r *APIKeyRepository) TouchLastUsed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.APIKey{}).Where("id = ?", id).Update("last_used_at", now).Error
}
