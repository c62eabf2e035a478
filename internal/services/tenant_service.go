package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrInvalidAPIKey  = errors.New("invalid or inactive API key")
)

// TenantService owns tenant lifecycle and API key authentication
type TenantService struct {
	tenantRepo *repository.TenantRepository
	apiKeyRepo *repository.APIKeyRepository
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{
		tenantRepo: repository.NewTenantRepository(db),
		apiKeyRepo: repository.NewAPIKeyRepository(db),
	}
}

// CreateTenant creates a tenant together with its first API key and returns
// both. The raw key is only available at creation time.
func (s *TenantService) CreateTenant(name string) (*models.TenantResponse, string, error) {
	existing, err := s.tenantRepo.GetByName(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check tenant name: %w", err)
	}
	if existing != nil {
		return nil, "", fmt.Errorf("tenant %q already exists", name)
	}

	tenant := &models.Tenant{
		Name:     name,
		IsActive: true,
	}
	if err := s.tenantRepo.Create(tenant); err != nil {
		return nil, "", fmt.Errorf("failed to create tenant: %w", err)
	}

	key, err := s.GenerateAPIKey(tenant.ID)
	if err != nil {
		return nil, "", err
	}

	return s.toResponse(tenant), key, nil
}

// GenerateAPIKey mints a new API key for a tenant
func (s *TenantService) GenerateAPIKey(tenantID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key := "dk_" + hex.EncodeToString(raw)

	if _, err := s.apiKeyRepo.Create(&models.APIKey{
		Key:      key,
		TenantID: tenantID,
		IsActive: true,
	}); err != nil {
		return "", fmt.Errorf("failed to store API key: %w", err)
	}
	return key, nil
}

// ValidateAPIKey resolves an API key to its tenant. Inactive keys and keys of
// inactive tenants are rejected.
func (s *TenantService) ValidateAPIKey(key string) (*models.Tenant, error) {
	if key == "" {
		return nil, ErrInvalidAPIKey
	}

	apiKey, err := s.apiKeyRepo.GetByKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	if apiKey == nil || !apiKey.IsActive {
		return nil, ErrInvalidAPIKey
	}

	tenant, err := s.tenantRepo.GetByID(apiKey.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tenant: %w", err)
	}
	if tenant == nil || !tenant.IsActive {
		return nil, ErrInvalidAPIKey
	}

	if err := s.apiKeyRepo.TouchLastUsed(apiKey.ID); err != nil {
		logrus.Warnf("Failed to touch API key %d: %v", apiKey.ID, err)
	}
	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *TenantService) GetTenant(tenantID string) (*models.TenantResponse, error) {
	tenant, err := s.tenantRepo.GetByID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return s.toResponse(tenant), nil
}

// EnsureBootstrapTenant creates the bootstrap tenant on first boot when
// BOOTSTRAP_TENANT is set and no tenant exists yet. The generated key is
// logged once so the operator can capture it.
func (s *TenantService) EnsureBootstrapTenant() {
	name := os.Getenv("BOOTSTRAP_TENANT")
	if name == "" {
		return
	}

	count, err := s.tenantRepo.Count()
	if err != nil {
		logrus.Errorf("Failed to count tenants: %v", err)
		return
	}
	if count > 0 {
		return
	}

	_, key, err := s.CreateTenant(name)
	if err != nil {
		logrus.Errorf("Failed to create bootstrap tenant: %v", err)
		return
	}
	logrus.Infof("Bootstrap tenant %q created with API key: %s", name, key)
}

// toResponse converts a tenant model to its response DTO
func (s *TenantService) toResponse(tenant *models.Tenant) *models.TenantResponse {
	return &models.TenantResponse{
		ID:        tenant.ID,
		Name:      tenant.Name,
		IsActive:  tenant.IsActive,
		CreatedAt: tenant.CreatedAt.Format(time.RFC3339),
	}
}
