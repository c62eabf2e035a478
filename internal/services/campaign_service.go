package services

import (
	"fmt"
	"time"

	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

// CampaignService owns campaign CRUD and validation. Action sequences are
// validated here once; executions snapshot them at start, so a persisted
// campaign edit only shapes future executions.
type CampaignService struct {
	campaignRepo  *repository.CampaignRepository
	executionRepo *repository.ExecutionRepository
}

func NewCampaignService(db *gorm.DB) *CampaignService {
	return &CampaignService{
		campaignRepo:  repository.NewCampaignRepository(db),
		executionRepo: repository.NewExecutionRepository(db),
	}
}

// CreateCampaign creates a new campaign for a tenant
func (s *CampaignService) CreateCampaign(tenantID string, req *models.CreateCampaignRequest) (*models.CampaignResponse, error) {
	if err := validateActions(req.Actions); err != nil {
		return nil, err
	}

	campaign := &models.DunningCampaign{
		TenantID:          tenantID,
		Name:              req.Name,
		Description:       req.Description,
		TriggerAfterDays:  req.TriggerAfterDays,
		Actions:           models.ActionList(req.Actions),
		ExclusionRules:    req.ExclusionRules,
		WebhookSecret:     req.WebhookSecret,
		MaxRetries:        3,
		RetryIntervalDays: 1,
		IsActive:          true,
		Priority:          req.Priority,
	}
	if req.MaxRetries != nil {
		campaign.MaxRetries = *req.MaxRetries
	}
	if req.RetryIntervalDays != nil {
		campaign.RetryIntervalDays = *req.RetryIntervalDays
	}
	if req.IsActive != nil {
		campaign.IsActive = *req.IsActive
	}

	if err := s.campaignRepo.Create(campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	return s.toResponse(campaign), nil
}

// GetCampaignsByTenant retrieves a page of campaigns for a tenant
func (s *CampaignService) GetCampaignsByTenant(tenantID string, offset, limit int) ([]*models.CampaignResponse, int64, error) {
	campaigns, total, err := s.campaignRepo.GetByTenantID(tenantID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get campaigns: %w", err)
	}

	responses := make([]*models.CampaignResponse, len(campaigns))
	for i, campaign := range campaigns {
		responses[i] = s.toResponse(campaign)
	}
	return responses, total, nil
}

// GetCampaignByID retrieves a campaign scoped to a tenant
func (s *CampaignService) GetCampaignByID(tenantID, campaignID string) (*models.CampaignResponse, error) {
	campaign, err := s.campaignRepo.GetByTenantIDAndID(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return s.toResponse(campaign), nil
}

// UpdateCampaign updates a campaign in place. Executions already running keep
// their action snapshot.
func (s *CampaignService) UpdateCampaign(tenantID, campaignID string, req *models.UpdateCampaignRequest) (*models.CampaignResponse, error) {
	campaign, err := s.campaignRepo.GetByTenantIDAndID(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	if err := validateActions(req.Actions); err != nil {
		return nil, err
	}

	campaign.Name = req.Name
	campaign.Description = req.Description
	campaign.TriggerAfterDays = req.TriggerAfterDays
	campaign.Actions = models.ActionList(req.Actions)
	campaign.ExclusionRules = req.ExclusionRules
	if req.WebhookSecret != nil {
		campaign.WebhookSecret = *req.WebhookSecret
	}
	if req.MaxRetries != nil {
		campaign.MaxRetries = *req.MaxRetries
	}
	if req.RetryIntervalDays != nil {
		campaign.RetryIntervalDays = *req.RetryIntervalDays
	}
	if req.IsActive != nil {
		campaign.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		campaign.Priority = *req.Priority
	}

	if err := s.campaignRepo.Update(campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}

	return s.toResponse(campaign), nil
}

// DeleteCampaign removes a campaign. Operator deletes are soft (the campaign
// is marked inactive and history stays queryable); system-initiated deletes
// are hard but only when no pending or in-progress execution references the
// campaign.
func (s *CampaignService) DeleteCampaign(tenantID, campaignID string, hard bool) error {
	campaign, err := s.campaignRepo.GetByTenantIDAndID(tenantID, campaignID)
	if err != nil {
		return fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}

	if !hard {
		return s.campaignRepo.Deactivate(tenantID, campaignID)
	}

	active, err := s.executionRepo.CountNonTerminalByCampaign(campaignID)
	if err != nil {
		return fmt.Errorf("failed to count active executions: %w", err)
	}
	if active > 0 {
		return ErrCampaignHasActiveExecutions
	}
	return s.campaignRepo.HardDelete(tenantID, campaignID)
}

// validateActions rejects empty or malformed action sequences before they are
// persisted
func validateActions(actionList []models.CampaignAction) error {
	if len(actionList) == 0 {
		return ErrCampaignNoActions
	}
	for i, action := range actionList {
		if !models.IsKnownActionKind(action.Kind) {
			return fmt.Errorf("%w: action %d has kind %q", ErrUnknownActionKind, i, action.Kind)
		}
		if action.DelayDays < 0 {
			return fmt.Errorf("%w: action %d", ErrNegativeDelay, i)
		}
	}
	return nil
}

// toResponse converts a campaign model to its response DTO
func (s *CampaignService) toResponse(campaign *models.DunningCampaign) *models.CampaignResponse {
	return &models.CampaignResponse{
		ID:                   campaign.ID,
		TenantID:             campaign.TenantID,
		Name:                 campaign.Name,
		Description:          campaign.Description,
		TriggerAfterDays:     campaign.TriggerAfterDays,
		Actions:              campaign.Actions,
		ExclusionRules:       campaign.ExclusionRules,
		MaxRetries:           campaign.MaxRetries,
		RetryIntervalDays:    campaign.RetryIntervalDays,
		IsActive:             campaign.IsActive,
		Priority:             campaign.Priority,
		TotalExecutions:      campaign.TotalExecutions,
		SuccessfulExecutions: campaign.SuccessfulExecutions,
		TotalRecoveredAmount: campaign.TotalRecoveredAmount,
		CreatedAt:            campaign.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            campaign.UpdatedAt.Format(time.RFC3339),
	}
}
