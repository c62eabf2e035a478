package services

import (
	"fmt"
	"time"

	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"

	"gorm.io/gorm"
)

// StatsSummary aggregates recovery metrics over a set of executions
type StatsSummary struct {
	TotalExecutions          int64                            `json:"total_executions"`
	ByStatus                 map[models.ExecutionStatus]int64 `json:"by_status"`
	SuccessRate              float64                          `json:"success_rate"`
	RecoveryRate             float64                          `json:"recovery_rate"`
	TotalOutstandingAmount   int64                            `json:"total_outstanding_amount"`
	TotalRecoveredAmount     int64                            `json:"total_recovered_amount"`
	AverageRecoveredAmount   float64                          `json:"average_recovered_amount"`
	AverageCompletionSeconds float64                          `json:"average_completion_seconds"`
}

// CampaignStatsResponse is the per-campaign stats payload
type CampaignStatsResponse struct {
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name"`
	Summary      StatsSummary `json:"summary"`
}

// TenantStatsResponse is the tenant-wide stats payload
type TenantStatsResponse struct {
	TenantID string       `json:"tenant_id"`
	Summary  StatsSummary `json:"summary"`
}

// StatsService derives recovery metrics from execution records. Pure read
// path; it never touches the state machine.
type StatsService struct {
	campaignRepo  *repository.CampaignRepository
	executionRepo *repository.ExecutionRepository
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{
		campaignRepo:  repository.NewCampaignRepository(db),
		executionRepo: repository.NewExecutionRepository(db),
	}
}

// CampaignStats computes metrics over one campaign's executions
func (s *StatsService) CampaignStats(tenantID, campaignID string) (*CampaignStatsResponse, error) {
	campaign, err := s.campaignRepo.GetByTenantIDAndID(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	executions, err := s.executionRepo.ListByCampaign(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return &CampaignStatsResponse{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		Summary:      summarize(executions),
	}, nil
}

// TenantStats computes metrics over every execution of a tenant
func (s *StatsService) TenantStats(tenantID string) (*TenantStatsResponse, error) {
	executions, err := s.executionRepo.ListAllByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return &TenantStatsResponse{
		TenantID: tenantID,
		Summary:  summarize(executions),
	}, nil
}

// summarize folds execution records into a StatsSummary
func summarize(executions []*models.DunningExecution) StatsSummary {
	summary := StatsSummary{
		ByStatus: make(map[models.ExecutionStatus]int64),
	}

	var completedCount int64
	var completionSeconds float64
	var completedRecovered int64

	for _, execution := range executions {
		summary.TotalExecutions++
		summary.ByStatus[execution.Status]++
		summary.TotalOutstandingAmount += execution.OutstandingAmount
		summary.TotalRecoveredAmount += execution.RecoveredAmount

		if execution.Status == models.ExecutionCompleted {
			completedCount++
			completedRecovered += execution.RecoveredAmount
			if execution.CompletedAt != nil {
				completionSeconds += execution.CompletedAt.Sub(execution.StartedAt).Seconds()
			}
		}
	}

	if summary.TotalExecutions > 0 {
		summary.SuccessRate = float64(completedCount) / float64(summary.TotalExecutions)
	}
	if summary.TotalOutstandingAmount > 0 {
		summary.RecoveryRate = float64(summary.TotalRecoveredAmount) / float64(summary.TotalOutstandingAmount)
	}
	if completedCount > 0 {
		summary.AverageRecoveredAmount = float64(completedRecovered) / float64(completedCount)
		summary.AverageCompletionSeconds = completionSeconds / float64(completedCount)
	}
	return summary
}

// VerifyLogConsistency reports whether the recovery deltas in an execution's
// log sum to its recovered amount. Used by tests and debugging endpoints.
func VerifyLogConsistency(execution *models.DunningExecution) (int64, bool) {
	var sum int64
	for _, entry := range execution.ExecutionLog {
		sum += entry.RecoveredDelta
	}
	return sum, sum == execution.RecoveredAmount
}

// CompletionLatency returns the wall-clock run time of a completed execution
func CompletionLatency(execution *models.DunningExecution) time.Duration {
	if execution.CompletedAt == nil {
		return 0
	}
	return execution.CompletedAt.Sub(execution.StartedAt)
}
