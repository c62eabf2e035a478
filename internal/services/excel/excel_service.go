package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// Service handles Excel exports of execution history
type Service struct {
	campaignRepo  *repository.CampaignRepository
	executionRepo *repository.ExecutionRepository
	exportsDir    string
}

// NewExcelService creates a new Excel service instance
func NewExcelService(
	campaignRepo *repository.CampaignRepository,
	executionRepo *repository.ExecutionRepository,
	exportsDir string) *Service {
	// Create exports directory if it doesn't exist
	if _, err := os.Stat(exportsDir); os.IsNotExist(err) {
		os.MkdirAll(exportsDir, 0755)
	}

	return &Service{
		campaignRepo:  campaignRepo,
		executionRepo: executionRepo,
		exportsDir:    exportsDir,
	}
}

// ExportResult contains the result of an export operation
type ExportResult struct {
	Success  bool
	Message  string
	Filename string
}

// ExportTenantExecutions exports every execution of a tenant to an Excel file
// and returns the generated filename
func (s *Service) ExportTenantExecutions(tenantID string) (*ExportResult, error) {
	timestamp := time.Now().Unix()
	filename := fmt.Sprintf("executions_%s_%d.xlsx", tenantID, timestamp)
	filePath := filepath.Join(s.exportsDir, filename)

	executions, err := s.executionRepo.ListAllByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	// Campaign names are resolved once per campaign
	campaignNames := make(map[string]string)
	for _, execution := range executions {
		if _, ok := campaignNames[execution.CampaignID]; ok {
			continue
		}
		campaign, err := s.campaignRepo.GetByID(execution.CampaignID)
		if err == nil && campaign != nil {
			campaignNames[execution.CampaignID] = campaign.Name
		}
	}

	f := excelize.NewFile()

	// Create styles for terminal statuses
	completedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"C6EFCE"}, // Green
			Pattern: 1,
		},
	})

	failedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFC7CE"}, // Red
			Pattern: 1,
		},
	})

	canceledStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"D9D9D9"}, // Gray
			Pattern: 1,
		},
	})

	sheetName := "Executions"
	defaultSheetName := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheetName, sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	f.SetActiveSheet(0)

	columns := []string{
		"id", "campaign_id", "campaign_name", "subscription_id", "customer_id",
		"invoice_id", "status", "current_step", "total_steps",
		"outstanding_amount", "recovered_amount",
		"started_at", "completed_at", "canceled_reason",
	}

	// Write headers
	for i, col := range columns {
		cell := fmt.Sprintf("%s1", columnToLetter(i+1))
		f.SetCellValue(sheetName, cell, col)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFF00"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err == nil {
		f.SetCellStyle(sheetName, "A1", columnToLetter(len(columns))+strconv.Itoa(1), headerStyle)
	}

	// Set column widths
	for i, col := range columns {
		colLetter := columnToLetter(i + 1)
		width := 20.0

		switch col {
		case "id", "campaign_id":
			width = 38.0
		case "campaign_name", "canceled_reason":
			width = 30.0
		case "current_step", "total_steps":
			width = 12.0
		case "started_at", "completed_at":
			width = 22.0
		}

		f.SetColWidth(sheetName, colLetter, colLetter, width)
	}

	if len(executions) > 0 {
		for j, execution := range executions {
			rowNum := j + 2 // Start from row 2 (after headers)

			var completedAt string
			if execution.CompletedAt != nil {
				completedAt = execution.CompletedAt.Format(time.RFC3339)
			}
			var invoiceID string
			if execution.InvoiceID != nil {
				invoiceID = *execution.InvoiceID
			}

			f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), execution.ID)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), execution.CampaignID)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), campaignNames[execution.CampaignID])
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), execution.SubscriptionID)
			f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), execution.CustomerID)
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), invoiceID)
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), string(execution.Status))
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNum), execution.CurrentStep)
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", rowNum), execution.TotalSteps)
			f.SetCellValue(sheetName, fmt.Sprintf("J%d", rowNum), execution.OutstandingAmount)
			f.SetCellValue(sheetName, fmt.Sprintf("K%d", rowNum), execution.RecoveredAmount)
			f.SetCellValue(sheetName, fmt.Sprintf("L%d", rowNum), execution.StartedAt.Format(time.RFC3339))
			f.SetCellValue(sheetName, fmt.Sprintf("M%d", rowNum), completedAt)
			f.SetCellValue(sheetName, fmt.Sprintf("N%d", rowNum), execution.CanceledReason)

			// Apply row styling based on status
			switch execution.Status {
			case models.ExecutionCompleted:
				f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", columnToLetter(len(columns)), rowNum), completedStyle)
			case models.ExecutionFailed:
				f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", columnToLetter(len(columns)), rowNum), failedStyle)
			case models.ExecutionCanceled:
				f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", columnToLetter(len(columns)), rowNum), canceledStyle)
			}
		}
	} else {
		f.SetCellValue(sheetName, "A2", "no executions found for this tenant")
	}

	if err := f.SaveAs(filePath); err != nil {
		return nil, fmt.Errorf("failed to save Excel file: %w", err)
	}

	return &ExportResult{
		Success:  true,
		Message:  fmt.Sprintf("Successfully exported %d execution(s)", len(executions)),
		Filename: filename,
	}, nil
}

// ExportPath returns the absolute path of a previously exported file
func (s *Service) ExportPath(filename string) string {
	return filepath.Join(s.exportsDir, filepath.Base(filename))
}

// Helper function to convert column number to Excel column letter
func columnToLetter(col int) string {
	var result string
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
