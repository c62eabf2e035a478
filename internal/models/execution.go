package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExecutionStatus is the state machine state of a dunning execution
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "PENDING"
	ExecutionInProgress ExecutionStatus = "IN_PROGRESS"
	ExecutionCompleted  ExecutionStatus = "COMPLETED"
	ExecutionFailed     ExecutionStatus = "FAILED"
	ExecutionCanceled   ExecutionStatus = "CANCELED"
)

// TerminalStatuses lists the states no execution ever leaves
var TerminalStatuses = []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionCanceled}

// IsTerminal reports whether the status permits no further transitions
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCanceled
}

// Log entry statuses recorded per executed step
const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
	LogStatusPayment = "payment"
	LogStatusCancel  = "canceled"
)

// ExecutionLogEntry is one record of the append-only per-execution log
type ExecutionLogEntry struct {
	Step           int       `json:"step"`
	ActionType     string    `json:"action_type"`
	ExecutedAt     time.Time `json:"executed_at"`
	Status         string    `json:"status"`
	Details        string    `json:"details,omitempty"`
	RecoveredDelta int64     `json:"recovered_delta,omitempty"`
}

// ExecutionLog is the append-only step history stored as a jsonb column
type ExecutionLog []ExecutionLogEntry

// Value implements driver.Valuer
func (l ExecutionLog) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *ExecutionLog) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ExecutionLog column: %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// GormDataType tells GORM to map the type to jsonb
func (ExecutionLog) GormDataType() string {
	return "jsonb"
}

// DunningExecution represents one run of a campaign against a subscription.
// Rows are never deleted; they only reach a terminal status.
type DunningExecution struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID     string  `json:"campaign_id" gorm:"not null;index;type:uuid"`
	TenantID       string  `json:"tenant_id" gorm:"not null;index:idx_executions_tenant_status;type:uuid"`
	SubscriptionID string  `json:"subscription_id" gorm:"not null;index:idx_executions_subscription_status;type:varchar(255)"`
	CustomerID     string  `json:"customer_id" gorm:"not null;index;type:varchar(255)"`
	InvoiceID      *string `json:"invoice_id,omitempty" gorm:"type:varchar(255)"`

	Status      ExecutionStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_executions_tenant_status;index:idx_executions_subscription_status"`
	CurrentStep int             `json:"current_step" gorm:"default:0"`
	TotalSteps  int             `json:"total_steps" gorm:"not null"`

	// Value snapshot of the campaign actions taken at start; campaign edits
	// never reach a running execution
	ActionPlan ActionList `json:"action_plan" gorm:"type:jsonb"`

	// Nil exactly when the execution is terminal
	NextActionAt *time.Time `json:"next_action_at" gorm:"index"`

	// Minor currency units; 0 <= recovered <= outstanding always holds
	OutstandingAmount int64 `json:"outstanding_amount" gorm:"not null"`
	RecoveredAmount   int64 `json:"recovered_amount" gorm:"default:0"`

	ExecutionLog ExecutionLog `json:"execution_log" gorm:"type:jsonb"`

	CanceledReason string `json:"canceled_reason,omitempty" gorm:"type:text"`
	CanceledBy     string `json:"canceled_by,omitempty" gorm:"type:varchar(255)"`

	// Worker lease preventing two workers from advancing the same execution
	LockedAt *time.Time `json:"-" gorm:"index"`
	LockedBy string     `json:"-" gorm:"type:varchar(255)"`

	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Campaign DunningCampaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
	Tenant   Tenant          `json:"-" gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate is a GORM hook that runs before creating a new record
func (e *DunningExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for the DunningExecution model
func (DunningExecution) TableName() string {
	return "dunning_executions"
}

// StartExecutionRequest represents the request to start a dunning execution
type StartExecutionRequest struct {
	CampaignID        string         `json:"campaign_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	SubscriptionID    string         `json:"subscription_id" binding:"required" example:"sub_9f81"`
	CustomerID        string         `json:"customer_id" binding:"required" example:"cus_7ab2"`
	InvoiceID         *string        `json:"invoice_id" example:"inv_5510"`
	OutstandingAmount int64          `json:"outstanding_amount" binding:"required,min=1" example:"5000"`
	Metadata          datatypes.JSON `json:"metadata"`
}

// RecordPaymentRequest represents a recovered payment applied to an execution
type RecordPaymentRequest struct {
	Amount int64 `json:"amount" binding:"required" example:"2500"`
}

// CancelExecutionRequest represents the request to cancel an execution
type CancelExecutionRequest struct {
	Reason     string `json:"reason" binding:"required" example:"customer paid via bank transfer"`
	CanceledBy string `json:"canceled_by" binding:"required" example:"ops@acme-corp"`
}

// ExecutionResponse represents the response for execution operations
type ExecutionResponse struct {
	ID                string              `json:"id" example:"550e8400-e29b-41d4-a716-446655440002"`
	CampaignID        string              `json:"campaign_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantID          string              `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	SubscriptionID    string              `json:"subscription_id" example:"sub_9f81"`
	CustomerID        string              `json:"customer_id" example:"cus_7ab2"`
	InvoiceID         *string             `json:"invoice_id,omitempty" example:"inv_5510"`
	Status            ExecutionStatus     `json:"status" example:"IN_PROGRESS"`
	CurrentStep       int                 `json:"current_step" example:"1"`
	TotalSteps        int                 `json:"total_steps" example:"3"`
	NextActionAt      *string             `json:"next_action_at,omitempty" example:"2025-01-12T10:30:00Z"`
	OutstandingAmount int64               `json:"outstanding_amount" example:"5000"`
	RecoveredAmount   int64               `json:"recovered_amount" example:"2500"`
	ExecutionLog      []ExecutionLogEntry `json:"execution_log"`
	CanceledReason    string              `json:"canceled_reason,omitempty"`
	CanceledBy        string              `json:"canceled_by,omitempty"`
	StartedAt         string              `json:"started_at" example:"2025-01-09T10:30:00Z"`
	CompletedAt       *string             `json:"completed_at,omitempty"`
	CreatedAt         string              `json:"created_at" example:"2025-01-09T10:30:00Z"`
	UpdatedAt         string              `json:"updated_at" example:"2025-01-09T10:30:00Z"`
}
