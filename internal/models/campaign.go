package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionKind identifies the handler that executes a campaign step
type ActionKind string

const (
	ActionNotifyEmail      ActionKind = "notify-email"
	ActionNotifySMS        ActionKind = "notify-sms"
	ActionSuspendService   ActionKind = "suspend-service"
	ActionTerminateService ActionKind = "terminate-service"
	ActionCallWebhook      ActionKind = "call-webhook"
	ActionCustom           ActionKind = "custom"
)

// KnownActionKinds lists every action kind the executor can dispatch
var KnownActionKinds = []ActionKind{
	ActionNotifyEmail,
	ActionNotifySMS,
	ActionSuspendService,
	ActionTerminateService,
	ActionCallWebhook,
	ActionCustom,
}

// IsKnownActionKind reports whether kind maps to a registered handler family
func IsKnownActionKind(kind ActionKind) bool {
	for _, k := range KnownActionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CampaignAction is one step of a dunning campaign: what to do and how long
// to wait before it becomes due
type CampaignAction struct {
	Kind      ActionKind `json:"kind"`
	DelayDays int        `json:"delay_days"`
	Config    JSON       `json:"config,omitempty"`
}

// ActionList is an ordered action sequence stored as a jsonb column.
// Executions copy it by value at start so campaign edits never change a step
// under an in-flight execution.
type ActionList []CampaignAction

// Value implements driver.Valuer
func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *ActionList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ActionList column: %T", value)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// GormDataType tells GORM to map the type to jsonb
func (ActionList) GormDataType() string {
	return "jsonb"
}

// DunningCampaign represents a reusable collections workflow template
type DunningCampaign struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID    string `json:"tenant_id" gorm:"not null;index;type:uuid"`
	Name        string `json:"name" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`

	// Workflow definition
	TriggerAfterDays int        `json:"trigger_after_days" gorm:"default:0"`
	Actions          ActionList `json:"actions" gorm:"type:jsonb"`
	ExclusionRules   JSON       `json:"exclusion_rules" gorm:"type:jsonb"` // evaluated by the caller, never by the engine
	WebhookSecret    string     `json:"-" gorm:"type:varchar(255)"`

	// Policy hints consumed by handlers
	MaxRetries        int `json:"max_retries" gorm:"default:3"`
	RetryIntervalDays int `json:"retry_interval_days" gorm:"default:1"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`
	Priority int  `json:"priority" gorm:"default:0;index"`

	// Aggregate counters, incremented atomically by the engine on terminal
	// transitions
	TotalExecutions      int64 `json:"total_executions" gorm:"default:0"`
	SuccessfulExecutions int64 `json:"successful_executions" gorm:"default:0"`
	TotalRecoveredAmount int64 `json:"total_recovered_amount" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate is a GORM hook that runs before creating a new record
func (c *DunningCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for the DunningCampaign model
func (DunningCampaign) TableName() string {
	return "dunning_campaigns"
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name              string           `json:"name" binding:"required" example:"Standard dunning"`
	Description       string           `json:"description" example:"Email, suspend, terminate over 10 days"`
	TriggerAfterDays  int              `json:"trigger_after_days" binding:"min=0" example:"3"`
	Actions           []CampaignAction `json:"actions" binding:"required"`
	ExclusionRules    JSON             `json:"exclusion_rules"`
	WebhookSecret     string           `json:"webhook_secret"`
	MaxRetries        *int             `json:"max_retries" example:"3"`
	RetryIntervalDays *int             `json:"retry_interval_days" example:"1"`
	IsActive          *bool            `json:"is_active"`
	Priority          int              `json:"priority" example:"10"`
}

// UpdateCampaignRequest represents the request to update a campaign.
// Edits only affect executions started afterwards; running executions keep
// their snapshot of the action list.
type UpdateCampaignRequest struct {
	Name              string           `json:"name" binding:"required" example:"Standard dunning v2"`
	Description       string           `json:"description"`
	TriggerAfterDays  int              `json:"trigger_after_days" binding:"min=0" example:"3"`
	Actions           []CampaignAction `json:"actions" binding:"required"`
	ExclusionRules    JSON             `json:"exclusion_rules"`
	WebhookSecret     *string          `json:"webhook_secret"`
	MaxRetries        *int             `json:"max_retries"`
	RetryIntervalDays *int             `json:"retry_interval_days"`
	IsActive          *bool            `json:"is_active"`
	Priority          *int             `json:"priority"`
}

// CampaignResponse represents the response for campaign operations
type CampaignResponse struct {
	ID                   string           `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantID             string           `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Name                 string           `json:"name" example:"Standard dunning"`
	Description          string           `json:"description"`
	TriggerAfterDays     int              `json:"trigger_after_days" example:"3"`
	Actions              []CampaignAction `json:"actions"`
	ExclusionRules       JSON             `json:"exclusion_rules"`
	MaxRetries           int              `json:"max_retries" example:"3"`
	RetryIntervalDays    int              `json:"retry_interval_days" example:"1"`
	IsActive             bool             `json:"is_active" example:"true"`
	Priority             int              `json:"priority" example:"10"`
	TotalExecutions      int64            `json:"total_executions" example:"128"`
	SuccessfulExecutions int64            `json:"successful_executions" example:"97"`
	TotalRecoveredAmount int64            `json:"total_recovered_amount" example:"4815000"`
	CreatedAt            string           `json:"created_at" example:"2025-01-09T10:30:00Z"`
	UpdatedAt            string           `json:"updated_at" example:"2025-01-09T10:30:00Z"`
}
