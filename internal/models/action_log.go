package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DunningActionLog is the audit record for one attempted step. One row per
// attempt the executor actually dispatched, insert-only, never updated.
type DunningActionLog struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	ExecutionID string `json:"execution_id" gorm:"not null;index;type:uuid"`
	CampaignID  string `json:"campaign_id" gorm:"not null;index;type:uuid"`
	TenantID    string `json:"tenant_id" gorm:"not null;index;type:uuid"`

	Step       int        `json:"step" gorm:"not null"`
	ActionType ActionKind `json:"action_type" gorm:"type:varchar(50);not null"`

	// Snapshot of the handler config the step ran with
	Config JSON `json:"config" gorm:"type:jsonb"`

	Status        string         `json:"status" gorm:"type:varchar(20);not null;index"`
	Attempts      int            `json:"attempts" gorm:"default:1"`
	ErrorMessage  string         `json:"error_message,omitempty" gorm:"type:text"`
	ExternalID    string         `json:"external_id,omitempty" gorm:"type:varchar(255)"`
	ResultPayload datatypes.JSON `json:"result_payload,omitempty" gorm:"type:jsonb"`

	ExecutedAt time.Time `json:"executed_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`

	// Relationships
	Execution DunningExecution `json:"-" gorm:"foreignKey:ExecutionID;references:ID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate is a GORM hook that runs before creating a new record
func (l *DunningActionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for the DunningActionLog model
func (DunningActionLog) TableName() string {
	return "dunning_action_logs"
}

// ActionLogResponse represents the response for action log queries
type ActionLogResponse struct {
	ID           string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440003"`
	ExecutionID  string     `json:"execution_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	CampaignID   string     `json:"campaign_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Step         int        `json:"step" example:"0"`
	ActionType   ActionKind `json:"action_type" example:"notify-email"`
	Status       string     `json:"status" example:"success"`
	Attempts     int        `json:"attempts" example:"1"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExternalID   string     `json:"external_id,omitempty" example:"msg_01HX"`
	ExecutedAt   string     `json:"executed_at" example:"2025-01-09T10:30:00Z"`
}
