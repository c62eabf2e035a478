package models

import (
	"time"
)

// APIKey represents an API key for a tenant
type APIKey struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Key        string     `json:"key" gorm:"type:varchar(255);not null;unique;index"`
	TenantID   string     `json:"tenant_id" gorm:"not null;index;type:uuid"`
	IsActive   bool       `json:"is_active" gorm:"default:true;index"`
	LastUsedAt *time.Time `json:"last_used_at"`

	// Relationships
	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the APIKey model
func (APIKey) TableName() string {
	return "api_keys"
}
