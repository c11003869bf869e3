package model

import (
	"time"
)

type AuditLog struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ActorID      *int64    `gorm:"index" json:"actor_id,omitempty"`
	Action       string    `gorm:"size:64;not null;index" json:"action"`
	ResourceType string    `gorm:"size:32" json:"resource_type"`
	ResourceID   string    `gorm:"size:64;index" json:"resource_id"`
	Details      string    `gorm:"type:text" json:"details,omitempty"` // JSON
	CreatedAt    time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
