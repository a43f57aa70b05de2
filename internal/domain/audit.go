package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditLogEntry struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     *uuid.UUID     `json:"userId" gorm:"type:uuid;index"`
	Role       Role           `json:"role" gorm:"type:varchar(20)"`
	Action     string         `json:"action" gorm:"type:varchar(20);not null;index"`
	Resource   string         `json:"resource" gorm:"not null;index"`
	ResourceID string         `json:"resourceId"`
	Method     string         `json:"method" gorm:"type:varchar(10)"`
	Path       string         `json:"path"`
	StatusCode int            `json:"statusCode"`
	IP         string         `json:"ip"`
	UserAgent  string         `json:"userAgent"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"index"`
}

func (AuditLogEntry) TableName() string {
	return "audit_log_entries"
}
