package model

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// AuditRecord is an append-only log entry for one mutation. Rows are never
// updated or deleted.
type AuditRecord struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	TableName  string         `json:"table_name" gorm:"type:varchar(100);not null;index:idx_audit_entity"`
	RecordID   uint           `json:"record_id" gorm:"not null;index:idx_audit_entity"`
	Action     string         `json:"action" gorm:"type:varchar(20);not null"`
	OldValue   datatypes.JSON `json:"old_value,omitempty"`
	NewValue   datatypes.JSON `json:"new_value,omitempty"`
	ActorID    uint           `json:"actor_id" gorm:"not null;index"`
	ActorName  string         `json:"actor_name" gorm:"type:varchar(100)"`
	ClientInfo string         `json:"client_info" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index"`
}
