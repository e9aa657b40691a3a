package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records one mutating action. Rows are append-only.
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"type:varchar(64);index" json:"actorId"`
	Action     string            `gorm:"type:varchar(80);not null;index" json:"action"`
	EntityType string            `gorm:"type:varchar(80);not null;index:idx_audit_entity" json:"entityType"`
	EntityID   string            `gorm:"type:varchar(64);index:idx_audit_entity" json:"entityId"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
}
