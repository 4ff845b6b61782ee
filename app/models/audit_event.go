package models

import "time"

// ActorSettlement is the actor recorded for system-driven settlement
// transitions (gateway callbacks, expiry sweeps).
const ActorSettlement = "system:settlement"

// AuditEvent is an immutable append-only log entry documenting a state
// transition. Events are written in the same transaction as the mutation
// they document and are never updated or deleted.
type AuditEvent struct {
	ID         string    `gorm:"primaryKey;type:char(36)" json:"id"`
	TenantID   uint      `gorm:"not null;index" json:"tenant_id"`
	Actor      string    `gorm:"type:varchar(100);not null" json:"actor"`
	Action     string    `gorm:"type:varchar(100);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(50);not null;index:idx_audit_events_entity,priority:1" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(100);not null;index:idx_audit_events_entity,priority:2" json:"entity_id"`
	BeforeJSON string    `gorm:"type:longtext" json:"before_json"`
	AfterJSON  string    `gorm:"type:longtext" json:"after_json"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`
}
