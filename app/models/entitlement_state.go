package models

import "time"

// Activation types recorded on entitlement states.
const (
	ActivationTypePlanIncluded = "plan_included"
	ActivationTypeManual       = "manual"
	ActivationTypeAddon        = "addon"
	ActivationTypeTrial        = "trial"
)

// EntitlementState is the per-tenant, per-module activation record.
// Invariant: if IsEnabled is true for a module, every module it requires is
// also enabled for that tenant; both activation and deactivation are
// validated against the dependency graph in the same transaction as the
// write.
type EntitlementState struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TenantID       uint       `gorm:"not null;index:ux_entitlement_states_tenant_module,unique,priority:1" json:"tenant_id"`
	ModuleID       string     `gorm:"type:varchar(50);not null;index:ux_entitlement_states_tenant_module,unique,priority:2" json:"module_id"`
	IsEnabled      bool       `gorm:"not null;default:false;index" json:"is_enabled"`
	ActivationType string     `gorm:"type:varchar(20);not null;default:'manual'" json:"activation_type"`
	ActivatedAt    *time.Time `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
