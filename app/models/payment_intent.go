package models

import "time"

// Payment intent kinds.
const (
	IntentKindPlanUpgrade   = "plan_upgrade"
	IntentKindAddonPurchase = "addon_purchase"
	IntentKindRenewal       = "renewal"
)

// Payment intent statuses. Settled, failed and expired are terminal; an
// intent never leaves a terminal status.
const (
	IntentStatusCreated        = "created"
	IntentStatusGatewayPending = "gateway_pending"
	IntentStatusSettled        = "settled"
	IntentStatusFailed         = "failed"
	IntentStatusExpired        = "expired"
)

// Billing cycles accepted on plan upgrades and renewals.
const (
	BillingCycleMonth = "month"
	BillingCycleYear  = "year"
)

// Failure reasons stored on failed intents.
const (
	FailureReasonGatewayRejected     = "gateway_rejected"
	FailureReasonGatewayUnavailable  = "gateway_unavailable"
	FailureReasonChargeDeclined      = "charge_declined"
	FailureReasonEntitlementConflict = "entitlement_conflict"
)

// PaymentIntent is one attempt to collect money from a tenant via the
// external mobile-money gateway. GatewayReference is the idempotency key
// for callback processing; its unique index is load-bearing.
type PaymentIntent struct {
	ID               string     `gorm:"primaryKey;type:char(36)" json:"id"`
	TenantID         uint       `gorm:"not null;index" json:"tenant_id"`
	InvoiceID        string     `gorm:"type:char(36);not null;index" json:"invoice_id"`
	Kind             string     `gorm:"type:varchar(32);not null" json:"kind"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"type:char(3);not null" json:"currency"`
	TargetPlanID     string     `gorm:"type:varchar(50);default:''" json:"target_plan_id,omitempty"`
	TargetModuleID   string     `gorm:"type:varchar(50);default:''" json:"target_module_id,omitempty"`
	BillingCycle     string     `gorm:"type:varchar(16);default:''" json:"billing_cycle,omitempty"`
	Phone            string     `gorm:"type:varchar(20);default:''" json:"-"`
	GatewayReference string     `gorm:"type:varchar(100);default:null;index:ux_payment_intents_gateway_ref,unique" json:"gateway_reference,omitempty"`
	Status           string     `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	FailureReason    string     `gorm:"type:varchar(50);default:''" json:"failure_reason,omitempty"`
	InitiatedAt      *time.Time `gorm:"type:timestamp;default:null" json:"initiated_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	SettledAt        *time.Time `gorm:"type:timestamp;default:null" json:"settled_at,omitempty"`
}

// TerminalIntentStatuses lists the statuses an intent can never leave.
func TerminalIntentStatuses() []string {
	return []string{IntentStatusSettled, IntentStatusFailed, IntentStatusExpired}
}

// IsTerminal reports whether the intent has reached a terminal status.
func (p *PaymentIntent) IsTerminal() bool {
	switch p.Status {
	case IntentStatusSettled, IntentStatusFailed, IntentStatusExpired:
		return true
	default:
		return false
	}
}

// ValidIntentKind reports whether kind is a known payment intent kind.
func ValidIntentKind(kind string) bool {
	switch kind {
	case IntentKindPlanUpgrade, IntentKindAddonPurchase, IntentKindRenewal:
		return true
	default:
		return false
	}
}

// ValidBillingCycle reports whether cycle is a known billing cycle.
func ValidBillingCycle(cycle string) bool {
	return cycle == BillingCycleMonth || cycle == BillingCycleYear
}
