package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
)

// Audited actions. Every financial or entitlement state change records one
// of these in the same transaction as the change itself.
const (
	ActionIntentCreated        = "payment_intent.created"
	ActionIntentInitiated      = "payment_intent.initiated"
	ActionIntentSettled        = "payment_intent.settled"
	ActionIntentFailed         = "payment_intent.failed"
	ActionIntentExpired        = "payment_intent.expired"
	ActionInvoicePaid          = "invoice.paid"
	ActionLedgerEntryRecorded  = "ledger_entry.recorded"
	ActionModuleActivated      = "entitlement.activated"
	ActionModuleDeactivated    = "entitlement.deactivated"
	ActionModuleChangeRejected = "entitlement.change_rejected"
	ActionSettlementConflict   = "settlement.entitlement_conflict"
)

// Entity types referenced by audit events.
const (
	EntityPaymentIntent = "payment_intent"
	EntityInvoice       = "invoice"
	EntityLedgerEntry   = "ledger_entry"
	EntityEntitlement   = "entitlement_state"
)

// Event builds an immutable audit record with JSON snapshots of the entity
// before and after the transition. Nil snapshots serialize as empty.
func Event(tenantID uint, actor, action, entityType, entityID string, before, after any) *models.AuditEvent {
	return &models.AuditEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: snapshot(before),
		AfterJSON:  snapshot(after),
		OccurredAt: time.Now().UTC(),
	}
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		// The snapshot is documentation; a marshal failure must not abort
		// the audited transaction.
		return `{"snapshot_error":"` + err.Error() + `"}`
	}
	return string(raw)
}
