package settlement

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced to callers.
var (
	// ErrIntentNotFound means no payment intent matches the given id.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrInvalidIntentState means the intent exists but is not in a state
	// the requested operation accepts.
	ErrInvalidIntentState = errors.New("payment intent is not in a valid state for this operation")
	// ErrGatewayUnavailable means charge initiation could not complete at
	// the transport level. The intent stays re-initiable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the gateway answered with a definitive
	// rejection. The intent is failed; the user must create a new one.
	ErrGatewayRejected = errors.New("payment gateway rejected the charge")
)

// Internal no-op markers for duplicate or late callbacks. They roll the
// settlement transaction back without reporting an error to the gateway.
var (
	errNoopAlreadyTerminal = errors.New("intent already in a terminal state")
	errNoopDuplicateLedger = errors.New("ledger entry already recorded for intent")
)

// ValidationError rejects a request before any external side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// EntitlementConflictError marks a settlement whose entitlement application
// failed dependency validation. The settlement transaction is rolled back
// and the intent failed for manual reconciliation.
type EntitlementConflictError struct {
	IntentID string
	Cause    error
}

func (e *EntitlementConflictError) Error() string {
	return fmt.Sprintf("entitlement conflict settling intent %s: %v", e.IntentID, e.Cause)
}

func (e *EntitlementConflictError) Unwrap() error {
	return e.Cause
}

// CreateIntentInput is the request to collect money from a tenant.
type CreateIntentInput struct {
	TenantID       uint   `validate:"required"`
	Kind           string `validate:"required,oneof=plan_upgrade addon_purchase renewal"`
	Amount         int64  `validate:"required,gt=0"`
	Currency       string `validate:"required,len=3"`
	TargetPlanID   string `validate:"max=50"`
	TargetModuleID string `validate:"max=50"`
	BillingCycle   string `validate:"omitempty,oneof=month year"`
	Phone          string `validate:"required,min=9,max=15"`
	InvoiceID      string `validate:"omitempty,uuid"`
	Actor          string `validate:"required"`
}

// CallbackOutcome summarizes how a callback was applied, for logging and
// the webhook acknowledgment.
type CallbackOutcome struct {
	IntentID  string
	Applied   bool
	Duplicate bool
	Unknown   bool
}

func cyclePeriod(start time.Time, cycle string) time.Time {
	if cycle == "year" {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
