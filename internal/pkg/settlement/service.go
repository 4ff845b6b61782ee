package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/audit"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/entitlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/gateway"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/notify"
)

// DefaultPendingTimeout is how long a gateway_pending intent may wait for a
// callback before the sweep expires it.
const DefaultPendingTimeout = 5 * time.Minute

const sweepBatchSize = 100

// GatewayClient is the charge-initiation surface the engine depends on.
type GatewayClient interface {
	InitiateCharge(ctx context.Context, in gateway.ChargeRequest) (*gateway.ChargeResponse, error)
}

// Service orchestrates payment intents, callback reconciliation and
// entitlement mutation. All cross-request invariants are enforced through
// the repository's conditional updates and unique constraints; the service
// holds no in-process locks because callbacks arrive from processes it does
// not control.
type Service struct {
	repo           Repository
	graph          *entitlement.Graph
	gateway        GatewayClient
	notifier       notify.Notifier
	pendingTimeout time.Duration
}

// NewService wires a settlement service from its collaborators.
func NewService(repo Repository, graph *entitlement.Graph, gw GatewayClient, notifier notify.Notifier) *Service {
	return &Service{
		repo:           repo,
		graph:          graph,
		gateway:        gw,
		notifier:       notifier,
		pendingTimeout: DefaultPendingTimeout,
	}
}

// NewServiceFromDB builds the production service on a GORM handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), entitlement.DefaultGraph(), gateway.NewClientFromEnv(), notify.NewFromEnv())
}

// SetPendingTimeout overrides the expiry sweep timeout.
func (s *Service) SetPendingTimeout(d time.Duration) {
	if d > 0 {
		s.pendingTimeout = d
	}
}

// PendingTimeout returns the configured expiry timeout.
func (s *Service) PendingTimeout() time.Duration {
	return s.pendingTimeout
}

// CreateIntent validates the request and creates the invoice and payment
// intent in one transaction. No external call happens here, so a failed
// gateway initiation can re-use the same intent.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*models.PaymentIntent, error) {
	if !models.ValidIntentKind(in.Kind) {
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown payment kind %q", in.Kind)}
	}
	if err := validator.New().Struct(in); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}
	if err := s.validateTarget(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invoice, err := s.resolveInvoice(in, now)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:             uuid.NewString(),
		TenantID:       in.TenantID,
		InvoiceID:      invoice.ID,
		Kind:           in.Kind,
		Amount:         in.Amount,
		Currency:       strings.ToUpper(in.Currency),
		TargetPlanID:   in.TargetPlanID,
		TargetModuleID: in.TargetModuleID,
		BillingCycle:   in.BillingCycle,
		Phone:          in.Phone,
		Status:         models.IntentStatusCreated,
	}

	err = s.repo.Transact(func(tx Repository) error {
		if invoice.CreatedAt.IsZero() {
			if err := tx.CreateInvoice(invoice); err != nil {
				return err
			}
		}
		if err := tx.CreateIntent(intent); err != nil {
			return err
		}
		return tx.RecordAudit(audit.Event(
			in.TenantID, in.Actor, audit.ActionIntentCreated,
			audit.EntityPaymentIntent, intent.ID, nil, intent,
		))
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (s *Service) validateTarget(in CreateIntentInput) error {
	switch in.Kind {
	case models.IntentKindAddonPurchase:
		if in.TargetModuleID == "" {
			return &ValidationError{Field: "target_module_id", Message: "required for addon purchases"}
		}
		if !s.graph.Has(in.TargetModuleID) {
			return &ValidationError{Field: "target_module_id", Message: fmt.Sprintf("unknown module %q", in.TargetModuleID)}
		}
		states, err := s.repo.GetEntitlements(in.TenantID, false)
		if err != nil {
			return err
		}
		for _, st := range states {
			if st.ModuleID == in.TargetModuleID && st.IsEnabled {
				return &ValidationError{Field: "target_module_id", Message: fmt.Sprintf("module %q is already enabled", in.TargetModuleID)}
			}
		}
	case models.IntentKindPlanUpgrade:
		if !entitlement.ValidPlan(in.TargetPlanID) {
			return &ValidationError{Field: "target_plan_id", Message: fmt.Sprintf("unknown plan %q", in.TargetPlanID)}
		}
		if !models.ValidBillingCycle(in.BillingCycle) {
			return &ValidationError{Field: "billing_cycle", Message: "required for plan upgrades"}
		}
	case models.IntentKindRenewal:
		if !models.ValidBillingCycle(in.BillingCycle) {
			return &ValidationError{Field: "billing_cycle", Message: "required for renewals"}
		}
	}
	return nil
}

func (s *Service) resolveInvoice(in CreateIntentInput, now time.Time) (*models.Invoice, error) {
	if in.InvoiceID != "" {
		invoice, err := s.repo.GetInvoice(in.InvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ValidationError{Field: "invoice_id", Message: "invoice not found"}
			}
			return nil, err
		}
		if invoice.TenantID != in.TenantID {
			return nil, &ValidationError{Field: "invoice_id", Message: "invoice belongs to another tenant"}
		}
		if invoice.Status != models.InvoiceStatusPending {
			return nil, &ValidationError{Field: "invoice_id", Message: fmt.Sprintf("invoice is %s, only pending invoices can be re-attempted", invoice.Status)}
		}
		if invoice.TotalAmount != in.Amount {
			return nil, &ValidationError{Field: "amount", Message: "amount does not match the invoice total"}
		}
		return invoice, nil
	}

	cycle := in.BillingCycle
	if cycle == "" {
		cycle = models.BillingCycleMonth
	}
	invoice := &models.Invoice{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Type:        invoiceTypeForKind(in.Kind),
		PeriodStart: now,
		PeriodEnd:   cyclePeriod(now, cycle),
		TotalAmount: in.Amount,
		Currency:    strings.ToUpper(in.Currency),
		Status:      models.InvoiceStatusPending,
	}
	if err := invoice.SetLineItems([]models.InvoiceLineItem{{
		Description: lineItemDescription(in),
		Quantity:    1,
		UnitAmount:  in.Amount,
	}}); err != nil {
		return nil, err
	}
	return invoice, nil
}

func invoiceTypeForKind(kind string) string {
	switch kind {
	case models.IntentKindAddonPurchase:
		return models.InvoiceTypeAddon
	case models.IntentKindRenewal:
		return models.InvoiceTypeRenewal
	default:
		return models.InvoiceTypeSubscription
	}
}

func lineItemDescription(in CreateIntentInput) string {
	switch in.Kind {
	case models.IntentKindAddonPurchase:
		return fmt.Sprintf("Add-on module: %s", in.TargetModuleID)
	case models.IntentKindRenewal:
		return fmt.Sprintf("Subscription renewal (%s)", in.BillingCycle)
	default:
		return fmt.Sprintf("Plan upgrade to %s (%s)", in.TargetPlanID, in.BillingCycle)
	}
}

// Initiate sends the charge request to the gateway and moves the intent to
// gateway_pending. Transport failures leave the intent re-initiable and
// surface ErrGatewayUnavailable; definitive rejections fail the intent.
func (s *Service) Initiate(ctx context.Context, intentID string) (string, error) {
	intent, err := s.repo.GetIntent(intentID)
	if err != nil {
		return "", err
	}
	if intent.Status != models.IntentStatusCreated {
		return "", fmt.Errorf("%w: status is %s", ErrInvalidIntentState, intent.Status)
	}

	resp, err := s.gateway.InitiateCharge(ctx, gateway.ChargeRequest{
		Phone:            intent.Phone,
		Amount:           intent.Amount,
		Currency:         intent.Currency,
		AccountReference: intent.InvoiceID,
		Description:      fmt.Sprintf("%s payment", intent.Kind),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			// No acknowledgment from the gateway: keep the intent as
			// created so the caller may retry initiation.
			return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		if failErr := s.failIntent(intent, models.FailureReasonGatewayRejected, err); failErr != nil {
			return "", failErr
		}
		s.notifyPaymentFailed(intent, models.FailureReasonGatewayRejected)
		return "", fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	before := *intent
	now := time.Now().UTC()
	err = s.repo.Transact(func(tx Repository) error {
		applied, err := tx.MarkIntentGatewayPending(intent.ID, resp.CheckoutRequestID, now)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: intent %s left created state concurrently", ErrInvalidIntentState, intent.ID)
		}
		intent.Status = models.IntentStatusGatewayPending
		intent.GatewayReference = resp.CheckoutRequestID
		intent.InitiatedAt = &now
		return tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionIntentInitiated,
			audit.EntityPaymentIntent, intent.ID, before, intent,
		))
	})
	if err != nil {
		return "", err
	}
	return resp.CheckoutRequestID, nil
}

// HandleCallback reconciles one asynchronous gateway result. It is safe
// under duplicate, late and concurrent delivery: the conditional settle
// update and the ledger unique constraint guarantee at most one ledger
// effect per gateway reference. A nil return means the callback may be
// acknowledged; a non-nil return means a transient failure the gateway
// should redeliver.
func (s *Service) HandleCallback(ctx context.Context, ev *gateway.CallbackEvent) (*CallbackOutcome, error) {
	intent, err := s.repo.GetIntentByGatewayReference(ev.GatewayReference)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			// Never solicit a redelivery for data that will never exist.
			log.Infof("[Settlement] callback for unknown reference %s acknowledged", ev.GatewayReference)
			return &CallbackOutcome{Unknown: true}, nil
		}
		return nil, err
	}

	if intent.IsTerminal() {
		log.Infof("[Settlement] duplicate callback for intent %s (status %s)", intent.ID, intent.Status)
		return &CallbackOutcome{IntentID: intent.ID, Duplicate: true}, nil
	}

	if !ev.Success {
		return s.settleFailure(intent, ev)
	}
	return s.settleSuccess(intent, ev)
}

func (s *Service) settleSuccess(intent *models.PaymentIntent, ev *gateway.CallbackEvent) (*CallbackOutcome, error) {
	now := time.Now().UTC()
	before := *intent
	var changedModules []string

	err := s.repo.Transact(func(tx Repository) error {
		applied, err := tx.MarkIntentSettled(intent.ID, now)
		if err != nil {
			return err
		}
		if !applied {
			return errNoopAlreadyTerminal
		}
		intent.Status = models.IntentStatusSettled
		intent.SettledAt = &now

		entry := &models.LedgerEntry{
			ID:              uuid.NewString(),
			TenantID:        intent.TenantID,
			PaymentIntentID: intent.ID,
			Amount:          intent.Amount,
			Currency:        intent.Currency,
			ExternalReceipt: ev.ExternalReceipt,
			RecordedAt:      now,
		}
		created, err := tx.CreateLedgerEntryIfAbsent(entry)
		if err != nil {
			return err
		}
		if !created {
			return errNoopDuplicateLedger
		}

		invoicePaid, err := tx.MarkInvoicePaid(intent.InvoiceID, now)
		if err != nil {
			return err
		}

		changedModules, err = s.applyEntitlementEffect(tx, intent, now)
		if err != nil {
			return err
		}

		if err := tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionLedgerEntryRecorded,
			audit.EntityLedgerEntry, entry.ID, nil, entry,
		)); err != nil {
			return err
		}
		if invoicePaid {
			if err := tx.RecordAudit(audit.Event(
				intent.TenantID, models.ActorSettlement, audit.ActionInvoicePaid,
				audit.EntityInvoice, intent.InvoiceID, nil, map[string]any{"status": models.InvoiceStatusPaid, "paid_at": now},
			)); err != nil {
				return err
			}
		}
		return tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionIntentSettled,
			audit.EntityPaymentIntent, intent.ID, before, intent,
		))
	})

	switch {
	case err == nil:
		s.notifyPaymentSettled(intent, ev, changedModules)
		return &CallbackOutcome{IntentID: intent.ID, Applied: true}, nil
	case errors.Is(err, errNoopAlreadyTerminal), errors.Is(err, errNoopDuplicateLedger):
		log.Infof("[Settlement] callback no-op for intent %s: %v", intent.ID, err)
		return &CallbackOutcome{IntentID: intent.ID, Duplicate: true}, nil
	default:
		var conflict *EntitlementConflictError
		if errors.As(err, &conflict) {
			// The settle mutations above were rolled back; the audit trail
			// must snapshot the intent as it was before the transaction.
			*intent = before
			return s.settleConflict(intent, conflict)
		}
		return nil, err
	}
}

// settleConflict records the rolled-back settlement: the money was not
// accepted (no ledger row survived) and the intent is failed for manual
// reconciliation. Keeping a tenant's money without granting the paid-for
// entitlement would be unacceptable, as would granting it over a failed
// dependency check.
func (s *Service) settleConflict(intent *models.PaymentIntent, conflict *EntitlementConflictError) (*CallbackOutcome, error) {
	err := s.repo.Transact(func(tx Repository) error {
		applied, err := tx.MarkIntentFailed(intent.ID, models.FailureReasonEntitlementConflict)
		if err != nil {
			return err
		}
		if !applied {
			return errNoopAlreadyTerminal
		}
		return tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionSettlementConflict,
			audit.EntityPaymentIntent, intent.ID, intent,
			map[string]any{"failure_reason": models.FailureReasonEntitlementConflict, "conflict": conflict.Error()},
		))
	})
	if err != nil && !errors.Is(err, errNoopAlreadyTerminal) {
		return nil, err
	}
	log.Errorf("[Settlement] entitlement conflict on intent %s flagged for manual review: %v", intent.ID, conflict)
	s.notifyPaymentFailed(intent, models.FailureReasonEntitlementConflict)
	return &CallbackOutcome{IntentID: intent.ID, Applied: true}, nil
}

func (s *Service) settleFailure(intent *models.PaymentIntent, ev *gateway.CallbackEvent) (*CallbackOutcome, error) {
	before := *intent
	err := s.repo.Transact(func(tx Repository) error {
		applied, err := tx.MarkIntentFailed(intent.ID, models.FailureReasonChargeDeclined)
		if err != nil {
			return err
		}
		if !applied {
			return errNoopAlreadyTerminal
		}
		intent.Status = models.IntentStatusFailed
		intent.FailureReason = models.FailureReasonChargeDeclined
		return tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionIntentFailed,
			audit.EntityPaymentIntent, intent.ID, before,
			map[string]any{"status": models.IntentStatusFailed, "result_code": ev.ResultCode, "result_description": ev.ResultDescription},
		))
	})
	if err != nil {
		if errors.Is(err, errNoopAlreadyTerminal) {
			return &CallbackOutcome{IntentID: intent.ID, Duplicate: true}, nil
		}
		return nil, err
	}
	s.notifyPaymentFailed(intent, models.FailureReasonChargeDeclined)
	return &CallbackOutcome{IntentID: intent.ID, Applied: true}, nil
}

// applyEntitlementEffect grants what the intent paid for. The dependency
// check and the entitlement writes share the caller's transaction; a
// validation failure rolls the whole settlement back.
func (s *Service) applyEntitlementEffect(tx Repository, intent *models.PaymentIntent, now time.Time) ([]string, error) {
	states, err := tx.GetEntitlements(intent.TenantID, true)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(states))
	for _, st := range states {
		if st.IsEnabled {
			enabled[st.ModuleID] = true
		}
	}

	expiry := s.entitlementExpiry(intent, now)

	switch intent.Kind {
	case models.IntentKindAddonPurchase:
		if enabled[intent.TargetModuleID] {
			// Already granted (e.g. manually, while the charge was pending).
			return nil, nil
		}
		if err := s.graph.CanActivate(intent.TargetModuleID, enabled); err != nil {
			return nil, &EntitlementConflictError{IntentID: intent.ID, Cause: err}
		}
		if err := s.activateModule(tx, intent.TenantID, intent.TargetModuleID, models.ActivationTypeAddon, now, expiry); err != nil {
			return nil, err
		}
		return []string{intent.TargetModuleID}, nil

	case models.IntentKindPlanUpgrade:
		planModules := entitlement.PlanModules(entitlement.Plan(intent.TargetPlanID))
		var changed []string
		for _, moduleID := range s.graph.ActivationOrder(planModules) {
			if enabled[moduleID] {
				continue
			}
			if err := s.graph.CanActivate(moduleID, enabled); err != nil {
				return nil, &EntitlementConflictError{IntentID: intent.ID, Cause: err}
			}
			if err := s.activateModule(tx, intent.TenantID, moduleID, models.ActivationTypePlanIncluded, now, expiry); err != nil {
				return nil, err
			}
			enabled[moduleID] = true
			changed = append(changed, moduleID)
		}
		if err := tx.UpdateTenantPlan(intent.TenantID, string(entitlement.NormalizePlan(intent.TargetPlanID))); err != nil {
			return nil, err
		}
		return changed, nil

	case models.IntentKindRenewal:
		var extended []string
		for _, st := range states {
			if !st.IsEnabled || st.ExpiresAt == nil {
				continue
			}
			base := now
			if st.ExpiresAt.After(now) {
				base = *st.ExpiresAt
			}
			if err := tx.ExtendEntitlementExpiry(intent.TenantID, st.ModuleID, cyclePeriod(base, intent.BillingCycle)); err != nil {
				return nil, err
			}
			extended = append(extended, st.ModuleID)
		}
		return extended, nil
	}
	return nil, nil
}

func (s *Service) entitlementExpiry(intent *models.PaymentIntent, now time.Time) *time.Time {
	if intent.BillingCycle == "" {
		return nil
	}
	t := cyclePeriod(now, intent.BillingCycle)
	return &t
}

func (s *Service) activateModule(tx Repository, tenantID uint, moduleID, activationType string, now time.Time, expiresAt *time.Time) error {
	state := &models.EntitlementState{
		TenantID:       tenantID,
		ModuleID:       moduleID,
		IsEnabled:      true,
		ActivationType: activationType,
		ActivatedAt:    &now,
		ExpiresAt:      expiresAt,
	}
	if err := tx.UpsertEntitlement(state); err != nil {
		return err
	}
	return tx.RecordAudit(audit.Event(
		tenantID, models.ActorSettlement, audit.ActionModuleActivated,
		audit.EntityEntitlement, moduleID,
		map[string]any{"is_enabled": false}, state,
	))
}

// ExpireStalePending moves gateway_pending intents older than the timeout
// to expired. Ledger and entitlements are never touched: a late success
// callback after expiry is swallowed by the idempotency guard.
func (s *Service) ExpireStalePending(now time.Time) (int, error) {
	cutoff := now.Add(-s.pendingTimeout)
	stale, err := s.repo.ListStalePendingIntents(cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		intent := stale[i]
		err := s.repo.Transact(func(tx Repository) error {
			applied, err := tx.MarkIntentExpired(intent.ID)
			if err != nil {
				return err
			}
			if !applied {
				// Settled or failed between the list and the update.
				return nil
			}
			expired++
			before := intent
			after := intent
			after.Status = models.IntentStatusExpired
			return tx.RecordAudit(audit.Event(
				intent.TenantID, models.ActorSettlement, audit.ActionIntentExpired,
				audit.EntityPaymentIntent, intent.ID, before, after,
			))
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// ActivateModule is the administrative activation path. The guard and the
// write share one transaction; rejected attempts are audited and surfaced.
func (s *Service) ActivateModule(ctx context.Context, tenantID uint, moduleID, actor string) error {
	if !s.graph.Has(moduleID) {
		return &entitlement.UnknownModuleError{ModuleID: moduleID}
	}
	var guardErr error
	err := s.repo.Transact(func(tx Repository) error {
		states, err := tx.GetEntitlements(tenantID, true)
		if err != nil {
			return err
		}
		enabled := make(map[string]bool, len(states))
		for _, st := range states {
			if st.IsEnabled {
				enabled[st.ModuleID] = true
			}
		}
		if enabled[moduleID] {
			return nil
		}
		if err := s.graph.CanActivate(moduleID, enabled); err != nil {
			guardErr = err
			// Commit only the audit trail of the rejected attempt.
			return tx.RecordAudit(audit.Event(
				tenantID, actor, audit.ActionModuleChangeRejected,
				audit.EntityEntitlement, moduleID, nil,
				map[string]any{"operation": "activate", "reason": err.Error()},
			))
		}
		now := time.Now().UTC()
		if err := s.activateModuleAs(tx, tenantID, moduleID, actor, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if guardErr != nil {
		return guardErr
	}
	notify.Dispatch(s.notifier, tenantID, notify.EventEntitlementChanged, map[string]any{
		"module_id": moduleID,
		"enabled":   true,
	})
	return nil
}

func (s *Service) activateModuleAs(tx Repository, tenantID uint, moduleID, actor string, now time.Time) error {
	state := &models.EntitlementState{
		TenantID:       tenantID,
		ModuleID:       moduleID,
		IsEnabled:      true,
		ActivationType: models.ActivationTypeManual,
		ActivatedAt:    &now,
	}
	if err := tx.UpsertEntitlement(state); err != nil {
		return err
	}
	return tx.RecordAudit(audit.Event(
		tenantID, actor, audit.ActionModuleActivated,
		audit.EntityEntitlement, moduleID,
		map[string]any{"is_enabled": false}, state,
	))
}

// DeactivateModule disables a module unless an enabled module still
// requires it. Rejections are audited with the blocking dependents.
func (s *Service) DeactivateModule(ctx context.Context, tenantID uint, moduleID, actor string) error {
	if !s.graph.Has(moduleID) {
		return &entitlement.UnknownModuleError{ModuleID: moduleID}
	}
	var guardErr error
	err := s.repo.Transact(func(tx Repository) error {
		states, err := tx.GetEntitlements(tenantID, true)
		if err != nil {
			return err
		}
		enabled := make(map[string]bool, len(states))
		var current *models.EntitlementState
		for i, st := range states {
			if st.IsEnabled {
				enabled[st.ModuleID] = true
			}
			if st.ModuleID == moduleID {
				current = &states[i]
			}
		}
		if current == nil || !current.IsEnabled {
			return nil
		}
		if err := s.graph.CanDeactivate(moduleID, enabled); err != nil {
			guardErr = err
			return tx.RecordAudit(audit.Event(
				tenantID, actor, audit.ActionModuleChangeRejected,
				audit.EntityEntitlement, moduleID, current,
				map[string]any{"operation": "deactivate", "reason": err.Error()},
			))
		}
		before := *current
		next := *current
		next.IsEnabled = false
		if err := tx.UpsertEntitlement(&next); err != nil {
			return err
		}
		return tx.RecordAudit(audit.Event(
			tenantID, actor, audit.ActionModuleDeactivated,
			audit.EntityEntitlement, moduleID, before, next,
		))
	})
	if err != nil {
		return err
	}
	if guardErr != nil {
		return guardErr
	}
	notify.Dispatch(s.notifier, tenantID, notify.EventEntitlementChanged, map[string]any{
		"module_id": moduleID,
		"enabled":   false,
	})
	return nil
}

// Graph returns the static module dependency configuration.
func (s *Service) Graph() *entitlement.Graph {
	return s.graph
}

// TenantEntitlements returns the tenant's entitlement rows for display.
func (s *Service) TenantEntitlements(tenantID uint) ([]models.EntitlementState, error) {
	return s.repo.GetEntitlements(tenantID, false)
}

// GetIntent exposes intent lookup for status polling.
func (s *Service) GetIntent(intentID string) (*models.PaymentIntent, error) {
	return s.repo.GetIntent(intentID)
}

func (s *Service) failIntent(intent *models.PaymentIntent, reason string, cause error) error {
	before := *intent
	return s.repo.Transact(func(tx Repository) error {
		applied, err := tx.MarkIntentFailed(intent.ID, reason)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		intent.Status = models.IntentStatusFailed
		intent.FailureReason = reason
		return tx.RecordAudit(audit.Event(
			intent.TenantID, models.ActorSettlement, audit.ActionIntentFailed,
			audit.EntityPaymentIntent, intent.ID, before,
			map[string]any{"status": models.IntentStatusFailed, "failure_reason": reason, "cause": cause.Error()},
		))
	})
}

func (s *Service) notifyPaymentSettled(intent *models.PaymentIntent, ev *gateway.CallbackEvent, changedModules []string) {
	notify.Dispatch(s.notifier, intent.TenantID, notify.EventPaymentSettled, map[string]any{
		"intent_id":        intent.ID,
		"invoice_id":       intent.InvoiceID,
		"amount":           intent.Amount,
		"currency":         intent.Currency,
		"external_receipt": ev.ExternalReceipt,
	})
	if len(changedModules) > 0 {
		notify.Dispatch(s.notifier, intent.TenantID, notify.EventEntitlementChanged, map[string]any{
			"intent_id": intent.ID,
			"modules":   changedModules,
		})
	}
}

func (s *Service) notifyPaymentFailed(intent *models.PaymentIntent, reason string) {
	notify.Dispatch(s.notifier, intent.TenantID, notify.EventPaymentFailed, map[string]any{
		"intent_id":  intent.ID,
		"invoice_id": intent.InvoiceID,
		"reason":     reason,
	})
}
