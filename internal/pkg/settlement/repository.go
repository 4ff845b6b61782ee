package settlement

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
)

// Repository provides the DB operations used by the settlement service.
// Methods returning (bool, error) apply conditional updates and report
// whether any row changed; the settlement invariants lean on those
// conditions plus the unique constraints, not on check-then-act reads.
type Repository interface {
	// Transact runs fn inside one database transaction. The Repository
	// passed to fn operates on that transaction.
	Transact(fn func(tx Repository) error) error

	CreateInvoice(invoice *models.Invoice) error
	GetInvoice(id string) (*models.Invoice, error)
	MarkInvoicePaid(id string, paidAt time.Time) (bool, error)

	CreateIntent(intent *models.PaymentIntent) error
	GetIntent(id string) (*models.PaymentIntent, error)
	GetIntentByGatewayReference(ref string) (*models.PaymentIntent, error)
	MarkIntentGatewayPending(id, gatewayRef string, initiatedAt time.Time) (bool, error)
	MarkIntentSettled(id string, settledAt time.Time) (bool, error)
	MarkIntentFailed(id, reason string) (bool, error)
	MarkIntentExpired(id string) (bool, error)
	ListStalePendingIntents(cutoff time.Time, limit int) ([]models.PaymentIntent, error)

	CreateLedgerEntryIfAbsent(entry *models.LedgerEntry) (bool, error)

	GetEntitlements(tenantID uint, forUpdate bool) ([]models.EntitlementState, error)
	UpsertEntitlement(state *models.EntitlementState) error
	ExtendEntitlementExpiry(tenantID uint, moduleID string, expiresAt time.Time) error

	UpdateTenantPlan(tenantID uint, plan string) error

	RecordAudit(event *models.AuditEvent) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a settlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transact(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateInvoice(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *gormRepository) GetInvoice(id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) MarkInvoicePaid(id string, paidAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"status":  models.InvoiceStatusPaid,
			"paid_at": &paidAt,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CreateIntent(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

func (r *gormRepository) GetIntent(id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.Where("id = ?", id).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) GetIntentByGatewayReference(ref string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.Where("gateway_reference = ?", ref).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) MarkIntentGatewayPending(id, gatewayRef string, initiatedAt time.Time) (bool, error) {
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, models.IntentStatusCreated).
		Updates(map[string]interface{}{
			"status":            models.IntentStatusGatewayPending,
			"gateway_reference": gatewayRef,
			"initiated_at":      &initiatedAt,
		})
	return tx.RowsAffected > 0, tx.Error
}

// MarkIntentSettled is the idempotency guard: the WHERE clause excludes
// terminal statuses so two concurrent callbacks for one reference cannot
// both pass.
func (r *gormRepository) MarkIntentSettled(id string, settledAt time.Time) (bool, error) {
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, models.TerminalIntentStatuses()).
		Updates(map[string]interface{}{
			"status":     models.IntentStatusSettled,
			"settled_at": &settledAt,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) MarkIntentFailed(id, reason string) (bool, error) {
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, models.TerminalIntentStatuses()).
		Updates(map[string]interface{}{
			"status":         models.IntentStatusFailed,
			"failure_reason": reason,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) MarkIntentExpired(id string) (bool, error) {
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, models.IntentStatusGatewayPending).
		Update("status", models.IntentStatusExpired)
	return tx.RowsAffected > 0, tx.Error
}

// ListStalePendingIntents keys on the time of the pending transition, not
// creation: an intent may sit in created through a gateway outage before
// it is ever initiated.
func (r *gormRepository) ListStalePendingIntents(cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.
		Where("status = ? AND initiated_at < ?", models.IntentStatusGatewayPending, cutoff).
		Order("initiated_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

// CreateLedgerEntryIfAbsent inserts the ledger row guarded by the unique
// constraint on payment_intent_id. A duplicate that slipped past the
// status guard lands here as zero affected rows, not as an error.
func (r *gormRepository) CreateLedgerEntryIfAbsent(entry *models.LedgerEntry) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_intent_id"}},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetEntitlements(tenantID uint, forUpdate bool) ([]models.EntitlementState, error) {
	q := r.db.Where("tenant_id = ?", tenantID)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var states []models.EntitlementState
	err := q.Find(&states).Error
	return states, err
}

func (r *gormRepository) UpsertEntitlement(state *models.EntitlementState) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "module_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_enabled",
			"activation_type",
			"activated_at",
			"expires_at",
			"updated_at",
		}),
	}).Create(state).Error
}

func (r *gormRepository) ExtendEntitlementExpiry(tenantID uint, moduleID string, expiresAt time.Time) error {
	return r.db.Model(&models.EntitlementState{}).
		Where("tenant_id = ? AND module_id = ? AND is_enabled = ?", tenantID, moduleID, true).
		Update("expires_at", &expiresAt).Error
}

func (r *gormRepository) UpdateTenantPlan(tenantID uint, plan string) error {
	return r.db.Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Update("current_plan", plan).Error
}

func (r *gormRepository) RecordAudit(event *models.AuditEvent) error {
	return r.db.Create(event).Error
}
