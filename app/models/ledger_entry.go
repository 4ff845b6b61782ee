package models

import "time"

// LedgerEntry is the durable, append-only record of money received. The
// unique index on PaymentIntentID enforces exactly one ledger row per
// settled intent at the database, closing the race between concurrent
// duplicate callbacks.
type LedgerEntry struct {
	ID              string    `gorm:"primaryKey;type:char(36)" json:"id"`
	TenantID        uint      `gorm:"not null;index" json:"tenant_id"`
	PaymentIntentID string    `gorm:"type:char(36);not null;index:ux_ledger_entries_intent,unique" json:"payment_intent_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Currency        string    `gorm:"type:char(3);not null" json:"currency"`
	ExternalReceipt string    `gorm:"type:varchar(100);default:''" json:"external_receipt"`
	RecordedAt      time.Time `gorm:"not null" json:"recorded_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
