package models

import (
	"encoding/json"
	"time"
)

// Invoice statuses.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice types.
const (
	InvoiceTypeSubscription = "subscription"
	InvoiceTypeAddon        = "addon"
	InvoiceTypeRenewal      = "renewal"
)

// InvoiceLineItem is one billed position on an invoice. Line items are
// immutable once the invoice is finalized.
type InvoiceLineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

// Invoice is the billable record a payment intent settles. An invoice is
// paid if and only if a settled intent references it; re-attempts create a
// new intent against the same invoice.
type Invoice struct {
	ID            string     `gorm:"primaryKey;type:char(36)" json:"id"`
	TenantID      uint       `gorm:"not null;index" json:"tenant_id"`
	Type          string     `gorm:"type:varchar(32);not null" json:"type"`
	PeriodStart   time.Time  `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time  `gorm:"not null" json:"period_end"`
	LineItemsJSON string     `gorm:"type:longtext;not null" json:"-"`
	TotalAmount   int64      `gorm:"not null" json:"total_amount"`
	Currency      string     `gorm:"type:char(3);not null" json:"currency"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetLineItems serializes items into the invoice. Called once at creation;
// finalized invoices keep their line items unchanged.
func (i *Invoice) SetLineItems(items []InvoiceLineItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	i.LineItemsJSON = string(raw)
	return nil
}

// LineItems deserializes the stored line items.
func (i *Invoice) LineItems() ([]InvoiceLineItem, error) {
	if i.LineItemsJSON == "" {
		return nil, nil
	}
	var items []InvoiceLineItem
	if err := json.Unmarshal([]byte(i.LineItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}
