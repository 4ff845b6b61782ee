package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Tenant statuses.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant is an institution using the platform; the unit of billing and
// entitlement isolation. API requests are resolved to a tenant through the
// API key hash.
type Tenant struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=3,max=200"`
	Email            string         `gorm:"type:varchar(200);uniqueIndex" json:"email" validate:"required,email"`
	BillingPhone     string         `gorm:"type:varchar(20);default:''" json:"billing_phone" validate:"max=20"`
	Status           string         `gorm:"type:varchar(20);not null;default:'active'" json:"status" validate:"oneof=active suspended"`
	CurrentPlan      string         `gorm:"type:varchar(50);not null;default:'starter'" json:"current_plan"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at,omitempty"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at,omitempty"`
	APIKeyRevokedAt  *time.Time     `json:"-"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "zira_"

func (t *Tenant) Validate() error {
	v := validator.New()

	return v.Struct(t)
}

// GetTenantByAPIKeyHash resolves a tenant by the hash of a presented key.
func GetTenantByAPIKeyHash(db *gorm.DB, hash string) (*Tenant, error) {
	var t Tenant
	if err := db.Where("api_key_hash = ? AND api_key_hash <> ''", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// HasActiveAPIKey reports whether the tenant has an active API key configured.
func (t *Tenant) HasActiveAPIKey() bool {
	return t != nil && t.APIKeyHash != "" && t.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and
// returns the raw secret. Callers must persist the struct afterwards.
func (t *Tenant) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	t.APIKeyHash = hash
	t.APIKeyPrefix = prefix
	t.APIKeyCreatedAt = &now
	t.APIKeyRevokedAt = nil
	t.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata without deleting the record.
func (t *Tenant) RevokeAPIKey() {
	t.APIKeyHash = ""
	t.APIKeyPrefix = ""
	now := time.Now()
	t.APIKeyRevokedAt = &now
	t.APIKeyLastUsedAt = nil
}

// TouchAPIKeyUsage updates the last-used timestamp metadata.
func (t *Tenant) TouchAPIKeyUsage() {
	now := time.Now()
	t.APIKeyLastUsedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 16)]
	hash := HashAPIKey(rawKey)
	return rawKey, prefix, hash, nil
}
