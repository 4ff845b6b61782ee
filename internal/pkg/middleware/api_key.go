package middleware

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/database"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/tenantcontext"
)

// APIKeyAuthMiddleware authenticates requests carrying a tenant API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		tenant, err := models.GetTenantByAPIKeyHash(db, hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if !tenant.HasActiveAPIKey() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "API key revoked"})
		}
		if tenant.Status != models.TenantStatusActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Tenant suspended"})
		}

		// Refresh last-used timestamp best-effort.
		tenant.TouchAPIKeyUsage()
		if err := db.Model(&models.Tenant{}).
			Where("id = ?", tenant.ID).
			Updates(map[string]any{"api_key_last_used_at": tenant.APIKeyLastUsedAt}).Error; err != nil {
			log.Printf("failed to update api key usage timestamp for tenant %d: %v", tenant.ID, err)
		}

		tenantCtx := tenantcontext.TenantContext{
			TenantID:   tenant.ID,
			TenantName: tenant.Name,
			Plan:       tenant.CurrentPlan,
			Actor:      fmt.Sprintf("tenant:%d:api", tenant.ID),
		}
		c.Locals(tenantcontext.KeyTenantContext, tenantCtx)
		c.Locals(tenantcontext.KeyTenantID, tenant.ID)
		c.Locals(tenantcontext.KeyTenantName, tenant.Name)
		c.Locals(tenantcontext.KeyPlan, tenant.CurrentPlan)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
