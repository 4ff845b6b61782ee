package tenantcontext

import "github.com/gofiber/fiber/v2"

// TenantContext represents the authenticated tenant for a request
type TenantContext struct {
	TenantID   uint   `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Plan       string `json:"plan"`
	Actor      string `json:"actor"`
}

// GetTenantContext retrieves the tenant context from fiber context
// Returns a zero context if none is set
func GetTenantContext(c *fiber.Ctx) TenantContext {
	if ctx := c.Locals(KeyTenantContext); ctx != nil {
		return ctx.(TenantContext)
	}
	return TenantContext{}
}

// IsAuthenticated checks whether a tenant is bound to the request
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetTenantContext(c).TenantID != 0
}

// GetTenantID returns the current tenant's ID, or 0 if unauthenticated
func GetTenantID(c *fiber.Ctx) uint {
	return GetTenantContext(c).TenantID
}

// GetActor returns the audit actor string for the current request
func GetActor(c *fiber.Ctx) string {
	return GetTenantContext(c).Actor
}
