package tenantcontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyTenantContext = "TENANT_CONTEXT"
	KeyTenantID      = "tenant_id"
	KeyTenantName    = "tenant_name"
	KeyPlan          = "tenant_plan"
)
