package constants

// Static route constants
const (
	PublicRoute   = "/"
	HealthRoute   = "/health"
	APIRoute      = "/api"
	APIV1Route    = "/v1"
	CallbackRoute = "/payments/callback"
)
