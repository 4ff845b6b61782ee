package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/swairua/zira-edu-connect-sub010/app/controllers"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/constants"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group(constants.APIV1Route)

	// Gateway callbacks authenticate with the URL token, not an API key.
	v1.Post(constants.CallbackRoute, middleware.CallbackGuardMiddleware(), controllers.HandleGatewayCallback)
	v1.Post(constants.CallbackRoute+"/:token", middleware.CallbackGuardMiddleware(), controllers.HandleGatewayCallback)

	// Tenant routes require an API key.
	tenant := v1.Group("", middleware.APIKeyAuthMiddleware())
	tenant.Post("/payments", controllers.HandleCreatePayment)
	tenant.Get("/payments/:id", controllers.HandleGetPayment)
	tenant.Post("/payments/:id/initiate", controllers.HandleInitiatePayment)

	tenant.Get("/modules", controllers.HandleListModules)
	tenant.Post("/modules/:module_id/activate", controllers.HandleActivateModule)
	tenant.Post("/modules/:module_id/deactivate", controllers.HandleDeactivateModule)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
