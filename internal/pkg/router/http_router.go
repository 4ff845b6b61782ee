package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/constants"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/database"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.PublicRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "zira-edu-connect", "status": "ok"})
	})

	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		db := database.GetDB()
		if db == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		return c.JSON(fiber.Map{"status": "ok", "database": "up"})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
