package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/cache"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/database"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/env"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/router"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/settlement"
)

func main() {
	app, sweeper := NewApplication()

	// Graceful shutdown: stop accepting requests, then stop the sweeper.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	sweeper.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *settlement.Sweeper) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "Zira Edu Connect",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// Background expiry sweep for stuck gateway_pending intents
	sweeper := settlement.NewSweeper(settlement.NewServiceFromDB(database.GetDB()))
	sweeper.Start()

	return app, sweeper
}
