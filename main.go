package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/trackarr/trackarr/app/controllers"
	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/cache"
	"github.com/trackarr/trackarr/internal/pkg/database"
	"github.com/trackarr/trackarr/internal/pkg/env"
	"github.com/trackarr/trackarr/internal/pkg/healthmon"
	"github.com/trackarr/trackarr/internal/pkg/jellyseerr"
	"github.com/trackarr/trackarr/internal/pkg/notify"
	"github.com/trackarr/trackarr/internal/pkg/router"
	"github.com/trackarr/trackarr/internal/pkg/scheduler"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	if err := models.LoadTrackerSettings(db); err != nil {
		log.Printf("Could not load tracker settings, using defaults: %v", err)
	}

	repos := repository.GetGlobalRepositories()
	client := jellyseerr.NewClientFromEnv()
	engine := tracker.NewEngine(repos, client, tracker.Options{})
	notifier := notify.FromEnv()
	healthMonitor := healthmon.NewMonitor(repos.ServiceHealth, client, notifier)

	manager := scheduler.NewManager(engine, notifier, healthMonitor, nil)
	controllers.InitializeControllers(engine, client, healthMonitor, manager)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "Trackarr",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
