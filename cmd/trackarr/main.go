package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/trackarr/trackarr/app/controllers"
	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/cache"
	"github.com/trackarr/trackarr/internal/pkg/constants"
	"github.com/trackarr/trackarr/internal/pkg/database"
	"github.com/trackarr/trackarr/internal/pkg/env"
	"github.com/trackarr/trackarr/internal/pkg/healthmon"
	"github.com/trackarr/trackarr/internal/pkg/jellyseerr"
	"github.com/trackarr/trackarr/internal/pkg/notify"
	"github.com/trackarr/trackarr/internal/pkg/postermirror"
	"github.com/trackarr/trackarr/internal/pkg/router"
	"github.com/trackarr/trackarr/internal/pkg/scheduler"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

func main() {
	app, manager := NewApplication()

	manager.Start()

	// graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		manager.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *scheduler.Manager) {
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

	var mirror *postermirror.Mirror
	if cfg, err := postermirror.LoadConfig(); err != nil {
		log.Printf("Poster mirror configuration invalid: %v", err)
	} else if cfg.IsEnabled() {
		m, err := postermirror.NewMirror(cfg, repos.TrackedRequest)
		if err != nil {
			log.Printf("Poster mirror disabled: %v", err)
		} else {
			mirror = m
		}
	}

	manager := scheduler.NewManager(engine, notifier, healthMonitor, mirror)
	controllers.InitializeControllers(engine, client, healthMonitor, manager)

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/trackarr to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Trackarr",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, manager
}
