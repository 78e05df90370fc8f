package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/trackarr/trackarr/app/controllers"
	"github.com/trackarr/trackarr/internal/pkg/env"
)

type AdminRouter struct {
}

// InstallRouter mounts the operator endpoints behind basic auth. Without an
// ADMIN_PASSWORD the group is not installed at all.
func (h AdminRouter) InstallRouter(app *fiber.App) {
	password := env.GetEnv("ADMIN_PASSWORD", "")
	if password == "" {
		log.Warn("[Router] ADMIN_PASSWORD not set, admin endpoints disabled")
		return
	}

	admin := app.Group("/api/v1/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): password,
		},
	}))

	admin.Get("/clients", controllers.HandleAdminListClients)
	admin.Post("/clients", controllers.HandleAdminCreateClient)
	admin.Delete("/clients/:id", controllers.HandleAdminRevokeClient)
	admin.Get("/config", controllers.HandleAdminGetConfig)
	admin.Put("/config", controllers.HandleAdminUpdateConfig)
	admin.Post("/maintenance", controllers.HandleAdminRunMaintenance)
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}
