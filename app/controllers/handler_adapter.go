package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/healthmon"
	"github.com/trackarr/trackarr/internal/pkg/jellyseerr"
	"github.com/trackarr/trackarr/internal/pkg/scheduler"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// Global controller instances
var (
	requestController *RequestController
	searchController  *SearchController
	statsController   *StatsController
	healthController  *HealthController
	adminController   *AdminController
)

// InitializeControllers initializes the global controllers with their
// collaborators. Must run before the router installs any handler.
func InitializeControllers(engine *tracker.Engine, client *jellyseerr.Client, monitor *healthmon.Monitor, sched *scheduler.Manager) {
	requestController = NewRequestController(engine)
	searchController = NewSearchController(client)
	statsController = NewStatsController()
	healthController = NewHealthController(monitor)
	adminController = NewAdminController(repository.GetGlobalRepositories(), sched)
}

// Adapter functions to keep the router decoupled from controller instances

// HandleSubmitRequest - Adapter for request submission
func HandleSubmitRequest(c *fiber.Ctx) error {
	return requestController.HandleSubmit(c)
}

// HandleListRequests - Adapter for request listing
func HandleListRequests(c *fiber.Ctx) error {
	return requestController.HandleList(c)
}

// HandleGetRequest - Adapter for single request lookup
func HandleGetRequest(c *fiber.Ctx) error {
	return requestController.HandleGet(c)
}

// HandleCancelRequest - Adapter for request cancellation
func HandleCancelRequest(c *fiber.Ctx) error {
	return requestController.HandleCancel(c)
}

// HandleSearch - Adapter for catalog search
func HandleSearch(c *fiber.Ctx) error {
	return searchController.HandleSearch(c)
}

// HandleGetStats - Adapter for statistics
func HandleGetStats(c *fiber.Ctx) error {
	return statsController.HandleGetStats(c)
}

// HandleGetHealth - Adapter for service health
func HandleGetHealth(c *fiber.Ctx) error {
	return healthController.HandleGetHealth(c)
}

// HandleAdminListClients - Adapter for API client listing
func HandleAdminListClients(c *fiber.Ctx) error {
	return adminController.HandleListClients(c)
}

// HandleAdminCreateClient - Adapter for API client creation
func HandleAdminCreateClient(c *fiber.Ctx) error {
	return adminController.HandleCreateClient(c)
}

// HandleAdminRevokeClient - Adapter for API client revocation
func HandleAdminRevokeClient(c *fiber.Ctx) error {
	return adminController.HandleRevokeClient(c)
}

// HandleAdminGetConfig - Adapter for configuration readout
func HandleAdminGetConfig(c *fiber.Ctx) error {
	return adminController.HandleGetConfig(c)
}

// HandleAdminUpdateConfig - Adapter for configuration updates
func HandleAdminUpdateConfig(c *fiber.Ctx) error {
	return adminController.HandleUpdateConfig(c)
}

// HandleAdminRunMaintenance - Adapter for manual maintenance runs
func HandleAdminRunMaintenance(c *fiber.Ctx) error {
	return adminController.HandleRunMaintenance(c)
}
