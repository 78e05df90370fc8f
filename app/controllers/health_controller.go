package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trackarr/trackarr/internal/pkg/healthmon"
)

// HealthController serves the cached service-health snapshot
type HealthController struct {
	monitor *healthmon.Monitor
}

// NewHealthController creates a health controller on top of the monitor
func NewHealthController(monitor *healthmon.Monitor) *HealthController {
	return &HealthController{monitor: monitor}
}

// HandleGetHealth returns the aggregate service health. Responds 503 when
// any collaborator is unhealthy so load balancers can act on it.
// GET /api/v1/health
func (hc *HealthController) HandleGetHealth(c *fiber.Ctx) error {
	snap, err := hc.monitor.GetSnapshot()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load service health")
	}

	status := fiber.StatusOK
	if !snap.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(snap)
}
