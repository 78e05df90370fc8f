package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trackarr/trackarr/internal/pkg/statistics"
)

// StatsController serves the aggregate request counters
type StatsController struct{}

// NewStatsController creates a stats controller
func NewStatsController() *StatsController {
	return &StatsController{}
}

// HandleGetStats returns the cached request statistics.
// GET /api/v1/stats
func (sc *StatsController) HandleGetStats(c *fiber.Ctx) error {
	stats, err := statistics.GetStatisticsData()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load statistics")
	}
	return c.JSON(stats)
}
