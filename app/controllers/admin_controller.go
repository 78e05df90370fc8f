package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/scheduler"
)

// configValueTypes lists the tunable keys and how their values parse.
var configValueTypes = map[string]string{
	"poll_interval":         "duration",
	"failed_retry_interval": "duration",
	"health_interval":       "duration",
	"maintenance_interval":  "duration",
	"retry_batch_limit":     "integer",
	"cleanup_after_days":    "integer",
}

// AdminController handles the operator endpoints: API client management,
// runtime configuration and manual maintenance runs.
type AdminController struct {
	repos *repository.Repositories
	sched *scheduler.Manager
}

// NewAdminController creates a new admin controller with its dependencies
func NewAdminController(repos *repository.Repositories, sched *scheduler.Manager) *AdminController {
	return &AdminController{repos: repos, sched: sched}
}

// HandleListClients returns all API clients with their usage counters.
// GET /api/v1/admin/clients
func (ac *AdminController) HandleListClients(c *fiber.Ctx) error {
	clients, err := ac.repos.APIClient.List()
	if err != nil {
		log.Errorf("[Admin] Listing api clients failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to list clients")
	}
	return c.JSON(fiber.Map{"clients": clients, "count": len(clients)})
}

type createClientInput struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// HandleCreateClient registers a new API client and returns the raw key.
// The key is shown exactly once; only its hash is stored.
// POST /api/v1/admin/clients
func (ac *AdminController) HandleCreateClient(c *fiber.Ctx) error {
	var input createClientInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Malformed request body")
	}
	if err := validate.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	client := &models.APIClient{Name: input.Name}
	rawKey, err := client.IssueAPIKey()
	if err != nil {
		log.Errorf("[Admin] Key generation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to generate API key")
	}
	if err := ac.repos.APIClient.Create(client); err != nil {
		log.Errorf("[Admin] Creating api client failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create client")
	}

	log.Infof("[Admin] Issued API key for client %q (id %d)", client.Name, client.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"client":  client,
		"api_key": rawKey,
		"note":    "Store this key now, it cannot be retrieved again.",
	})
}

// HandleRevokeClient deactivates an API client. The record stays for
// auditing.
// DELETE /api/v1/admin/clients/:id
func (ac *AdminController) HandleRevokeClient(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid client id")
	}

	if err := ac.repos.APIClient.Revoke(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Client not found")
		}
		log.Errorf("[Admin] Revoking api client %d failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to revoke client")
	}

	log.Infof("[Admin] Revoked API key for client %d", id)
	return c.JSON(fiber.Map{"revoked": true})
}

// HandleGetConfig returns the effective tracker settings and the stored
// overrides.
// GET /api/v1/admin/config
func (ac *AdminController) HandleGetConfig(c *fiber.Ctx) error {
	overrides, err := ac.repos.BotConfiguration.ListAll()
	if err != nil {
		log.Errorf("[Admin] Listing configuration failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load configuration")
	}
	return c.JSON(fiber.Map{
		"settings":  models.GetTrackerSettings(),
		"overrides": overrides,
	})
}

type updateConfigInput struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// HandleUpdateConfig changes one tunable at runtime. The candidate value is
// validated against the full settings before anything is persisted, so a bad
// value never reaches the database.
// PUT /api/v1/admin/config
func (ac *AdminController) HandleUpdateConfig(c *fiber.Ctx) error {
	var input updateConfigInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Malformed request body")
	}
	if err := validate.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	valueType, known := configValueTypes[input.Key]
	if !known {
		return jsonError(c, fiber.StatusBadRequest, "unknown_key", "Unknown configuration key: "+input.Key)
	}

	candidate := *models.GetTrackerSettings()
	if err := applyConfigValue(&candidate, input.Key, input.Value); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_value", err.Error())
	}
	if err := candidate.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_value", err.Error())
	}

	updatedBy := "admin"
	if username, ok := c.Locals("username").(string); ok && username != "" {
		updatedBy = username
	}
	if err := ac.repos.BotConfiguration.SetValue(input.Key, input.Value, valueType, updatedBy); err != nil {
		log.Errorf("[Admin] Storing configuration %s failed: %v", input.Key, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store configuration")
	}

	settings, err := ac.repos.BotConfiguration.LoadSettings()
	if err != nil {
		log.Errorf("[Admin] Reloading settings failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Configuration stored but reload failed")
	}

	log.Infof("[Admin] Configuration %s set to %q by %s", input.Key, input.Value, updatedBy)
	return c.JSON(fiber.Map{"settings": settings})
}

// applyConfigValue parses value according to the key's type and writes it
// into the settings copy.
func applyConfigValue(s *models.TrackerSettings, key, value string) error {
	switch key {
	case "poll_interval", "failed_retry_interval", "health_interval", "maintenance_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.New("value must be a duration such as 60s or 5m")
		}
		switch key {
		case "poll_interval":
			s.PollInterval = d
		case "failed_retry_interval":
			s.FailedRetryInterval = d
		case "health_interval":
			s.HealthInterval = d
		case "maintenance_interval":
			s.MaintenanceInterval = d
		}
	case "retry_batch_limit", "cleanup_after_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.New("value must be an integer")
		}
		if key == "retry_batch_limit" {
			s.RetryBatchLimit = n
		} else {
			s.CleanupAfterDays = n
		}
	default:
		return errors.New("unknown configuration key: " + key)
	}
	return nil
}

// HandleRunMaintenance triggers a single maintenance pass outside the
// regular schedule.
// POST /api/v1/admin/maintenance
func (ac *AdminController) HandleRunMaintenance(c *fiber.Ctx) error {
	if ac.sched == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Scheduler is not running")
	}

	log.Info("[Admin] Manual maintenance pass requested")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ac.sched.RunMaintenanceOnce(ctx)

	return c.JSON(fiber.Map{"completed": true})
}
