package controllers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackarr/trackarr/app/models"
)

func newAdminTestApp(ac *AdminController) *fiber.App {
	app := fiber.New()
	app.Post("/clients", ac.HandleCreateClient)
	app.Delete("/clients/:id", ac.HandleRevokeClient)
	app.Put("/config", ac.HandleUpdateConfig)
	app.Post("/maintenance", ac.HandleRunMaintenance)
	return app
}

func putConfig(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptestRequest(http.MethodPut, "/config", body)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func httptestRequest(method, target, body string) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestApplyConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(*models.TrackerSettings) bool
	}{
		{"poll_interval", "90s", false, func(s *models.TrackerSettings) bool { return s.PollInterval == 90*time.Second }},
		{"failed_retry_interval", "15m", false, func(s *models.TrackerSettings) bool { return s.FailedRetryInterval == 15*time.Minute }},
		{"health_interval", "2m", false, func(s *models.TrackerSettings) bool { return s.HealthInterval == 2*time.Minute }},
		{"maintenance_interval", "1h", false, func(s *models.TrackerSettings) bool { return s.MaintenanceInterval == time.Hour }},
		{"retry_batch_limit", "25", false, func(s *models.TrackerSettings) bool { return s.RetryBatchLimit == 25 }},
		{"cleanup_after_days", "14", false, func(s *models.TrackerSettings) bool { return s.CleanupAfterDays == 14 }},
		{"poll_interval", "ninety", true, nil},
		{"retry_batch_limit", "many", true, nil},
		{"unknown_key", "1", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := models.DefaultTrackerSettings()
			err := applyConfigValue(s, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.check(s))
		})
	}
}

func TestConfigValueTypesCoverAllTunables(t *testing.T) {
	// Every key applyConfigValue understands must be declared with a type.
	for _, key := range []string{
		"poll_interval", "failed_retry_interval", "health_interval",
		"maintenance_interval", "retry_batch_limit", "cleanup_after_days",
	} {
		assert.Contains(t, configValueTypes, key)
	}
	assert.Len(t, configValueTypes, 6)
}

func TestHandleUpdateConfigRejectsUnknownKey(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	resp := putConfig(t, app, `{"key":"surprise","value":"1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdateConfigRejectsMalformedValue(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	resp := putConfig(t, app, `{"key":"poll_interval","value":"ninety"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdateConfigRejectsOutOfRangeValue(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	// Parses fine but fails settings validation, nothing is persisted.
	resp := putConfig(t, app, `{"key":"poll_interval","value":"5s"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = putConfig(t, app, `{"key":"retry_batch_limit","value":"500"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleUpdateConfigRejectsMissingFields(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	resp := putConfig(t, app, `{"key":"poll_interval"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = putConfig(t, app, `not json`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateClientRequiresName(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	req := httptestRequest(http.MethodPost, "/clients", `{"name":""}`)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleRevokeClientRejectsBadID(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	for _, id := range []string{"abc", "0", "-3"} {
		req := httptestRequest(http.MethodDelete, "/clients/"+id, "")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "id %q", id)
	}
}

func TestHandleRunMaintenanceWithoutScheduler(t *testing.T) {
	app := newAdminTestApp(&AdminController{})

	req := httptestRequest(http.MethodPost, "/maintenance", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
