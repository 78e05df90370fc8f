package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/retry"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

var validate = validator.New()

// RequestController handles the tracked-request HTTP endpoints
type RequestController struct {
	engine *tracker.Engine
}

// NewRequestController creates a request controller on top of the engine
func NewRequestController(engine *tracker.Engine) *RequestController {
	return &RequestController{engine: engine}
}

// HandleSubmit files a new media request and starts tracking it.
// POST /api/v1/requests
func (rc *RequestController) HandleSubmit(c *fiber.Ctx) error {
	var input tracker.SubmitInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Malformed request body")
	}
	if err := validate.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	ipv4, ipv6 := GetClientIP(c)
	log.Infof("[API] Submit media %d (%s) for user %d from %s %s",
		input.MediaID, input.MediaType, input.RequesterID, ipv4, ipv6)

	row, created, err := rc.engine.Submit(c.Context(), input)
	if err != nil {
		if errors.Is(err, tracker.ErrMediaNotFound) {
			return jsonError(c, fiber.StatusNotFound, "media_not_found", "The requested media does not exist upstream")
		}
		var cerr *retry.ClassifiedError
		if errors.As(err, &cerr) {
			if cerr.Kind == retry.KindTimeout {
				return jsonError(c, fiber.StatusGatewayTimeout, "upstream_timeout", "The request service did not answer in time")
			}
			return jsonError(c, fiber.StatusBadGateway, "upstream_error", "The request service rejected the submission")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to submit request")
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	resp := requestResponse(row)
	resp["duplicate"] = !created
	return c.Status(status).JSON(resp)
}

// HandleList returns a requester's tracked requests, newest first.
// GET /api/v1/requests?requester_id=..&active=..&limit=..
func (rc *RequestController) HandleList(c *fiber.Ctx) error {
	requesterID := queryInt64(c, "requester_id", 0)
	if requesterID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "requester_id is required")
	}
	activeOnly := queryBool(c, "active", true)
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	rows, err := rc.engine.GetUserRequests(requesterID, activeOnly, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load requests")
	}

	items := make([]fiber.Map, 0, len(rows))
	for i := range rows {
		items = append(items, requestResponse(&rows[i]))
	}
	return c.JSON(fiber.Map{
		"requests": items,
		"count":    len(items),
	})
}

// HandleGet returns one request with its full status history.
// GET /api/v1/requests/:publicID
func (rc *RequestController) HandleGet(c *fiber.Ctx) error {
	publicID := c.Params("publicID")
	if publicID == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "request id missing")
	}

	row, history, err := rc.engine.GetRequest(publicID)
	if err != nil {
		if errors.Is(err, tracker.ErrRequestNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load request")
	}

	entries := make([]fiber.Map, 0, len(history))
	for i := range history {
		entries = append(entries, historyResponse(&history[i]))
	}
	resp := requestResponse(row)
	resp["history"] = entries
	return c.JSON(resp)
}

// HandleCancel withdraws an active request on behalf of its owner.
// DELETE /api/v1/requests/:external_id?requester_id=..
func (rc *RequestController) HandleCancel(c *fiber.Ctx) error {
	externalID, err := c.ParamsInt("external_id")
	if err != nil || externalID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "external request id invalid")
	}
	requesterID := queryInt64(c, "requester_id", 0)
	if requesterID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "requester_id is required")
	}

	cancelled, err := rc.engine.Cancel(c.Context(), int64(externalID), requesterID)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrRequestNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		case errors.Is(err, tracker.ErrNotOwner):
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Only the requester may cancel this request")
		case errors.Is(err, tracker.ErrNotCancellable):
			return jsonError(c, fiber.StatusConflict, "conflict", "Request can no longer be cancelled")
		default:
			return jsonError(c, fiber.StatusBadGateway, "upstream_error", "The request service could not cancel the request")
		}
	}

	return c.JSON(fiber.Map{"cancelled": cancelled})
}

// requestResponse maps a row onto the public response shape
func requestResponse(row *models.TrackedRequest) fiber.Map {
	return fiber.Map{
		"id":                  row.PublicID,
		"external_request_id": row.ExternalRequestID,
		"requester_id":        row.RequesterID,
		"channel_id":          row.ChannelID,
		"media_id":            row.MediaID,
		"media_type":          row.MediaType,
		"title":               row.Title,
		"year":                row.Year,
		"poster_url":          row.PosterURL,
		"status":              row.LastStatus,
		"status_name":         models.StatusName(row.LastStatus),
		"is_active":           row.IsActive,
		"failure_count":       row.FailureCount,
		"created_at":          row.CreatedAt,
		"updated_at":          row.UpdatedAt,
	}
}

// historyResponse maps a history entry onto the public response shape
func historyResponse(entry *models.StatusHistoryEntry) fiber.Map {
	oldName := "None"
	if entry.OldStatus != 0 {
		oldName = models.StatusName(entry.OldStatus)
	}
	return fiber.Map{
		"old_status":        entry.OldStatus,
		"old_status_name":   oldName,
		"new_status":        entry.NewStatus,
		"new_status_name":   models.StatusName(entry.NewStatus),
		"reason":            entry.Reason,
		"changed_at":        entry.ChangedAt,
		"notification_sent": entry.NotificationSent,
	}
}
