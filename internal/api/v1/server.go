package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the response of the ping endpoint
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the v1 handlers. The route table in
// public/docs/v1/openapi.yml mirrors this interface.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	GetHealth(c *fiber.Ctx) error
	GetStats(c *fiber.Ctx) error
	GetSearch(c *fiber.Ctx) error
	PostRequest(c *fiber.Ctx) error
	GetRequests(c *fiber.Ctx) error
	GetRequest(c *fiber.Ctx, publicID string) error
	DeleteRequest(c *fiber.Ctx, externalID string) error
}

// RegisterHandlers attaches the v1 routes to the router group. The keyed
// middlewares are applied per route group by the caller.
func RegisterHandlers(router fiber.Router, si ServerInterface, keyed ...fiber.Handler) {
	router.Get("/ping", si.GetPing)
	router.Get("/health", si.GetHealth)
	router.Get("/stats", si.GetStats)

	protected := router.Group("", keyed...)
	protected.Get("/search", si.GetSearch)
	protected.Post("/requests", si.PostRequest)
	protected.Get("/requests", si.GetRequests)
	protected.Get("/requests/:publicID", func(c *fiber.Ctx) error {
		return si.GetRequest(c, c.Params("publicID"))
	})
	protected.Delete("/requests/:external_id", func(c *fiber.Ctx) error {
		return si.DeleteRequest(c, c.Params("external_id"))
	})
}
