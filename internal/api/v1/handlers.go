package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/trackarr/trackarr/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetHealth returns the aggregate service-health snapshot.
func (s *APIServer) GetHealth(c *fiber.Ctx) error {
	return controllers.HandleGetHealth(c)
}

// GetStats returns the request statistics.
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	return controllers.HandleGetStats(c)
}

// GetSearch proxies a catalog search to the request service (API key
// protected). Security is enforced via API key middleware attached in the
// router.
func (s *APIServer) GetSearch(c *fiber.Ctx) error {
	return controllers.HandleSearch(c)
}

// PostRequest submits a media request and starts tracking it (API key
// protected).
func (s *APIServer) PostRequest(c *fiber.Ctx) error {
	return controllers.HandleSubmitRequest(c)
}

// GetRequests lists a requester's tracked requests (API key protected).
func (s *APIServer) GetRequests(c *fiber.Ctx) error {
	return controllers.HandleListRequests(c)
}

// GetRequest returns one tracked request with its history (API key
// protected). Delegates to the existing controller for consistent response
// shape.
func (s *APIServer) GetRequest(c *fiber.Ctx, publicID string) error {
	// Controller reads publicID from route params; wrapper already set it.
	return controllers.HandleGetRequest(c)
}

// DeleteRequest cancels a tracked request on behalf of its owner (API key
// protected).
func (s *APIServer) DeleteRequest(c *fiber.Ctx, externalID string) error {
	// Controller reads external_id from route params; wrapper already set it.
	return controllers.HandleCancelRequest(c)
}
