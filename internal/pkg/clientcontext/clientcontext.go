package clientcontext

import "github.com/gofiber/fiber/v2"

// ClientContext represents the authenticated API client for a request
type ClientContext struct {
	ClientID        uint   `json:"client_id"`
	ClientName      string `json:"client_name"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// GetClientContext retrieves the client context from fiber context.
// Returns a default anonymous context if none is set.
func GetClientContext(c *fiber.Ctx) ClientContext {
	if ctx := c.Locals(KeyClientContext); ctx != nil {
		return ctx.(ClientContext)
	}
	return ClientContext{IsAuthenticated: false}
}

// IsAuthenticated checks if the current request carries a valid API key
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetClientContext(c).IsAuthenticated
}

// GetClientID returns the current client's ID, or 0 if unauthenticated
func GetClientID(c *fiber.Ctx) uint {
	return GetClientContext(c).ClientID
}

// GetClientName returns the current client's name, or empty string if unauthenticated
func GetClientName(c *fiber.Ctx) string {
	return GetClientContext(c).ClientName
}
