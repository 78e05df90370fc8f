package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/clientcontext"
	"github.com/trackarr/trackarr/internal/pkg/database"
	"github.com/trackarr/trackarr/internal/pkg/metrics/counter"
)

// APIKeyAuthMiddleware authenticates requests carrying an API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetAPIClientRepository()
		client, err := repo.GetByKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if !client.Active {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Client inactive"})
		}

		// Refresh last-used timestamp best-effort.
		if err := repo.TouchUsage(client.ID); err != nil {
			log.Printf("failed to update api key usage timestamp for client %d: %v", client.ID, err)
		}

		// Usage counters accumulate in Redis and land in the database on the
		// next maintenance pass.
		if err := counter.AddClientRequest(client.ID); err != nil {
			log.Printf("failed to count api request for client %d: %v", client.ID, err)
		}

		clientCtx := clientcontext.ClientContext{
			ClientID:        client.ID,
			ClientName:      client.Name,
			IsAuthenticated: true,
		}
		c.Locals(clientcontext.KeyClientContext, clientCtx)
		c.Locals(clientcontext.KeyClientID, client.ID)
		c.Locals(clientcontext.KeyClientName, client.Name)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
