package controllers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/cache"
	"github.com/trackarr/trackarr/internal/pkg/jellyseerr"
)

const (
	maxSearchQueryLen   = 200
	searchCacheDuration = 5 * time.Minute
)

// SearchController proxies media searches to the request service
type SearchController struct {
	client *jellyseerr.Client
}

// NewSearchController creates a search controller on top of the client
func NewSearchController(client *jellyseerr.Client) *SearchController {
	return &SearchController{client: client}
}

// HandleSearch searches the upstream catalog. Results are cached per
// query/type/page so repeated chat lookups do not hammer the upstream.
// GET /api/v1/search?q=..&type=..&page=..
func (sc *SearchController) HandleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "q is required")
	}
	if len(query) > maxSearchQueryLen {
		query = query[:maxSearchQueryLen]
	}

	mediaType := strings.TrimSpace(c.Query("type"))
	switch mediaType {
	case "", models.MediaTypeMovie, models.MediaTypeTV, models.MediaTypeAnime:
	default:
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "type must be movie, tv or anime")
	}

	page := queryInt(c, "page", 1)
	if page <= 0 {
		page = 1
	}

	cacheKey := searchCacheKey(query, mediaType, page)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		var results []jellyseerr.SearchResult
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			return c.JSON(fiber.Map{
				"results": results,
				"count":   len(results),
			})
		}
	}

	results, err := sc.client.Search(c.Context(), query, mediaType, page)
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "upstream_error", "Search against the request service failed")
	}

	if b, err := json.Marshal(results); err == nil {
		if err := cache.Set(cacheKey, string(b), searchCacheDuration); err != nil {
			log.Warnf("[Search] Cache write failed: %v", err)
		}
	}

	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

func searchCacheKey(query, mediaType string, page int) string {
	if mediaType == "" {
		mediaType = "all"
	}
	return fmt.Sprintf("search:%s:%d:%s", mediaType, page, strings.ToLower(query))
}
