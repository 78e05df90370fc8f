package jellyseerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/env"
)

const apiPrefix = "/api/v1"

// Client talks to a Jellyseerr-compatible media request server. It is
// stateless and safe for concurrent use.
type Client struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

// NewClientFromEnv creates a client from JELLYSEERR_URL and JELLYSEERR_API_KEY.
func NewClientFromEnv() *Client {
	return NewClient(
		strings.TrimSpace(env.GetEnv("JELLYSEERR_URL", "http://localhost:5055")),
		strings.TrimSpace(env.GetEnv("JELLYSEERR_API_KEY", "")),
	)
}

// upstreamMediaType maps the tracker's media types onto the ones the request
// service understands. Anime is a tv request upstream.
func upstreamMediaType(mediaType string) string {
	if mediaType == models.MediaTypeAnime {
		return models.MediaTypeTV
	}
	return mediaType
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("JELLYSEERR_API_KEY is not configured")
	}

	u, err := url.Parse(c.BaseURL + apiPrefix + path)
	if err != nil {
		return nil, fmt.Errorf("invalid jellyseerr url: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Op:   fmt.Sprintf("%s %s", method, path),
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}

// Search queries the media catalog. An anime search is a tv search with the
// results filtered to tv entries.
func (c *Client) Search(ctx context.Context, query, mediaType string, page int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("language", "en")

	raw, err := c.do(ctx, http.MethodGet, "/search", params, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []struct {
			ID           int64  `json:"id"`
			MediaType    string `json:"mediaType"`
			Title        string `json:"title"`
			Name         string `json:"name"`
			ReleaseDate  string `json:"releaseDate"`
			FirstAirDate string `json:"firstAirDate"`
			PosterPath   string `json:"posterPath"`
			Overview     string `json:"overview"`
			MediaInfo    *struct {
				Status int `json:"status"`
			} `json:"mediaInfo"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("jellyseerr search: unexpected response: %w", err)
	}

	wantType := upstreamMediaType(mediaType)
	results := make([]SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		if r.MediaType != models.MediaTypeMovie && r.MediaType != models.MediaTypeTV {
			continue
		}
		if wantType != "" && r.MediaType != wantType {
			continue
		}
		title := r.Title
		date := r.ReleaseDate
		if r.MediaType == models.MediaTypeTV {
			title = r.Name
			date = r.FirstAirDate
		}
		res := SearchResult{
			MediaID:   r.ID,
			MediaType: r.MediaType,
			Title:     title,
			Year:      yearFromDate(date),
			Overview:  r.Overview,
		}
		if r.PosterPath != "" {
			res.PosterURL = posterBaseURL + r.PosterPath
		}
		if r.MediaInfo != nil {
			res.Status = r.MediaInfo.Status
		}
		results = append(results, res)
	}
	return results, nil
}

// SubmitRequest files a new media request and returns the service's view of it.
func (c *Client) SubmitRequest(ctx context.Context, mediaID int64, mediaType string) (*RequestDetail, error) {
	payload := map[string]interface{}{
		"mediaType": upstreamMediaType(mediaType),
		"mediaId":   mediaID,
	}

	raw, err := c.do(ctx, http.MethodPost, "/request", nil, payload)
	if err != nil {
		return nil, err
	}

	var detail RequestDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("jellyseerr submit: unexpected response: %w", err)
	}
	if detail.ID == 0 {
		return nil, errors.New("jellyseerr submit: response carries no request id")
	}
	return &detail, nil
}

// GetRequest fetches the current state of a submitted request.
func (c *Client) GetRequest(ctx context.Context, externalID int64) (*RequestDetail, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/request/%d", externalID), nil, nil)
	if err != nil {
		return nil, err
	}

	var detail RequestDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("jellyseerr get request: unexpected response: %w", err)
	}
	return &detail, nil
}

// CancelRequest deletes a submitted request upstream.
func (c *Client) CancelRequest(ctx context.Context, externalID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/request/%d", externalID), nil, nil)
	return err
}

// Health probes the service and returns the observed latency.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.do(ctx, http.MethodGet, "/status", nil, nil)
	return time.Since(start), err
}
