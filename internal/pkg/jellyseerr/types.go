package jellyseerr

import (
	"fmt"
)

// StatusError is returned for any non-2xx answer from the request service.
// It keeps the HTTP status code readable for error classification.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jellyseerr %s failed: status=%d body=%s", e.Op, e.Code, e.Body)
}

// HTTPStatus exposes the status code for error classification.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

// SearchResult is one entry of a catalog search, normalized for display.
type SearchResult struct {
	MediaID   int64  `json:"media_id"`
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	Year      string `json:"year"`
	Overview  string `json:"overview"`
	PosterURL string `json:"poster_url"`
	Status    int    `json:"status"`
}

// MediaInfo is the availability state of the media behind a request.
type MediaInfo struct {
	ID     int64 `json:"id"`
	TmdbID int64 `json:"tmdbId"`
	Status int   `json:"status"`
}

// RequestDetail is the request service's view of one submitted request.
type RequestDetail struct {
	ID     int64      `json:"id"`
	Status int        `json:"status"`
	Media  *MediaInfo `json:"media"`
}

// EffectiveStatus returns the status the tracker follows: the media
// availability when the service reports it, else the request status.
func (d *RequestDetail) EffectiveStatus() int {
	if d.Media != nil && d.Media.Status > 0 {
		return d.Media.Status
	}
	return d.Status
}

const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// yearFromDate extracts the year from a service date string ("1999-10-15").
func yearFromDate(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return "TBA"
}
