package tracker

import (
	"errors"

	"github.com/trackarr/trackarr/app/models"
)

// Exported failure values callers branch on. Anything else coming out of the
// engine is either a *retry.ClassifiedError from the external service or a
// plain storage error.
var (
	// ErrMediaNotFound means the request service does not know the media.
	// There is nothing to track and nothing to retry.
	ErrMediaNotFound = errors.New("media not found at the request service")

	// ErrRequestNotFound means no tracked row matches the given identifier.
	ErrRequestNotFound = errors.New("tracked request not found")

	// ErrNotOwner rejects operations on another requester's row.
	ErrNotOwner = errors.New("request belongs to another user")

	// ErrNotCancellable rejects cancel calls on terminal or inactive rows.
	ErrNotCancellable = errors.New("request can no longer be cancelled")
)

// SubmitInput carries everything needed to file and track a new request.
type SubmitInput struct {
	MediaID     int64  `json:"media_id" validate:"required,gt=0"`
	MediaType   string `json:"media_type" validate:"required,oneof=movie tv anime"`
	RequesterID int64  `json:"requester_id" validate:"required"`
	ChannelID   int64  `json:"channel_id" validate:"required"`
	Title       string `json:"title" validate:"max=255"`
	Year        string `json:"year" validate:"max=4"`
	PosterURL   string `json:"poster_url" validate:"omitempty,url,max=500"`
}

// StatusUpdate is one observed transition. The notifier consumes these; the
// engine itself knows nothing about notification channels.
type StatusUpdate struct {
	Request        *models.TrackedRequest `json:"request"`
	OldStatus      int                    `json:"old_status"`
	NewStatus      int                    `json:"new_status"`
	HistoryEntryID uint                   `json:"history_entry_id"`
}

// RetryStats summarizes one background pass over failed requests.
type RetryStats struct {
	Retried            int `json:"retried"`
	FailedAgain        int `json:"failed_again"`
	MaxFailuresReached int `json:"max_failures_reached"`
}
