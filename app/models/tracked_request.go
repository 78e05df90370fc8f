package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request lifecycle states as reported by the external request service.
// The zero value is reserved for "no previous status" in history entries.
const (
	StatusPendingApproval    = 1
	StatusApproved           = 2
	StatusProcessing         = 3
	StatusPartiallyAvailable = 4
	StatusAvailable          = 5

	// StatusCancelled is a history-only sentinel. It never appears in
	// last_status; it marks a user-initiated cancellation in the audit trail.
	StatusCancelled = -1
)

// Media types accepted by the tracker. Anime is submitted upstream as tv,
// the distinction only matters for search filtering and display.
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
	MediaTypeAnime = "anime"
)

// TrackedRequest ist ein vom Nutzer eingereichter Medien-Request samt
// Lebenszyklus-Zustand. Eine Zeile entsteht erst, nachdem der externe
// Dienst die Einreichung bestätigt hat.
type TrackedRequest struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	PublicID          string `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"public_id"`
	ExternalRequestID *int64 `gorm:"uniqueIndex" json:"external_request_id"`

	RequesterID int64  `gorm:"index:idx_requester_status;index:idx_media_requester,priority:3;not null" json:"requester_id"`
	ChannelID   int64  `gorm:"not null" json:"channel_id"`
	MediaID     int64  `gorm:"index:idx_media_requester,priority:1;not null" json:"media_id"`
	MediaType   string `gorm:"type:varchar(50);index:idx_media_requester,priority:2;not null" json:"media_type"`
	Title       string `gorm:"type:varchar(255)" json:"title"`
	Year        string `gorm:"type:varchar(4)" json:"year"`
	PosterURL   string `gorm:"type:varchar(500)" json:"poster_url"`

	LastStatus           int        `gorm:"index:idx_requester_status;default:1;not null" json:"last_status"`
	IsActive             bool       `gorm:"index:idx_active_created;default:true;not null" json:"is_active"`
	CompletionNotified   bool       `gorm:"default:false" json:"completion_notified"`
	CompletionNotifiedAt *time.Time `json:"completion_notified_at"`

	// Fingerprint identifiziert (media_id, media_type, requester_id).
	// ActiveToken ist 1 solange die Zeile aktiv ist und NULL danach, damit
	// der Unique-Index (fingerprint, active_token) genau eine aktive Zeile
	// pro Fingerprint zulässt (MySQL ignoriert NULL in Unique-Indizes).
	Fingerprint string `gorm:"type:char(64);uniqueIndex:idx_fingerprint_active" json:"-"`
	ActiveToken *bool  `gorm:"uniqueIndex:idx_fingerprint_active" json:"-"`

	FailureCount int        `gorm:"default:0;not null" json:"failure_count"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	LastErrorAt  *time.Time `json:"last_error_at"`
	RetryAfter   *time.Time `json:"retry_after"`

	// S3 object key once the poster has been mirrored, empty until then.
	PosterMirrorKey string `gorm:"type:varchar(255);default:''" json:"-"`

	History []StatusHistoryEntry `gorm:"foreignKey:TrackedRequestID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_active_created" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RequestFingerprint berechnet den deterministischen Hash, über den doppelte
// aktive Requests erkannt werden.
func RequestFingerprint(mediaID int64, mediaType string, requesterID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%d", mediaID, mediaType, requesterID)))
	return hex.EncodeToString(sum[:])
}

// BeforeCreate wird vor dem Erstellen eines neuen Datensatzes aufgerufen
func (r *TrackedRequest) BeforeCreate(tx *gorm.DB) error {
	if r.PublicID == "" {
		r.PublicID = uuid.New().String()
	}
	if r.Fingerprint == "" {
		r.Fingerprint = RequestFingerprint(r.MediaID, r.MediaType, r.RequesterID)
	}
	if r.IsActive && r.ActiveToken == nil {
		active := true
		r.ActiveToken = &active
	}
	return nil
}

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status int) bool {
	return status == StatusAvailable
}

// IsCancellableStatus reports whether a request in this status may still be
// cancelled by its owner.
func IsCancellableStatus(status int) bool {
	return status >= StatusPendingApproval && status <= StatusPartiallyAvailable
}

// StatusName liefert den anzeigbaren Namen eines Status.
func StatusName(status int) string {
	switch status {
	case StatusPendingApproval:
		return "Pending Approval"
	case StatusApproved:
		return "Approved"
	case StatusProcessing:
		return "Processing"
	case StatusPartiallyAvailable:
		return "Partially Available"
	case StatusAvailable:
		return "Available"
	case StatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown (%d)", status)
	}
}

// OwnedBy reports whether the request belongs to the given requester.
func (r *TrackedRequest) OwnedBy(requesterID int64) bool {
	return r.RequesterID == requesterID
}

// HasFailures reports whether the row carries unresolved failure state.
func (r *TrackedRequest) HasFailures() bool {
	return r.FailureCount > 0
}

// FindTrackedRequestByPublicID findet einen Request anhand seiner PublicID.
func FindTrackedRequestByPublicID(db *gorm.DB, publicID string) (*TrackedRequest, error) {
	var req TrackedRequest
	if err := db.Where("public_id = ?", publicID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindTrackedRequestByExternalID findet einen Request anhand der ID des
// externen Dienstes.
func FindTrackedRequestByExternalID(db *gorm.DB, externalID int64) (*TrackedRequest, error) {
	var req TrackedRequest
	if err := db.Where("external_request_id = ?", externalID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}
