package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// trackedRequestRepository implements the TrackedRequestRepository interface
type trackedRequestRepository struct {
	db *gorm.DB
}

// NewTrackedRequestRepository creates a new tracked-request repository instance
func NewTrackedRequestRepository(db *gorm.DB) TrackedRequestRepository {
	return &trackedRequestRepository{db: db}
}

// CreateWithHistory inserts the request and its initial history entry in a
// single transaction so no row can exist without an audit trail.
func (r *trackedRequestRepository) CreateWithHistory(req *models.TrackedRequest, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		entry := models.StatusHistoryEntry{
			TrackedRequestID: req.ID,
			OldStatus:        0,
			NewStatus:        req.LastStatus,
			Reason:           reason,
		}
		return tx.Create(&entry).Error
	})
}

// GetByID retrieves a tracked request by its internal ID
func (r *trackedRequestRepository) GetByID(id uint) (*models.TrackedRequest, error) {
	var req models.TrackedRequest
	if err := r.db.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByPublicID retrieves a tracked request by its public UUID
func (r *trackedRequestRepository) GetByPublicID(publicID string) (*models.TrackedRequest, error) {
	var req models.TrackedRequest
	if err := r.db.Where("public_id = ?", publicID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByExternalID retrieves a tracked request by the external service's ID
func (r *trackedRequestRepository) GetByExternalID(externalID int64) (*models.TrackedRequest, error) {
	var req models.TrackedRequest
	if err := r.db.Where("external_request_id = ?", externalID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindActiveByFingerprint returns the active row for a fingerprint, if any
func (r *trackedRequestRepository) FindActiveByFingerprint(fingerprint string) (*models.TrackedRequest, error) {
	var req models.TrackedRequest
	err := r.db.Where("fingerprint = ? AND is_active = ?", fingerprint, true).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindActiveByCompound returns the active row for (media, requester) without
// relying on the fingerprint column. Needed for rows written before
// fingerprints existed.
func (r *trackedRequestRepository) FindActiveByCompound(mediaID int64, mediaType string, requesterID int64) (*models.TrackedRequest, error) {
	var req models.TrackedRequest
	err := r.db.Where(
		"media_id = ? AND media_type = ? AND requester_id = ? AND is_active = ?",
		mediaID, mediaType, requesterID, true,
	).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListActive returns every active row, oldest first, for the poll loop
func (r *trackedRequestRepository) ListActive() ([]models.TrackedRequest, error) {
	var reqs []models.TrackedRequest
	err := r.db.Where("is_active = ?", true).
		Order("created_at ASC").Find(&reqs).Error
	return reqs, err
}

// ListByRequester returns a user's requests, newest first
func (r *trackedRequestRepository) ListByRequester(requesterID int64, activeOnly bool, limit int) ([]models.TrackedRequest, error) {
	var reqs []models.TrackedRequest
	q := r.db.Where("requester_id = ?", requesterID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListRetryable returns active rows parked for a background retry whose
// retry_after has elapsed and whose failure count is below the ceiling.
func (r *trackedRequestRepository) ListRetryable(now time.Time, ceiling, limit int) ([]models.TrackedRequest, error) {
	var reqs []models.TrackedRequest
	q := r.db.Where(
		"is_active = ? AND failure_count > 0 AND failure_count < ? AND retry_after IS NOT NULL AND retry_after <= ?",
		true, ceiling, now,
	).Order("retry_after ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reqs).Error
	return reqs, err
}

// ApplyStatusChange updates the row and appends the history entry atomically
func (r *trackedRequestRepository) ApplyStatusChange(requestID uint, change StatusChange) (*models.StatusHistoryEntry, error) {
	var entry models.StatusHistoryEntry
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"updated_at": time.Now(),
		}
		// The cancel sentinel never lands in last_status.
		if change.NewStatus != models.StatusCancelled {
			updates["last_status"] = change.NewStatus
		}
		if change.Deactivate {
			updates["is_active"] = false
			updates["active_token"] = nil
		}
		if change.ResetFailures {
			updates["failure_count"] = 0
			updates["last_error"] = ""
			updates["last_error_at"] = nil
			updates["retry_after"] = nil
		}
		if err := tx.Model(&models.TrackedRequest{}).
			Where("id = ?", requestID).
			Updates(updates).Error; err != nil {
			return err
		}

		entry = models.StatusHistoryEntry{
			TrackedRequestID: requestID,
			OldStatus:        change.OldStatus,
			NewStatus:        change.NewStatus,
			Reason:           change.Reason,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Deactivate retires a row, recording the reason in the history trail. The
// last_status is left untouched so the trail stays consistent with the row.
func (r *trackedRequestRepository) Deactivate(requestID uint, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var req models.TrackedRequest
		if err := tx.First(&req, requestID).Error; err != nil {
			return err
		}
		if err := tx.Model(&req).Updates(map[string]interface{}{
			"is_active":    false,
			"active_token": nil,
		}).Error; err != nil {
			return err
		}
		entry := models.StatusHistoryEntry{
			TrackedRequestID: requestID,
			OldStatus:        req.LastStatus,
			NewStatus:        req.LastStatus,
			Reason:           reason,
		}
		return tx.Create(&entry).Error
	})
}

// MarkFailed annotates a row with one observed failure. Single statement, so
// one failing row can never corrupt its siblings.
func (r *trackedRequestRepository) MarkFailed(requestID uint, errMsg string, retryAfter time.Time) error {
	now := time.Now()
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"failure_count": gorm.Expr("failure_count + 1"),
			"last_error":    errMsg,
			"last_error_at": now,
			"retry_after":   retryAfter,
			"updated_at":    now,
		}).Error
}

// ResetFailureState clears failure bookkeeping after a successful attempt
func (r *trackedRequestRepository) ResetFailureState(requestID uint) error {
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"failure_count": 0,
			"last_error":    "",
			"last_error_at": nil,
			"retry_after":   nil,
			"updated_at":    time.Now(),
		}).Error
}

// UpdateExternalID records a new external service ID after a re-submission
func (r *trackedRequestRepository) UpdateExternalID(requestID uint, externalID int64) error {
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Update("external_request_id", externalID).Error
}

// UpdateFingerprint heals a legacy row found through the compound lookup
func (r *trackedRequestRepository) UpdateFingerprint(requestID uint, fingerprint string) error {
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Update("fingerprint", fingerprint).Error
}

// MarkCompletionNotified flags a completed row as announced to the user
func (r *trackedRequestRepository) MarkCompletionNotified(requestID uint) error {
	now := time.Now()
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"completion_notified":    true,
			"completion_notified_at": now,
		}).Error
}

// SetPosterMirrorKey records the S3 key of the mirrored poster artwork
func (r *trackedRequestRepository) SetPosterMirrorKey(requestID uint, key string) error {
	return r.db.Model(&models.TrackedRequest{}).
		Where("id = ?", requestID).
		Update("poster_mirror_key", key).Error
}

// ListCompletedWithoutMirror returns completed rows whose poster has not been
// mirrored yet
func (r *trackedRequestRepository) ListCompletedWithoutMirror(limit int) ([]models.TrackedRequest, error) {
	var reqs []models.TrackedRequest
	q := r.db.Where(
		"last_status = ? AND poster_url <> '' AND poster_mirror_key = ''",
		models.StatusAvailable,
	).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reqs).Error
	return reqs, err
}

// Statistics aggregates the request counters for the stats endpoint
func (r *trackedRequestRepository) Statistics() (*RequestStatistics, error) {
	stats := &RequestStatistics{
		ByStatus:    make(map[string]int64),
		ByMediaType: make(map[string]int64),
	}

	if err := r.db.Model(&models.TrackedRequest{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.TrackedRequest{}).
		Where("is_active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.TrackedRequest{}).
		Where("last_status = ?", models.StatusAvailable).Count(&stats.Completed).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		LastStatus int
		Count      int64
	}
	var byStatus []statusCount
	if err := r.db.Model(&models.TrackedRequest{}).
		Select("last_status, COUNT(*) AS count").
		Group("last_status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, sc := range byStatus {
		stats.ByStatus[models.StatusName(sc.LastStatus)] = sc.Count
	}

	type typeCount struct {
		MediaType string
		Count     int64
	}
	var byType []typeCount
	if err := r.db.Model(&models.TrackedRequest{}).
		Select("media_type, COUNT(*) AS count").
		Group("media_type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, tc := range byType {
		stats.ByMediaType[tc.MediaType] = tc.Count
	}

	now := time.Now()
	if err := r.db.Model(&models.TrackedRequest{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&stats.Last24h).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.TrackedRequest{}).
		Where("created_at >= ?", now.Add(-7*24*time.Hour)).
		Count(&stats.Last7d).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteInactiveOlderThan removes stale inactive rows. History entries go
// with them via the foreign-key cascade.
func (r *trackedRequestRepository) DeleteInactiveOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.TrackedRequest{})
	return result.RowsAffected, result.Error
}

// Count returns the total number of tracked requests
func (r *trackedRequestRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.TrackedRequest{}).Count(&count).Error
	return count, err
}
