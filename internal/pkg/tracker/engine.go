package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/jellyseerr"
	"github.com/trackarr/trackarr/internal/pkg/retry"
)

// FailureCeiling is the number of recorded failures after which a request is
// permanently deactivated instead of retried.
const FailureCeiling = 5

// DefaultRetryBatchLimit bounds one background pass over failed requests.
const DefaultRetryBatchLimit = 10

const maxFailuresReason = "Maximum retry attempts exceeded"

// RequestService is the slice of the external client the engine depends on.
// All methods must be safe for concurrent use.
type RequestService interface {
	SubmitRequest(ctx context.Context, mediaID int64, mediaType string) (*jellyseerr.RequestDetail, error)
	GetRequest(ctx context.Context, externalID int64) (*jellyseerr.RequestDetail, error)
	CancelRequest(ctx context.Context, externalID int64) error
}

// Options tune the engine. Zero values fall back to production defaults;
// tests shrink the delays.
type Options struct {
	SubmitPolicy   retry.Policy
	PollPolicy     retry.Policy
	ResubmitPolicy retry.Policy

	// FailureRetryDelay parks a row after a poll failure until the
	// background retry picks it up.
	FailureRetryDelay time.Duration

	// CancelTimeout bounds the single upstream cancel call.
	CancelTimeout time.Duration

	Now func() time.Time
}

// Engine owns every mutation of tracked requests: submission, status
// polling, cancellation and failure retries. The store and the external
// client are injected; the engine holds no global state.
type Engine struct {
	requests repository.TrackedRequestRepository
	history  repository.StatusHistoryRepository
	client   RequestService

	submitPolicy   retry.Policy
	pollPolicy     retry.Policy
	resubmitPolicy retry.Policy

	failureRetryDelay time.Duration
	cancelTimeout     time.Duration
	now               func() time.Time
}

// NewEngine wires an engine onto the given repositories and client.
func NewEngine(repos *repository.Repositories, client RequestService, opts Options) *Engine {
	e := &Engine{
		requests:          repos.TrackedRequest,
		history:           repos.StatusHistory,
		client:            client,
		submitPolicy:      opts.SubmitPolicy,
		pollPolicy:        opts.PollPolicy,
		resubmitPolicy:    opts.ResubmitPolicy,
		failureRetryDelay: opts.FailureRetryDelay,
		cancelTimeout:     opts.CancelTimeout,
		now:               opts.Now,
	}
	if e.submitPolicy == (retry.Policy{}) {
		e.submitPolicy = retry.Policy{Timeout: 30 * time.Second, MaxRetries: 2, RetryDelay: 5 * time.Second}
	}
	if e.pollPolicy == (retry.Policy{}) {
		e.pollPolicy = retry.Policy{Timeout: 15 * time.Second, MaxRetries: 1, RetryDelay: 5 * time.Second}
	}
	if e.resubmitPolicy == (retry.Policy{}) {
		e.resubmitPolicy = retry.Policy{Timeout: 30 * time.Second, MaxRetries: 1, RetryDelay: 5 * time.Second}
	}
	if e.failureRetryDelay <= 0 {
		e.failureRetryDelay = 30 * time.Minute
	}
	if e.cancelTimeout <= 0 {
		e.cancelTimeout = 15 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Submit files a media request upstream and starts tracking it. A second
// submit for the same (media, requester) while the first is active returns
// the existing row without touching the external service; the bool reports
// whether a new row was created. No row is ever written for a submission
// the external service did not confirm.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*models.TrackedRequest, bool, error) {
	if in.MediaID <= 0 || in.RequesterID == 0 {
		return nil, false, fmt.Errorf("invalid submit input: media_id=%d requester_id=%d", in.MediaID, in.RequesterID)
	}
	if in.MediaType != models.MediaTypeMovie && in.MediaType != models.MediaTypeTV && in.MediaType != models.MediaTypeAnime {
		return nil, false, fmt.Errorf("invalid media type %q", in.MediaType)
	}

	if existing := e.findActiveDuplicate(in.MediaID, in.MediaType, in.RequesterID); existing != nil {
		log.Infof("[Tracker] Duplicate submit for media %d (%s) by user %d, returning request %d",
			in.MediaID, in.MediaType, in.RequesterID, existing.ID)
		return existing, false, nil
	}

	detail, cerr := retry.Do(ctx, e.submitPolicy, func(ctx context.Context) (*jellyseerr.RequestDetail, error) {
		return e.client.SubmitRequest(ctx, in.MediaID, in.MediaType)
	})
	if cerr != nil {
		if cerr.Kind == retry.KindMediaNotFound {
			log.Warnf("[Tracker] Media %d (%s) not found upstream, nothing to track", in.MediaID, in.MediaType)
			return nil, false, fmt.Errorf("%w: %v", ErrMediaNotFound, cerr)
		}
		log.Errorf("[Tracker] Submit for media %d (%s) by user %d failed: %v",
			in.MediaID, in.MediaType, in.RequesterID, cerr)
		return nil, false, cerr
	}

	// Another concurrent submit may have won the race while our external
	// call was in flight.
	if winner, err := e.requests.GetByExternalID(detail.ID); err == nil {
		log.Infof("[Tracker] External request %d already tracked as %d, returning existing row", detail.ID, winner.ID)
		return winner, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Tracker] Race re-check for external request %d failed: %v", detail.ID, err)
	}

	initialStatus := detail.EffectiveStatus()
	if initialStatus == 0 {
		log.Warnf("[Tracker] External request %d reported no status, assuming pending approval", detail.ID)
		initialStatus = models.StatusPendingApproval
	}

	externalID := detail.ID
	req := &models.TrackedRequest{
		ExternalRequestID: &externalID,
		RequesterID:       in.RequesterID,
		ChannelID:         in.ChannelID,
		MediaID:           in.MediaID,
		MediaType:         in.MediaType,
		Title:             in.Title,
		Year:              in.Year,
		PosterURL:         in.PosterURL,
		LastStatus:        initialStatus,
		IsActive:          true,
	}

	if err := e.requests.CreateWithHistory(req, "Request submitted"); err != nil {
		if isDuplicateKey(err) {
			// The unique constraints caught a concurrent insert. Hand the
			// caller whichever row won.
			if winner, werr := e.requests.GetByExternalID(detail.ID); werr == nil {
				return winner, false, nil
			}
			if winner := e.findActiveDuplicate(in.MediaID, in.MediaType, in.RequesterID); winner != nil {
				return winner, false, nil
			}
		}
		log.Errorf("[Tracker] Persisting request for media %d by user %d failed: %v", in.MediaID, in.RequesterID, err)
		return nil, false, fmt.Errorf("persist tracked request: %w", err)
	}

	log.Infof("[Tracker] Tracking request %d: media %d (%s) %q for user %d, status %s",
		req.ID, in.MediaID, in.MediaType, in.Title, in.RequesterID, models.StatusName(initialStatus))
	return req, true, nil
}

// findActiveDuplicate looks up an active row for (media, requester): by
// fingerprint first, then by the compound key for rows that predate the
// fingerprint column. Legacy hits are healed in place.
func (e *Engine) findActiveDuplicate(mediaID int64, mediaType string, requesterID int64) *models.TrackedRequest {
	fingerprint := models.RequestFingerprint(mediaID, mediaType, requesterID)

	row, err := e.requests.FindActiveByFingerprint(fingerprint)
	if err == nil {
		return row
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Tracker] Fingerprint lookup failed: %v", err)
	}

	row, err = e.requests.FindActiveByCompound(mediaID, mediaType, requesterID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Tracker] Compound duplicate lookup failed: %v", err)
		}
		return nil
	}

	if row.Fingerprint == "" {
		log.Infof("[Tracker] Healing missing fingerprint on request %d", row.ID)
		if err := e.requests.UpdateFingerprint(row.ID, fingerprint); err != nil {
			log.Errorf("[Tracker] Fingerprint heal for request %d failed: %v", row.ID, err)
		}
	}
	return row
}

// CheckForUpdates polls the external service once for every active row and
// persists observed transitions. One row's failure never blocks the others;
// each row's update is its own transaction. Unchanged rows are not touched.
func (e *Engine) CheckForUpdates(ctx context.Context) ([]StatusUpdate, error) {
	rows, err := e.requests.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active requests: %w", err)
	}

	updates := make([]StatusUpdate, 0)
	for i := range rows {
		if ctx.Err() != nil {
			return updates, ctx.Err()
		}
		row := rows[i]
		if row.ExternalRequestID == nil {
			log.Warnf("[Tracker] Active request %d has no external id, skipping", row.ID)
			continue
		}
		externalID := *row.ExternalRequestID

		detail, cerr := retry.Do(ctx, e.pollPolicy, func(ctx context.Context) (*jellyseerr.RequestDetail, error) {
			return e.client.GetRequest(ctx, externalID)
		})
		if cerr != nil {
			if cerr.Kind == retry.KindMediaNotFound {
				log.Warnf("[Tracker] Request %d no longer exists upstream, deactivating", row.ID)
				if err := e.requests.Deactivate(row.ID, "Request no longer exists upstream"); err != nil {
					log.Errorf("[Tracker] Deactivating request %d failed: %v", row.ID, err)
				}
				continue
			}
			// One recorded failure per poll tick, regardless of how many
			// attempts the retry policy burned.
			e.markRowFailed(&row, cerr, e.failureRetryDelay)
			continue
		}

		newStatus := detail.EffectiveStatus()
		if newStatus == row.LastStatus {
			continue
		}

		if !ValidTransition(row.LastStatus, newStatus) {
			log.Warnf("[Tracker] Anomalous transition %s -> %s reported for request %d, applying anyway",
				models.StatusName(row.LastStatus), models.StatusName(newStatus), row.ID)
		}

		change := repository.StatusChange{
			OldStatus:     row.LastStatus,
			NewStatus:     newStatus,
			Deactivate:    models.IsTerminalStatus(newStatus),
			ResetFailures: row.FailureCount > 0,
		}
		entry, err := e.requests.ApplyStatusChange(row.ID, change)
		if err != nil {
			log.Errorf("[Tracker] Persisting transition %d -> %d for request %d failed: %v",
				change.OldStatus, newStatus, row.ID, err)
			continue
		}

		log.Infof("[Tracker] Request %d: %s -> %s", row.ID,
			models.StatusName(change.OldStatus), models.StatusName(newStatus))

		row.LastStatus = newStatus
		if change.Deactivate {
			row.IsActive = false
		}
		if change.ResetFailures {
			row.FailureCount = 0
			row.LastError = ""
			row.LastErrorAt = nil
			row.RetryAfter = nil
		}
		updates = append(updates, StatusUpdate{
			Request:        &row,
			OldStatus:      change.OldStatus,
			NewStatus:      newStatus,
			HistoryEntryID: entry.ID,
		})
	}
	return updates, nil
}

// Cancel withdraws an active request owned by the requester. The upstream
// cancel is a single call; a failure leaves the row untouched and is never
// retried automatically.
func (e *Engine) Cancel(ctx context.Context, externalID, requesterID int64) (bool, error) {
	row, err := e.requests.GetByExternalID(externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrRequestNotFound
		}
		return false, fmt.Errorf("load request %d: %w", externalID, err)
	}
	if !row.OwnedBy(requesterID) {
		return false, ErrNotOwner
	}
	if !row.IsActive || !models.IsCancellableStatus(row.LastStatus) {
		return false, ErrNotCancellable
	}

	cancelCtx, cancel := context.WithTimeout(ctx, e.cancelTimeout)
	defer cancel()
	if err := e.client.CancelRequest(cancelCtx, externalID); err != nil {
		log.Errorf("[Tracker] Upstream cancel of request %d failed: %v", externalID, err)
		return false, fmt.Errorf("cancel request %d upstream: %w", externalID, err)
	}

	change := repository.StatusChange{
		OldStatus:  row.LastStatus,
		NewStatus:  models.StatusCancelled,
		Reason:     "Cancelled by user",
		Deactivate: true,
	}
	if _, err := e.requests.ApplyStatusChange(row.ID, change); err != nil {
		// Upstream is already cancelled; the next poll will observe the
		// vanished request and retire the row.
		log.Errorf("[Tracker] Recording cancellation of request %d failed: %v", row.ID, err)
		return false, fmt.Errorf("record cancellation: %w", err)
	}

	log.Infof("[Tracker] Request %d cancelled by user %d", externalID, requesterID)
	return true, nil
}

// ProcessFailedRequests re-submits parked rows whose retry_after has
// elapsed, at most batchLimit of them per pass. Rows at the failure ceiling
// are permanently deactivated.
func (e *Engine) ProcessFailedRequests(ctx context.Context, batchLimit int) (RetryStats, error) {
	var stats RetryStats
	if batchLimit <= 0 {
		batchLimit = DefaultRetryBatchLimit
	}

	rows, err := e.requests.ListRetryable(e.now(), FailureCeiling, batchLimit)
	if err != nil {
		return stats, fmt.Errorf("list retryable requests: %w", err)
	}

	for i := range rows {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		// Reload: the poll loop may have advanced the row since selection.
		current, err := e.requests.GetByID(rows[i].ID)
		if err != nil {
			log.Errorf("[Tracker] Reloading request %d failed: %v", rows[i].ID, err)
			continue
		}
		if !current.IsActive || current.FailureCount == 0 {
			continue
		}
		if current.FailureCount >= FailureCeiling {
			log.Warnf("[Tracker] Request %d exceeded %d failures, deactivating", current.ID, FailureCeiling)
			if err := e.requests.Deactivate(current.ID, maxFailuresReason); err != nil {
				log.Errorf("[Tracker] Deactivating request %d failed: %v", current.ID, err)
			}
			stats.MaxFailuresReached++
			continue
		}

		mediaID, mediaType := current.MediaID, current.MediaType
		detail, cerr := retry.Do(ctx, e.resubmitPolicy, func(ctx context.Context) (*jellyseerr.RequestDetail, error) {
			return e.client.SubmitRequest(ctx, mediaID, mediaType)
		})
		if cerr != nil {
			delay := cerr.SuggestedDelay()
			if delay <= 0 {
				delay = 10 * time.Minute
			}
			if e.markRowFailed(current, cerr, delay) {
				stats.MaxFailuresReached++
			} else {
				stats.FailedAgain++
			}
			continue
		}

		if current.ExternalRequestID == nil || *current.ExternalRequestID != detail.ID {
			if err := e.requests.UpdateExternalID(current.ID, detail.ID); err != nil {
				log.Errorf("[Tracker] Updating external id of request %d failed: %v", current.ID, err)
			}
		}
		if err := e.requests.ResetFailureState(current.ID); err != nil {
			log.Errorf("[Tracker] Resetting failure state of request %d failed: %v", current.ID, err)
		}
		log.Infof("[Tracker] Request %d resubmitted, external id %d", current.ID, detail.ID)
		stats.Retried++
	}
	return stats, nil
}

// markRowFailed records one failure and parks the row until now+delay. It
// reports whether the failure ceiling was reached and the row deactivated.
func (e *Engine) markRowFailed(row *models.TrackedRequest, cerr *retry.ClassifiedError, delay time.Duration) bool {
	retryAfter := e.now().Add(delay)
	if err := e.requests.MarkFailed(row.ID, cerr.Error(), retryAfter); err != nil {
		log.Errorf("[Tracker] Recording failure for request %d failed: %v", row.ID, err)
		return false
	}
	log.Warnf("[Tracker] Request %d failed (%s), failure %d/%d, retry after %s",
		row.ID, cerr.Kind, row.FailureCount+1, FailureCeiling, retryAfter.Format(time.RFC3339))

	if row.FailureCount+1 >= FailureCeiling {
		log.Warnf("[Tracker] Request %d reached the failure ceiling, deactivating", row.ID)
		if err := e.requests.Deactivate(row.ID, maxFailuresReason); err != nil {
			log.Errorf("[Tracker] Deactivating request %d failed: %v", row.ID, err)
			return false
		}
		return true
	}
	return false
}

// MarkUpdatesNotified flags delivered updates: the history entries as sent,
// completed requests as completion-notified.
func (e *Engine) MarkUpdatesNotified(updates []StatusUpdate) {
	for _, u := range updates {
		if u.HistoryEntryID != 0 {
			if err := e.history.MarkNotificationSent(u.HistoryEntryID); err != nil {
				log.Errorf("[Tracker] Marking history entry %d as sent failed: %v", u.HistoryEntryID, err)
			}
		}
		if u.NewStatus == models.StatusAvailable && u.Request != nil {
			if err := e.requests.MarkCompletionNotified(u.Request.ID); err != nil {
				log.Errorf("[Tracker] Marking request %d completion-notified failed: %v", u.Request.ID, err)
			}
		}
	}
}

// GetUserRequests returns a requester's rows, newest first.
func (e *Engine) GetUserRequests(requesterID int64, activeOnly bool, limit int) ([]models.TrackedRequest, error) {
	return e.requests.ListByRequester(requesterID, activeOnly, limit)
}

// GetRequest returns a row and its full history by public id.
func (e *Engine) GetRequest(publicID string) (*models.TrackedRequest, []models.StatusHistoryEntry, error) {
	row, err := e.requests.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, err
	}
	history, err := e.history.ForRequest(row.ID)
	if err != nil {
		return nil, nil, err
	}
	return row, history, nil
}

// Statistics returns the aggregate request counters.
func (e *Engine) Statistics() (*repository.RequestStatistics, error) {
	return e.requests.Statistics()
}

// CleanupInactiveRequests deletes inactive rows untouched for the given
// number of days. History entries follow via the foreign-key cascade.
func (e *Engine) CleanupInactiveRequests(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := e.now().AddDate(0, 0, -olderThanDays)
	deleted, err := e.requests.DeleteInactiveOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup inactive requests: %w", err)
	}
	if deleted > 0 {
		log.Infof("[Tracker] Cleaned up %d inactive requests older than %d days", deleted, olderThanDays)
	}
	return deleted, nil
}

// ReconcileHistory repairs rows whose audit trail disagrees with their
// current status. Cancellation sentinels are exempt. Returns the number of
// corrective entries written.
func (e *Engine) ReconcileHistory(ctx context.Context) (int, error) {
	rows, err := e.requests.ListActive()
	if err != nil {
		return 0, fmt.Errorf("list active requests: %w", err)
	}

	repaired := 0
	for i := range rows {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		row := rows[i]

		latest, err := e.history.LatestForRequest(row.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("[Tracker] Request %d has no history, writing initial entry", row.ID)
				entry := &models.StatusHistoryEntry{
					TrackedRequestID: row.ID,
					OldStatus:        0,
					NewStatus:        row.LastStatus,
					Reason:           "Consistency repair",
				}
				if err := e.history.Append(entry); err != nil {
					log.Errorf("[Tracker] Repairing history of request %d failed: %v", row.ID, err)
					continue
				}
				repaired++
			} else {
				log.Errorf("[Tracker] Loading history of request %d failed: %v", row.ID, err)
			}
			continue
		}

		if latest.NewStatus == row.LastStatus || latest.NewStatus == models.StatusCancelled {
			continue
		}

		log.Warnf("[Tracker] Request %d history ends at %s but row is %s, repairing",
			row.ID, models.StatusName(latest.NewStatus), models.StatusName(row.LastStatus))
		entry := &models.StatusHistoryEntry{
			TrackedRequestID: row.ID,
			OldStatus:        latest.NewStatus,
			NewStatus:        row.LastStatus,
			Reason:           "Consistency repair",
		}
		if err := e.history.Append(entry); err != nil {
			log.Errorf("[Tracker] Repairing history of request %d failed: %v", row.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// isDuplicateKey recognizes unique-constraint violations from the store.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
