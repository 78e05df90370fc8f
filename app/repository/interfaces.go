package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// StatusChange describes one observed transition to persist: the row update
// plus its history entry, committed in a single transaction.
type StatusChange struct {
	OldStatus     int
	NewStatus     int
	Reason        string
	Deactivate    bool
	ResetFailures bool
}

// RequestStatistics aggregates the counters served by the stats endpoint.
type RequestStatistics struct {
	Total       int64            `json:"total"`
	Active      int64            `json:"active"`
	Completed   int64            `json:"completed"`
	ByStatus    map[string]int64 `json:"by_status"`
	ByMediaType map[string]int64 `json:"by_media_type"`
	Last24h     int64            `json:"last_24h"`
	Last7d      int64            `json:"last_7d"`
}

// TrackedRequestRepository defines the interface for tracked-request database operations
type TrackedRequestRepository interface {
	// CreateWithHistory inserts the row and its initial history entry in one
	// transaction. A row must never exist without its first history entry.
	CreateWithHistory(req *models.TrackedRequest, reason string) error
	GetByID(id uint) (*models.TrackedRequest, error)
	GetByPublicID(publicID string) (*models.TrackedRequest, error)
	GetByExternalID(externalID int64) (*models.TrackedRequest, error)
	FindActiveByFingerprint(fingerprint string) (*models.TrackedRequest, error)
	FindActiveByCompound(mediaID int64, mediaType string, requesterID int64) (*models.TrackedRequest, error)
	ListActive() ([]models.TrackedRequest, error)
	ListByRequester(requesterID int64, activeOnly bool, limit int) ([]models.TrackedRequest, error)
	ListRetryable(now time.Time, ceiling, limit int) ([]models.TrackedRequest, error)
	// ApplyStatusChange updates last_status/is_active and appends the history
	// entry atomically. Returns the created history entry.
	ApplyStatusChange(requestID uint, change StatusChange) (*models.StatusHistoryEntry, error)
	// Deactivate retires a row without a status change, appending a history
	// entry that records the reason.
	Deactivate(requestID uint, reason string) error
	MarkFailed(requestID uint, errMsg string, retryAfter time.Time) error
	ResetFailureState(requestID uint) error
	UpdateExternalID(requestID uint, externalID int64) error
	UpdateFingerprint(requestID uint, fingerprint string) error
	MarkCompletionNotified(requestID uint) error
	SetPosterMirrorKey(requestID uint, key string) error
	ListCompletedWithoutMirror(limit int) ([]models.TrackedRequest, error)
	Statistics() (*RequestStatistics, error)
	DeleteInactiveOlderThan(cutoff time.Time) (int64, error)
	Count() (int64, error)
}

// StatusHistoryRepository defines the interface for status-history operations
type StatusHistoryRepository interface {
	Append(entry *models.StatusHistoryEntry) error
	ForRequest(requestID uint) ([]models.StatusHistoryEntry, error)
	LatestForRequest(requestID uint) (*models.StatusHistoryEntry, error)
	MarkNotificationSent(entryID uint) error
}

// ServiceHealthRepository defines the interface for service-health operations
type ServiceHealthRepository interface {
	Record(serviceName string, healthy bool, responseTimeMs *int, probeErr string) error
	GetAll() ([]models.ServiceHealth, error)
	Get(serviceName string) (*models.ServiceHealth, error)
}

// BotConfigurationRepository defines the interface for runtime configuration
type BotConfigurationRepository interface {
	LoadSettings() (*models.TrackerSettings, error)
	SetValue(key, value, valueType, updatedBy string) error
	GetValue(key string) (string, error)
	ListAll() ([]models.BotConfiguration, error)
}

// APIClientRepository defines the interface for API client operations
type APIClientRepository interface {
	Create(client *models.APIClient) error
	GetByID(id uint) (*models.APIClient, error)
	GetByKeyHash(hash string) (*models.APIClient, error)
	TouchUsage(clientID uint) error
	List() ([]models.APIClient, error)
	// Revoke deactivates the client and stamps the revocation time. The row
	// stays for auditing.
	Revoke(clientID uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	TrackedRequest   TrackedRequestRepository
	StatusHistory    StatusHistoryRepository
	ServiceHealth    ServiceHealthRepository
	BotConfiguration BotConfigurationRepository
	APIClient        APIClientRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		TrackedRequest:   NewTrackedRequestRepository(db),
		StatusHistory:    NewStatusHistoryRepository(db),
		ServiceHealth:    NewServiceHealthRepository(db),
		BotConfiguration: NewBotConfigurationRepository(db),
		APIClient:        NewAPIClientRepository(db),
	}
}
