package repository

import (
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// statusHistoryRepository implements the StatusHistoryRepository interface
type statusHistoryRepository struct {
	db *gorm.DB
}

// NewStatusHistoryRepository creates a new status-history repository instance
func NewStatusHistoryRepository(db *gorm.DB) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

// Append adds one entry to a request's audit trail
func (r *statusHistoryRepository) Append(entry *models.StatusHistoryEntry) error {
	return r.db.Create(entry).Error
}

// ForRequest returns a request's full trail, oldest first
func (r *statusHistoryRepository) ForRequest(requestID uint) ([]models.StatusHistoryEntry, error) {
	return models.FindHistoryForRequest(r.db, requestID)
}

// LatestForRequest returns the newest entry of a request's trail
func (r *statusHistoryRepository) LatestForRequest(requestID uint) (*models.StatusHistoryEntry, error) {
	return models.LatestHistoryEntry(r.db, requestID)
}

// MarkNotificationSent flags an entry as delivered to the user
func (r *statusHistoryRepository) MarkNotificationSent(entryID uint) error {
	return r.db.Model(&models.StatusHistoryEntry{}).
		Where("id = ?", entryID).
		Update("notification_sent", true).Error
}
