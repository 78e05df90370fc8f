package models

import (
	"time"

	"gorm.io/gorm"
)

// StatusHistoryEntry ist der Audit-Trail eines TrackedRequest. Einträge
// werden nur angehängt, nie verändert; old_status 0 markiert die initiale
// Einreichung.
type StatusHistoryEntry struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TrackedRequestID uint           `gorm:"index;not null" json:"tracked_request_id"`
	OldStatus        int            `gorm:"default:0;not null" json:"old_status"`
	NewStatus        int            `gorm:"not null" json:"new_status"`
	ChangedAt        time.Time      `gorm:"index;not null" json:"changed_at"`
	NotificationSent bool           `gorm:"default:false" json:"notification_sent"`
	Reason           string         `gorm:"type:varchar(255)" json:"reason"`
	TrackedRequest   TrackedRequest `gorm:"foreignKey:TrackedRequestID" json:"-"`
}

// BeforeCreate setzt den Zeitstempel, falls der Aufrufer keinen mitgibt.
func (h *StatusHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if h.ChangedAt.IsZero() {
		h.ChangedAt = time.Now()
	}
	return nil
}

// FindHistoryForRequest liefert alle Einträge eines Requests in zeitlicher
// Reihenfolge (älteste zuerst).
func FindHistoryForRequest(db *gorm.DB, trackedRequestID uint) ([]StatusHistoryEntry, error) {
	var entries []StatusHistoryEntry
	err := db.Where("tracked_request_id = ?", trackedRequestID).
		Order("changed_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// LatestHistoryEntry liefert den jüngsten Eintrag eines Requests oder nil.
func LatestHistoryEntry(db *gorm.DB, trackedRequestID uint) (*StatusHistoryEntry, error) {
	var entry StatusHistoryEntry
	err := db.Where("tracked_request_id = ?", trackedRequestID).
		Order("changed_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkNotificationSent markiert einen Eintrag als zugestellt.
func (h *StatusHistoryEntry) MarkNotificationSent(db *gorm.DB) error {
	h.NotificationSent = true
	return db.Model(h).Update("notification_sent", true).Error
}
