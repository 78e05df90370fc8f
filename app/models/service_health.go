package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Known service names tracked by the health monitor.
const (
	ServiceJellyseerr = "jellyseerr"
	ServiceDatabase   = "database"
	ServiceCache      = "cache"
)

// ServiceHealth holds the latest probe result per external collaborator,
// including a consecutive-failure counter for alerting thresholds.
type ServiceHealth struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ServiceName         string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"service_name"`
	IsHealthy           bool       `gorm:"default:true;not null" json:"is_healthy"`
	LastCheckAt         time.Time  `gorm:"not null" json:"last_check_at"`
	LastSuccessAt       *time.Time `json:"last_success_at"`
	ConsecutiveFailures int        `gorm:"default:0;not null" json:"consecutive_failures"`
	ResponseTimeMs      *int       `json:"response_time_ms"`
	LastError           string     `gorm:"type:text" json:"last_error"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordHealthCheck upserts the probe result for a service. A success resets
// the consecutive-failure counter, a failure increments it.
func RecordHealthCheck(db *gorm.DB, serviceName string, healthy bool, responseTimeMs *int, probeErr string) error {
	now := time.Now()
	row := ServiceHealth{
		ServiceName:    serviceName,
		IsHealthy:      healthy,
		LastCheckAt:    now,
		ResponseTimeMs: responseTimeMs,
		LastError:      probeErr,
	}
	if healthy {
		row.LastSuccessAt = &now
		row.ConsecutiveFailures = 0
		row.LastError = ""
	} else {
		row.ConsecutiveFailures = 1
	}

	assignments := map[string]interface{}{
		"is_healthy":       healthy,
		"last_check_at":    now,
		"response_time_ms": responseTimeMs,
	}
	if healthy {
		assignments["last_success_at"] = now
		assignments["consecutive_failures"] = 0
		assignments["last_error"] = ""
	} else {
		assignments["consecutive_failures"] = gorm.Expr("consecutive_failures + 1")
		assignments["last_error"] = probeErr
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_name"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

// FindAllServiceHealth liefert alle bekannten Dienste mit ihrem Zustand.
func FindAllServiceHealth(db *gorm.DB) ([]ServiceHealth, error) {
	var rows []ServiceHealth
	err := db.Order("service_name ASC").Find(&rows).Error
	return rows, err
}

// FindServiceHealth liefert den Zustand eines einzelnen Dienstes.
func FindServiceHealth(db *gorm.DB, serviceName string) (*ServiceHealth, error) {
	var row ServiceHealth
	if err := db.Where("service_name = ?", serviceName).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
