package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// BotConfiguration is a typed key/value row for runtime-tunable knobs that
// operators adjust without redeploying (poll cadence, batch sizes).
type BotConfiguration struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ConfigKey   string    `gorm:"column:config_key;size:100;not null;uniqueIndex" json:"config_key" validate:"required,min=1,max=100"`
	ConfigValue string    `gorm:"type:text" json:"config_value"`
	ValueType   string    `gorm:"size:20;not null" json:"value_type" validate:"required,oneof=string integer boolean duration"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	UpdatedBy   string    `gorm:"type:varchar(100)" json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TrackerSettings is the in-memory view of the tunable tracker knobs.
type TrackerSettings struct {
	PollInterval        time.Duration `json:"poll_interval" validate:"required,min=10000000000"`
	FailedRetryInterval time.Duration `json:"failed_retry_interval" validate:"required"`
	HealthInterval      time.Duration `json:"health_interval" validate:"required"`
	MaintenanceInterval time.Duration `json:"maintenance_interval" validate:"required"`
	RetryBatchLimit     int           `json:"retry_batch_limit" validate:"required,min=1,max=100"`
	CleanupAfterDays    int           `json:"cleanup_after_days" validate:"required,min=1"`
}

var (
	trackerSettings   *TrackerSettings
	trackerSettingsMu sync.RWMutex
)

// DefaultTrackerSettings liefert die eingebauten Standardwerte.
func DefaultTrackerSettings() *TrackerSettings {
	return &TrackerSettings{
		PollInterval:        60 * time.Second,
		FailedRetryInterval: 600 * time.Second,
		HealthInterval:      300 * time.Second,
		MaintenanceInterval: 1800 * time.Second,
		RetryBatchLimit:     10,
		CleanupAfterDays:    30,
	}
}

// GetTrackerSettings returns the currently loaded settings, falling back to
// defaults when LoadTrackerSettings has not run yet.
func GetTrackerSettings() *TrackerSettings {
	trackerSettingsMu.RLock()
	defer trackerSettingsMu.RUnlock()
	if trackerSettings == nil {
		return DefaultTrackerSettings()
	}
	return trackerSettings
}

// LoadTrackerSettings loads configuration rows from the database into memory,
// leaving defaults in place for keys that are absent or malformed.
func LoadTrackerSettings(db *gorm.DB) error {
	trackerSettingsMu.Lock()
	defer trackerSettingsMu.Unlock()

	settings := DefaultTrackerSettings()

	var rows []BotConfiguration
	if err := db.Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load bot configuration: %w", err)
	}

	for _, row := range rows {
		switch row.ConfigKey {
		case "poll_interval":
			if d, err := time.ParseDuration(row.ConfigValue); err == nil {
				settings.PollInterval = d
			}
		case "failed_retry_interval":
			if d, err := time.ParseDuration(row.ConfigValue); err == nil {
				settings.FailedRetryInterval = d
			}
		case "health_interval":
			if d, err := time.ParseDuration(row.ConfigValue); err == nil {
				settings.HealthInterval = d
			}
		case "maintenance_interval":
			if d, err := time.ParseDuration(row.ConfigValue); err == nil {
				settings.MaintenanceInterval = d
			}
		case "retry_batch_limit":
			if n, err := strconv.Atoi(row.ConfigValue); err == nil && n > 0 {
				settings.RetryBatchLimit = n
			}
		case "cleanup_after_days":
			if n, err := strconv.Atoi(row.ConfigValue); err == nil && n > 0 {
				settings.CleanupAfterDays = n
			}
		}
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("bot configuration validation failed: %w", err)
	}

	trackerSettings = settings
	return nil
}

// SetConfigValue upserts a single configuration row.
func SetConfigValue(db *gorm.DB, key, value, valueType, updatedBy string) error {
	var row BotConfiguration
	result := db.Where("config_key = ?", key).First(&row)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			row = BotConfiguration{
				ConfigKey:   key,
				ConfigValue: value,
				ValueType:   valueType,
				UpdatedBy:   updatedBy,
			}
			if err := db.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create configuration %s: %w", key, err)
			}
			return nil
		}
		return fmt.Errorf("failed to query configuration %s: %w", key, result.Error)
	}

	row.ConfigValue = value
	row.ValueType = valueType
	row.UpdatedBy = updatedBy
	if err := db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to update configuration %s: %w", key, err)
	}
	return nil
}

// Validate validates the settings
func (s *TrackerSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
