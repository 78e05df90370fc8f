package repository

import (
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// botConfigurationRepository implements the BotConfigurationRepository interface
type botConfigurationRepository struct {
	db *gorm.DB
}

// NewBotConfigurationRepository creates a new configuration repository instance
func NewBotConfigurationRepository(db *gorm.DB) BotConfigurationRepository {
	return &botConfigurationRepository{db: db}
}

// LoadSettings reads all configuration rows and returns the merged settings
func (r *botConfigurationRepository) LoadSettings() (*models.TrackerSettings, error) {
	if err := models.LoadTrackerSettings(r.db); err != nil {
		return nil, err
	}
	return models.GetTrackerSettings(), nil
}

// SetValue upserts a single configuration row
func (r *botConfigurationRepository) SetValue(key, value, valueType, updatedBy string) error {
	return models.SetConfigValue(r.db, key, value, valueType, updatedBy)
}

// GetValue returns the raw string value for a key
func (r *botConfigurationRepository) GetValue(key string) (string, error) {
	var row models.BotConfiguration
	if err := r.db.Where("config_key = ?", key).First(&row).Error; err != nil {
		return "", err
	}
	return row.ConfigValue, nil
}

// ListAll returns every configuration row ordered by key
func (r *botConfigurationRepository) ListAll() ([]models.BotConfiguration, error) {
	var rows []models.BotConfiguration
	err := r.db.Order("config_key ASC").Find(&rows).Error
	return rows, err
}
