package repository

import (
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// serviceHealthRepository implements the ServiceHealthRepository interface
type serviceHealthRepository struct {
	db *gorm.DB
}

// NewServiceHealthRepository creates a new service-health repository instance
func NewServiceHealthRepository(db *gorm.DB) ServiceHealthRepository {
	return &serviceHealthRepository{db: db}
}

// Record upserts one probe result
func (r *serviceHealthRepository) Record(serviceName string, healthy bool, responseTimeMs *int, probeErr string) error {
	return models.RecordHealthCheck(r.db, serviceName, healthy, responseTimeMs, probeErr)
}

// GetAll returns the health rows for every known service
func (r *serviceHealthRepository) GetAll() ([]models.ServiceHealth, error) {
	return models.FindAllServiceHealth(r.db)
}

// Get returns the health row for a single service
func (r *serviceHealthRepository) Get(serviceName string) (*models.ServiceHealth, error) {
	return models.FindServiceHealth(r.db, serviceName)
}
