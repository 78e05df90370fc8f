package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetTrackedRequestRepository returns the tracked-request repository instance
func (f *Factory) GetTrackedRequestRepository() TrackedRequestRepository {
	return f.GetRepositories().TrackedRequest
}

// GetStatusHistoryRepository returns the status-history repository instance
func (f *Factory) GetStatusHistoryRepository() StatusHistoryRepository {
	return f.GetRepositories().StatusHistory
}

// GetServiceHealthRepository returns the service-health repository instance
func (f *Factory) GetServiceHealthRepository() ServiceHealthRepository {
	return f.GetRepositories().ServiceHealth
}

// GetBotConfigurationRepository returns the configuration repository instance
func (f *Factory) GetBotConfigurationRepository() BotConfigurationRepository {
	return f.GetRepositories().BotConfiguration
}

// GetAPIClientRepository returns the API client repository instance
func (f *Factory) GetAPIClientRepository() APIClientRepository {
	return f.GetRepositories().APIClient
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
