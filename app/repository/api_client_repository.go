package repository

import (
	"gorm.io/gorm"

	"github.com/trackarr/trackarr/app/models"
)

// apiClientRepository implements the APIClientRepository interface
type apiClientRepository struct {
	db *gorm.DB
}

// NewAPIClientRepository creates a new API client repository instance
func NewAPIClientRepository(db *gorm.DB) APIClientRepository {
	return &apiClientRepository{db: db}
}

// Create stores a new API client
func (r *apiClientRepository) Create(client *models.APIClient) error {
	return r.db.Create(client).Error
}

// GetByID looks up a client by primary key
func (r *apiClientRepository) GetByID(id uint) (*models.APIClient, error) {
	var client models.APIClient
	if err := r.db.First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByKeyHash looks up a client by its key hash
func (r *apiClientRepository) GetByKeyHash(hash string) (*models.APIClient, error) {
	return models.FindAPIClientByKeyHash(r.db, hash)
}

// TouchUsage updates the last-used timestamp best-effort
func (r *apiClientRepository) TouchUsage(clientID uint) error {
	return models.TouchAPIClientUsage(r.db, clientID)
}

// List returns all API clients
func (r *apiClientRepository) List() ([]models.APIClient, error) {
	var clients []models.APIClient
	err := r.db.Order("created_at ASC").Find(&clients).Error
	return clients, err
}

// Revoke deactivates a client, keeping the row for auditing
func (r *apiClientRepository) Revoke(clientID uint) error {
	client, err := r.GetByID(clientID)
	if err != nil {
		return err
	}
	client.RevokeAPIKey()
	return r.db.Save(client).Error
}
