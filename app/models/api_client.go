package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// APIClient is a service-to-service consumer of the HTTP API (the chat
// front end, dashboards). Only the SHA-256 hash of the key is stored.
type APIClient struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	KeyHash      string     `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	KeyPrefix    string     `gorm:"type:varchar(20);default:''" json:"key_prefix"`
	Active       bool       `gorm:"default:true;not null" json:"active"`
	RequestCount int64      `gorm:"default:0;not null" json:"request_count"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	KeyRevokedAt *time.Time `json:"key_revoked_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "trk_"

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and
// returns the raw secret. Callers must save the struct afterwards; the raw
// key is never recoverable later.
func (c *APIClient) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", fmt.Errorf("api key generation failed: key too short")
	}

	c.KeyHash = HashAPIKey(rawKey)
	c.KeyPrefix = rawKey[:min(len(rawKey), 16)]
	c.Active = true
	c.KeyRevokedAt = nil
	c.LastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey deactivates the client without deleting the record.
func (c *APIClient) RevokeAPIKey() {
	now := time.Now()
	c.Active = false
	c.KeyRevokedAt = &now
}

// HasActiveKey reports whether the client may authenticate.
func (c *APIClient) HasActiveKey() bool {
	return c != nil && c.Active && c.KeyHash != "" && c.KeyRevokedAt == nil
}

// FindAPIClientByKeyHash looks up a client by key hash. Callers decide how
// to treat inactive clients.
func FindAPIClientByKeyHash(db *gorm.DB, hash string) (*APIClient, error) {
	var client APIClient
	if err := db.Where("key_hash = ?", hash).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// TouchAPIClientUsage updates the last-used timestamp best-effort.
func TouchAPIClientUsage(db *gorm.DB, clientID uint) error {
	now := time.Now()
	return db.Model(&APIClient{}).Where("id = ?", clientID).
		Update("last_used_at", now).Error
}
