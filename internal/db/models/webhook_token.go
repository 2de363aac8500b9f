package models

import "time"

// WebhookToken grants a webhook read or write access to one dataset.
// Only the Argon2id hash of the token secret is stored.
type WebhookToken struct {
	// ID is the public identifier of the token (uuid).
	ID string `gorm:"primaryKey;size:36"`
	// DatasetID is the dataset the token is valid for.
	DatasetID string `gorm:"index;size:255;not null"`
	// Operation is either "read" or "write".
	Operation string `gorm:"size:16;not null"`
	// CreatedBy is the principal that created the token.
	CreatedBy string `gorm:"size:255;not null"`
	// Hash is the Argon2id hash of the token secret.
	Hash string `gorm:"size:255;not null"`
	// IsActive is cleared when the token is deleted.
	IsActive  bool `gorm:"not null;index"`
	CreatedAt time.Time
	ExpiresAt time.Time
}
