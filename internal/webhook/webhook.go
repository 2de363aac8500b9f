// Package webhook stores the tokens webhooks use to read from or write to a dataset.
//
// A token is made of a public id and a secret. The secret is returned once, when the
// token is created, and only its Argon2id hash is stored. Deleting a token
// deactivates it.
package webhook

import (
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/oslokommune/okdata-permission-api/internal/db/models"
)

// Operation is what a token allows.
type Operation string

// Token operations.
const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
)

// TokenLifetime is how long a token stays valid after creation.
const TokenLifetime = 2 * 365 * 24 * time.Hour

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationRead, OperationWrite:
		return op, nil
	default:
		return "", errors.Wrap(ErrUnknownOperation, s)
	}
}

// Token is the API view of a stored token. Secret is only set by Create.
type Token struct {
	ID        string    `json:"id"`
	Secret    string    `json:"token,omitempty"`
	CreatedBy string    `json:"created_by"`
	DatasetID string    `json:"dataset_id"`
	Operation Operation `json:"operation"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
}

// AuthResult is the outcome of Authorize. Reason is set when access is denied.
type AuthResult struct {
	Access bool    `json:"access"`
	Reason *string `json:"reason"`
}

// Store keeps webhook tokens in a gorm database.
type Store struct {
	db     *gorm.DB
	params *argon2id.Params
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithParams sets the Argon2id parameters used for new hashes.
func WithParams(p *argon2id.Params) Option {
	return func(s *Store) { s.params = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store on db and migrates its table.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	s := &Store{db: db, params: argon2id.DefaultParams, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.AutoMigrate(&models.WebhookToken{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate webhook tokens")
	}

	return s, nil
}

// Create issues a token for datasetID and returns it with its secret.
func (s *Store) Create(datasetID string, op Operation, createdBy string) (*Token, error) {
	if _, err := ParseOperation(string(op)); err != nil {
		return nil, err
	}

	secret := uuid.NewString()

	hash, err := argon2id.CreateHash(secret, s.params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash webhook token")
	}

	created := s.now().UTC()

	row := models.WebhookToken{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Operation: string(op),
		CreatedBy: createdBy,
		Hash:      hash,
		IsActive:  true,
		CreatedAt: created,
		ExpiresAt: created.Add(TokenLifetime),
	}

	if err = s.db.Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to store webhook token")
	}

	log.Info().Msgf("Created webhook token %s for dataset %s", row.ID, datasetID)

	token := fromModel(row)
	token.Secret = secret

	return &token, nil
}

// List returns the active tokens of datasetID, oldest first.
func (s *Store) List(datasetID string) ([]Token, error) {
	rows, err := s.active(datasetID)
	if err != nil {
		return nil, err
	}

	out := make([]Token, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}

	return out, nil
}

// Get returns the active token id of datasetID.
func (s *Store) Get(datasetID, id string) (*Token, error) {
	var row models.WebhookToken

	err := s.db.Where("id = ? AND dataset_id = ? AND is_active = ?", id, datasetID, true).First(&row).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrTokenNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed to get webhook token")
	}

	token := fromModel(row)

	return &token, nil
}

// Delete deactivates the token id of datasetID.
func (s *Store) Delete(datasetID, id string) error {
	result := s.db.Model(&models.WebhookToken{}).
		Where("id = ? AND dataset_id = ? AND is_active = ?", id, datasetID, true).
		Update("is_active", false)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete webhook token")
	}

	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}

	log.Info().Msgf("Deleted webhook token %s for dataset %s", id, datasetID)

	return nil
}

// Authorize checks whether secret grants op on datasetID.
func (s *Store) Authorize(datasetID, secret string, op Operation) (AuthResult, error) {
	rows, err := s.active(datasetID)
	if err != nil {
		return AuthResult{}, err
	}

	for _, row := range rows {
		match, cmpErr := argon2id.ComparePasswordAndHash(secret, row.Hash)
		if cmpErr != nil {
			log.Error().Err(cmpErr).Msgf("failed to verify webhook token %s", row.ID)
			continue
		}

		if !match {
			continue
		}

		if Operation(row.Operation) != op {
			return denied(fmt.Sprintf("Provided token does not have access to perform %s on %s", op, datasetID)), nil
		}

		if row.ExpiresAt.Before(s.now()) {
			return denied("Provided token is expired"), nil
		}

		return AuthResult{Access: true}, nil
	}

	return denied("Provided token is not associated to dataset-id: " + datasetID), nil
}

func (s *Store) active(datasetID string) ([]models.WebhookToken, error) {
	var rows []models.WebhookToken

	if err := s.db.Where("dataset_id = ? AND is_active = ?", datasetID, true).
		Order("created_at").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list webhook tokens")
	}

	return rows, nil
}

func denied(reason string) AuthResult {
	return AuthResult{Access: false, Reason: &reason}
}

func fromModel(row models.WebhookToken) Token {
	return Token{
		ID:        row.ID,
		CreatedBy: row.CreatedBy,
		DatasetID: row.DatasetID,
		Operation: Operation(row.Operation),
		CreatedAt: row.CreatedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
		IsActive:  row.IsActive,
	}
}
