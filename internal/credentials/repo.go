package credentials

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/certtracker/certtracker-backend/pkg/db/models"
)

// Repository exposes credential persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a credential repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new credential row.
func (r *Repository) Create(ctx context.Context, credential *models.Credential) (*models.Credential, error) {
	if err := r.db.WithContext(ctx).Create(credential).Error; err != nil {
		return nil, err
	}
	return credential, nil
}

// FindByID loads a single credential.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	var row models.Credential
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns user-scoped credentials ordered by expiry date using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Credential, error) {
	query := r.db.WithContext(ctx).Model(&models.Credential{}).Where("user_id = ?", opts.userID)

	if opts.credentialType != nil {
		query = query.Where("type = ?", *opts.credentialType)
	}
	if opts.cursor != nil {
		query = query.Where("(expiry_date > ?) OR (expiry_date = ? AND id > ?)", opts.cursor.Timestamp, opts.cursor.Timestamp, opts.cursor.ID)
	}

	query = query.Order("expiry_date ASC").Order("id ASC").Limit(opts.limit)

	var rows []models.Credential
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAllByUser returns every credential a user owns, ordered by expiry date.
// Used by the dashboard summary and the reminder preview, which need the full
// collection rather than a page.
func (r *Repository) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error) {
	var rows []models.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("expiry_date ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateWithTx persists the credential using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, credential *models.Credential) error {
	return tx.Save(credential).Error
}

// Delete removes the credential row; reminder records cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Credential{}, "id = ?", id).Error
}
