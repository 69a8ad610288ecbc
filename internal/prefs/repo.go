package prefs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/certtracker/certtracker-backend/pkg/db/models"
)

// Repository exposes notification preference persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a preference repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUser loads a user's preference row.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	var row models.NotificationPreference
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the preference row, inserting or replacing on user_id.
func (r *Repository) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email_enabled", "sms_enabled", "in_app_enabled", "threshold_days", "updated_at",
			}),
		}).
		Create(pref).Error
}
