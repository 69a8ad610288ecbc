package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/certtracker/certtracker-backend/pkg/db/models"
)

// LedgerRepository persists the write-once reminder ledger.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository constructs a ledger repo bound to the provided GORM DB.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// MarkSent records that a reminder went out for the pair. The insert is
// conditional on the unique (credential_id, threshold_days) index; it returns
// false when another run already holds the row.
func (r *LedgerRepository) MarkSent(ctx context.Context, credentialID uuid.UUID, thresholdDays int, sentAt time.Time) (bool, error) {
	record := models.ReminderRecord{
		CredentialID:  credentialID,
		ThresholdDays: thresholdDays,
		SentAt:        sentAt,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "credential_id"}, {Name: "threshold_days"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SentPairs returns the thresholds already recorded for each credential.
func (r *LedgerRepository) SentPairs(ctx context.Context, credentialIDs []uuid.UUID) (map[uuid.UUID]map[int]bool, error) {
	sent := make(map[uuid.UUID]map[int]bool, len(credentialIDs))
	if len(credentialIDs) == 0 {
		return sent, nil
	}

	var rows []models.ReminderRecord
	err := r.db.WithContext(ctx).
		Where("credential_id IN ?", credentialIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if sent[row.CredentialID] == nil {
			sent[row.CredentialID] = make(map[int]bool)
		}
		sent[row.CredentialID][row.ThresholdDays] = true
	}
	return sent, nil
}

// DeleteByCredentialWithTx wipes a credential's ledger inside the caller's
// transaction. Invoked on renewal so thresholds re-arm against the new expiry.
func (r *LedgerRepository) DeleteByCredentialWithTx(tx *gorm.DB, credentialID uuid.UUID) error {
	return tx.Delete(&models.ReminderRecord{}, "credential_id = ?", credentialID).Error
}

// PruneOrphaned removes ledger rows whose credential no longer exists. Run by
// the cleanup cron; harmless if the schema-level cascade already caught them.
func (r *LedgerRepository) PruneOrphaned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("credential_id NOT IN (?)", r.db.Model(&models.Credential{}).Select("id")).
		Delete(&models.ReminderRecord{})
	return result.RowsAffected, result.Error
}
