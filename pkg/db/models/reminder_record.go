package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderRecord is the write-once ledger entry proving a reminder was sent
// for a (credential, threshold) pair. The unique index is what makes dispatch
// idempotent: the row is inserted only after the notifier accepts, and a
// conflicting insert means another run already sent it.
type ReminderRecord struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CredentialID  uuid.UUID `gorm:"column:credential_id;type:uuid;not null;uniqueIndex:idx_reminder_pair"`
	ThresholdDays int       `gorm:"column:threshold_days;not null;uniqueIndex:idx_reminder_pair"`
	SentAt        time.Time `gorm:"column:sent_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
