package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

// Credential tracks a user-owned license or certification and its expiry.
// Status is intentionally absent: it is derived from ExpiryDate at read time
// so a stale persisted value can never disagree with the classifier.
type Credential struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Name             string               `gorm:"column:name;not null"`
	Type             enums.CredentialType `gorm:"column:type;type:credential_type;not null"`
	Organization     string               `gorm:"column:organization"`
	CredentialNumber string               `gorm:"column:credential_number"`
	Description      *string              `gorm:"column:description"`
	IssueDate        *time.Time           `gorm:"column:issue_date"`
	ExpiryDate       time.Time            `gorm:"column:expiry_date;not null;index"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
