package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

// Notification is an in-app feed entry for a single user. A nil ReadAt marks
// the entry unread.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	Link      *string                `gorm:"type:text"`
	ReadAt    *time.Time             `gorm:"type:timestamptz"`
	CreatedAt time.Time              `gorm:"type:timestamptz;default:now()"`
}

// IsRead reports whether the entry has been acknowledged.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
