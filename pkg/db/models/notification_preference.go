package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/certtracker/certtracker-backend/pkg/db/types"
)

// NotificationPreference holds a user's channel toggles and reminder thresholds.
type NotificationPreference struct {
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;primaryKey"`
	EmailEnabled  bool             `gorm:"column:email_enabled;not null;default:true"`
	SMSEnabled    bool             `gorm:"column:sms_enabled;not null;default:false"`
	InAppEnabled  bool             `gorm:"column:in_app_enabled;not null;default:true"`
	ThresholdDays dbtypes.IntArray `gorm:"column:threshold_days;type:integer[];not null;default:'{90,60,30,7,1}'"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
