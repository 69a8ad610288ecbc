package controllers

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/api/middleware"
	"github.com/certtracker/certtracker-backend/api/responses"
	"github.com/certtracker/certtracker-backend/internal/credentials"
	"github.com/certtracker/certtracker-backend/internal/expiry"
	"github.com/certtracker/certtracker-backend/internal/prefs"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type reminderPreviewItem struct {
	CredentialID   uuid.UUID `json:"credential_id"`
	CredentialName string    `json:"credential_name"`
	ExpiryDate     time.Time `json:"expiry_date"`
	DaysUntil      int       `json:"days_until_expiry"`
	NextThreshold  *int      `json:"next_threshold_days,omitempty"`
	NextReminderOn *string   `json:"next_reminder_on,omitempty"`
}

type reminderPreviewResponse struct {
	ThresholdDays []int                 `json:"threshold_days"`
	Items         []reminderPreviewItem `json:"items"`
}

// ReminderPreview shows, per credential, when the next reminder would fire
// under the caller's current thresholds. Already-passed thresholds are not
// listed; the dispatch ledger decides those.
func ReminderPreview(creds credentials.Service, preferences prefs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if creds == nil || preferences == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reminder preview unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		pref, err := preferences.GetPreferences(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := creds.AllForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now()
		items := make([]reminderPreviewItem, 0, len(rows))
		for _, row := range rows {
			sched := expiry.DueThresholds(row.ExpiryDate, now, []int(pref.ThresholdDays))
			item := reminderPreviewItem{
				CredentialID:   row.ID,
				CredentialName: row.Name,
				ExpiryDate:     row.ExpiryDate,
				DaysUntil:      expiry.DaysUntil(row.ExpiryDate, now),
			}
			if sched.NextDue != nil {
				threshold := *sched.NextDue
				fireOn := row.ExpiryDate.UTC().AddDate(0, 0, -threshold).Format("2006-01-02")
				item.NextThreshold = &threshold
				item.NextReminderOn = &fireOn
			}
			items = append(items, item)
		}

		// Soonest reminder first; credentials with nothing left to fire sink
		// to the bottom.
		sort.SliceStable(items, func(i, j int) bool {
			switch {
			case items[i].NextReminderOn == nil:
				return false
			case items[j].NextReminderOn == nil:
				return true
			default:
				return *items[i].NextReminderOn < *items[j].NextReminderOn
			}
		})

		responses.WriteSuccess(w, reminderPreviewResponse{
			ThresholdDays: []int(pref.ThresholdDays),
			Items:         items,
		})
	}
}
