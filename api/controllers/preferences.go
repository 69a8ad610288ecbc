package controllers

import (
	"net/http"

	"github.com/certtracker/certtracker-backend/api/middleware"
	"github.com/certtracker/certtracker-backend/api/responses"
	"github.com/certtracker/certtracker-backend/api/validators"
	"github.com/certtracker/certtracker-backend/internal/prefs"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type preferencesView struct {
	EmailEnabled  bool  `json:"email_enabled"`
	SMSEnabled    bool  `json:"sms_enabled"`
	InAppEnabled  bool  `json:"in_app_enabled"`
	ThresholdDays []int `json:"threshold_days"`
}

type preferencesRequest struct {
	EmailEnabled  bool  `json:"email_enabled"`
	SMSEnabled    bool  `json:"sms_enabled"`
	InAppEnabled  bool  `json:"in_app_enabled"`
	ThresholdDays []int `json:"threshold_days"`
}

func toPreferencesView(row *models.NotificationPreference) preferencesView {
	return preferencesView{
		EmailEnabled:  row.EmailEnabled,
		SMSEnabled:    row.SMSEnabled,
		InAppEnabled:  row.InAppEnabled,
		ThresholdDays: []int(row.ThresholdDays),
	}
}

func PreferencesGet(svc prefs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}

		row, err := svc.GetPreferences(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPreferencesView(row))
	}
}

// PreferencesUpdate saves channel toggles and thresholds. The caller's plan
// comes from the token so a free user cannot toggle SMS on.
func PreferencesUpdate(svc prefs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}

		var body preferencesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		row, err := svc.UpdatePreferences(ctx, middleware.UserIDFromContext(ctx), middleware.PlanFromContext(ctx), prefs.UpdateInput{
			EmailEnabled:  body.EmailEnabled,
			SMSEnabled:    body.SMSEnabled,
			InAppEnabled:  body.InAppEnabled,
			ThresholdDays: body.ThresholdDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPreferencesView(row))
	}
}
