package controllers

import (
	"net/http"

	"github.com/certtracker/certtracker-backend/api/middleware"
	"github.com/certtracker/certtracker-backend/api/responses"
	"github.com/certtracker/certtracker-backend/internal/credentials"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

// DashboardSummary returns the per-status counts and the soonest expiries for
// the landing view.
func DashboardSummary(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		summary, err := svc.DashboardSummary(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
