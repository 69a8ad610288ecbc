package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/api/middleware"
	"github.com/certtracker/certtracker-backend/api/responses"
	"github.com/certtracker/certtracker-backend/api/validators"
	"github.com/certtracker/certtracker-backend/internal/credentials"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	pkgpagination "github.com/certtracker/certtracker-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type credentialRequest struct {
	Name             string  `json:"name" validate:"required,max=255"`
	Type             string  `json:"type" validate:"required"`
	Organization     string  `json:"organization" validate:"max=255"`
	CredentialNumber string  `json:"credential_number" validate:"max=100"`
	Description      *string `json:"description,omitempty"`
	IssueDate        *string `json:"issue_date,omitempty"`
	ExpiryDate       string  `json:"expiry_date" validate:"required"`
}

func (req credentialRequest) toCreateInput() (credentials.CreateInput, error) {
	credType, err := enums.ParseCredentialType(req.Type)
	if err != nil {
		return credentials.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credential type")
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return credentials.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "expiry_date must be a YYYY-MM-DD date")
	}
	var issue *time.Time
	if req.IssueDate != nil && *req.IssueDate != "" {
		parsed, err := parseDate(*req.IssueDate)
		if err != nil {
			return credentials.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "issue_date must be a YYYY-MM-DD date")
		}
		issue = &parsed
	}
	return credentials.CreateInput{
		Name:             req.Name,
		Type:             credType,
		Organization:     req.Organization,
		CredentialNumber: req.CredentialNumber,
		Description:      req.Description,
		IssueDate:        issue,
		ExpiryDate:       expiry,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(value))
}

func CredentialCreate(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		var body credentialRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateCredential(r.Context(), middleware.UserIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func CredentialGet(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		credentialID, err := pathUUID(r, "credentialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetCredential(r.Context(), middleware.UserIDFromContext(r.Context()), credentialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CredentialList(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		limit, err := validators.QueryInt(r, "limit", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := credentials.ListParams{
			UserID: middleware.UserIDFromContext(r.Context()),
			Params: pkgpagination.Params{
				Limit:  limit,
				Cursor: validators.QueryString(r, "cursor"),
			},
		}
		if raw := validators.QueryString(r, "type"); raw != "" {
			credType, err := enums.ParseCredentialType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter"))
				return
			}
			params.Type = &credType
		}
		if raw := validators.QueryString(r, "status"); raw != "" {
			status := enums.CredentialStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		result, err := svc.ListCredentials(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CredentialUpdate(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		credentialID, err := pathUUID(r, "credentialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body credentialRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateCredential(r.Context(), middleware.UserIDFromContext(r.Context()), credentialID,
			credentials.UpdateInput(input))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CredentialDelete(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		credentialID, err := pathUUID(r, "credentialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteCredential(r.Context(), middleware.UserIDFromContext(r.Context()), credentialID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
