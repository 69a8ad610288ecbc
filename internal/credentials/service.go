package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/certtracker/certtracker-backend/internal/expiry"
	"github.com/certtracker/certtracker-backend/internal/reports"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	pkgpagination "github.com/certtracker/certtracker-backend/pkg/pagination"
)

type credentialsRepository interface {
	Create(ctx context.Context, credential *models.Credential) (*models.Credential, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	List(ctx context.Context, opts listQuery) ([]models.Credential, error)
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error)
	UpdateWithTx(tx *gorm.DB, credential *models.Credential) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type reminderLedger interface {
	DeleteByCredentialWithTx(tx *gorm.DB, credentialID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes credential CRUD with derived status semantics.
type Service interface {
	CreateCredential(ctx context.Context, userID uuid.UUID, input CreateInput) (*View, error)
	GetCredential(ctx context.Context, userID, credentialID uuid.UUID) (*View, error)
	ListCredentials(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateCredential(ctx context.Context, userID, credentialID uuid.UUID, input UpdateInput) (*View, error)
	DeleteCredential(ctx context.Context, userID, credentialID uuid.UUID) error
	DashboardSummary(ctx context.Context, userID uuid.UUID) (*reports.Summary, error)
	AllForUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error)
}

type service struct {
	repo   credentialsRepository
	ledger reminderLedger
	db     txRunner
	now    func() time.Time
}

// CreateInput holds the fields accepted when registering a credential.
type CreateInput struct {
	Name             string
	Type             enums.CredentialType
	Organization     string
	CredentialNumber string
	Description      *string
	IssueDate        *time.Time
	ExpiryDate       time.Time
}

// UpdateInput mirrors CreateInput for full-record updates.
type UpdateInput struct {
	Name             string
	Type             enums.CredentialType
	Organization     string
	CredentialNumber string
	Description      *string
	IssueDate        *time.Time
	ExpiryDate       time.Time
}

// NewService builds a credential service backed by the provided repositories.
func NewService(repo credentialsRepository, ledger reminderLedger, db txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credential repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("reminder ledger required")
	}
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{
		repo:   repo,
		ledger: ledger,
		db:     db,
		now:    time.Now,
	}, nil
}

func (s *service) CreateCredential(ctx context.Context, userID uuid.UUID, input CreateInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if err := validateInput(input.Name, input.Type, input.IssueDate, input.ExpiryDate); err != nil {
		return nil, err
	}

	credential := &models.Credential{
		UserID:           userID,
		Name:             strings.TrimSpace(input.Name),
		Type:             input.Type,
		Organization:     strings.TrimSpace(input.Organization),
		CredentialNumber: strings.TrimSpace(input.CredentialNumber),
		Description:      input.Description,
		IssueDate:        input.IssueDate,
		ExpiryDate:       input.ExpiryDate,
	}

	created, err := s.repo.Create(ctx, credential)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credential")
	}
	return s.view(created), nil
}

func (s *service) GetCredential(ctx context.Context, userID, credentialID uuid.UUID) (*View, error) {
	credential, err := s.ownedCredential(ctx, userID, credentialID)
	if err != nil {
		return nil, err
	}
	return s.view(credential), nil
}

func (s *service) ListCredentials(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid credential type filter")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		userID:         params.UserID,
		credentialType: params.Type,
		limit:          pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credentials")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			Timestamp: rows[limit].ExpiryDate,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	asOf := s.now()
	items := make([]View, 0, len(rows))
	for _, row := range rows {
		view := *s.viewAt(&row, asOf)
		// Status is derived, so the filter applies within the fetched page.
		if params.Status != nil && view.Status != *params.Status {
			continue
		}
		items = append(items, view)
	}

	return &ListResult{
		Items:  items,
		Cursor: nextCursor,
	}, nil
}

func (s *service) UpdateCredential(ctx context.Context, userID, credentialID uuid.UUID, input UpdateInput) (*View, error) {
	credential, err := s.ownedCredential(ctx, userID, credentialID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input.Name, input.Type, input.IssueDate, input.ExpiryDate); err != nil {
		return nil, err
	}

	expiryChanged := !sameCalendarDay(credential.ExpiryDate, input.ExpiryDate)

	credential.Name = strings.TrimSpace(input.Name)
	credential.Type = input.Type
	credential.Organization = strings.TrimSpace(input.Organization)
	credential.CredentialNumber = strings.TrimSpace(input.CredentialNumber)
	credential.Description = input.Description
	credential.IssueDate = input.IssueDate
	credential.ExpiryDate = input.ExpiryDate

	// A renewal resets reminder eligibility: thresholds are relative to the
	// current expiry, so old ledger rows must go in the same transaction as
	// the date change.
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.UpdateWithTx(tx, credential); err != nil {
			return err
		}
		if expiryChanged {
			return s.ledger.DeleteByCredentialWithTx(tx, credential.ID)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update credential")
	}

	return s.view(credential), nil
}

func (s *service) DeleteCredential(ctx context.Context, userID, credentialID uuid.UUID) error {
	if _, err := s.ownedCredential(ctx, userID, credentialID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, credentialID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete credential")
	}
	return nil
}

func (s *service) DashboardSummary(ctx context.Context, userID uuid.UUID) (*reports.Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	rows, err := s.repo.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credentials")
	}
	summary := reports.Summarize(rows, s.now())
	return &summary, nil
}

func (s *service) AllForUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	rows, err := s.repo.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credentials")
	}
	return rows, nil
}

func (s *service) ownedCredential(ctx context.Context, userID, credentialID uuid.UUID) (*models.Credential, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if credentialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credential id is required")
	}

	credential, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credential not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup credential")
	}
	if credential.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "credential does not belong to user")
	}
	return credential, nil
}

func (s *service) view(credential *models.Credential) *View {
	return s.viewAt(credential, s.now())
}

func (s *service) viewAt(credential *models.Credential, asOf time.Time) *View {
	cls, err := expiry.Classify(credential.ExpiryDate, asOf)
	if err != nil {
		// Expiry is non-null at the schema level; a zero date can only mean a
		// corrupted row, surfaced as expired rather than hidden.
		cls = expiry.Classification{DaysUntil: 0, Status: enums.CredentialStatusExpired}
	}
	view := toView(*credential, cls.DaysUntil, cls.Status)
	return &view
}

func validateInput(name string, credType enums.CredentialType, issueDate *time.Time, expiryDate time.Time) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !credType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid credential type")
	}
	if expiryDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry_date is required")
	}
	if issueDate != nil && issueDate.After(expiryDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "issue_date must not be after expiry_date")
	}
	return nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
