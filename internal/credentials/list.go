package credentials

import (
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgpagination "github.com/certtracker/certtracker-backend/pkg/pagination"
)

type ListParams struct {
	UserID uuid.UUID
	Type   *enums.CredentialType
	Status *enums.CredentialStatus
	pkgpagination.Params
}

type ListResult struct {
	Items  []View `json:"items"`
	Cursor string `json:"cursor"`
}

// View is a credential plus its derived classification. Status and DaysUntil
// are computed from ExpiryDate at read time and never stored.
type View struct {
	ID               uuid.UUID              `json:"id"`
	UserID           uuid.UUID              `json:"user_id"`
	Name             string                 `json:"name"`
	Type             enums.CredentialType   `json:"type"`
	Organization     string                 `json:"organization"`
	CredentialNumber string                 `json:"credential_number"`
	Description      *string                `json:"description,omitempty"`
	IssueDate        *time.Time             `json:"issue_date,omitempty"`
	ExpiryDate       time.Time              `json:"expiry_date"`
	Status           enums.CredentialStatus `json:"status"`
	DaysUntil        int                    `json:"days_until_expiry"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type listQuery struct {
	userID         uuid.UUID
	credentialType *enums.CredentialType
	limit          int
	cursor         *pkgpagination.Cursor
}

func toView(m models.Credential, daysUntil int, status enums.CredentialStatus) View {
	return View{
		ID:               m.ID,
		UserID:           m.UserID,
		Name:             m.Name,
		Type:             m.Type,
		Organization:     m.Organization,
		CredentialNumber: m.CredentialNumber,
		Description:      m.Description,
		IssueDate:        m.IssueDate,
		ExpiryDate:       m.ExpiryDate,
		Status:           status,
		DaysUntil:        daysUntil,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
