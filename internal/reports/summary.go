// Package reports rolls credential collections up into dashboard summaries.
package reports

import (
	"time"

	"github.com/certtracker/certtracker-backend/internal/expiry"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
)

// Summary holds mutually exclusive status counts for a credential collection.
// Expired + ExpiringSoon + UpToDate always equals Total.
type Summary struct {
	Total        int `json:"total"`
	ExpiringSoon int `json:"expiring_soon"`
	Expired      int `json:"expired"`
	UpToDate     int `json:"up_to_date"`
}

// Summarize folds the classifier over the credentials. Input order does not
// matter. Credentials with a zero expiry date are excluded entirely; the
// schema requires expiry_date so they cannot occur through normal writes.
func Summarize(credentials []models.Credential, asOf time.Time) Summary {
	var s Summary
	for _, cred := range credentials {
		cls, err := expiry.Classify(cred.ExpiryDate, asOf)
		if err != nil {
			continue
		}
		s.Total++
		switch cls.Status {
		case enums.CredentialStatusExpired:
			s.Expired++
		case enums.CredentialStatusExpiringSoon:
			s.ExpiringSoon++
		default:
			s.UpToDate++
		}
	}
	return s
}
