package prefs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/certtracker/certtracker-backend/pkg/db/models"
	dbtypes "github.com/certtracker/certtracker-backend/pkg/db/types"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
)

// MaxThresholds caps how many reminder thresholds a user can configure.
const MaxThresholds = 10

// MaxThresholdDays bounds individual threshold values to one year out.
const MaxThresholdDays = 365

type prefsRepository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	Upsert(ctx context.Context, pref *models.NotificationPreference) error
}

// Service exposes notification preference reads and writes.
type Service interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, plan enums.Plan, input UpdateInput) (*models.NotificationPreference, error)
}

type service struct {
	repo              prefsRepository
	defaultThresholds []int
}

// UpdateInput holds the writable preference fields.
type UpdateInput struct {
	EmailEnabled  bool
	SMSEnabled    bool
	InAppEnabled  bool
	ThresholdDays []int
}

// NewService builds a preference service. defaultThresholds seeds users who
// have never saved preferences.
func NewService(repo prefsRepository, defaultThresholds []int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("preference repository required")
	}
	if len(defaultThresholds) == 0 {
		return nil, fmt.Errorf("default thresholds required")
	}
	return &service{
		repo:              repo,
		defaultThresholds: defaultThresholds,
	}, nil
}

// GetPreferences returns the stored row, or the defaults when the user has
// never saved one. The default is not persisted on read; the first explicit
// update creates the row.
func (s *service) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	row, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults(userID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return row, nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID uuid.UUID, plan enums.Plan, input UpdateInput) (*models.NotificationPreference, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if input.SMSEnabled && !plan.AllowsSMS() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sms reminders require a paid plan")
	}

	thresholds, err := normalizeThresholds(input.ThresholdDays)
	if err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		thresholds = append([]int(nil), s.defaultThresholds...)
	}

	row := &models.NotificationPreference{
		UserID:        userID,
		EmailEnabled:  input.EmailEnabled,
		SMSEnabled:    input.SMSEnabled,
		InAppEnabled:  input.InAppEnabled,
		ThresholdDays: dbtypes.IntArray(thresholds),
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preferences")
	}
	return row, nil
}

func (s *service) defaults(userID uuid.UUID) *models.NotificationPreference {
	return &models.NotificationPreference{
		UserID:        userID,
		EmailEnabled:  true,
		SMSEnabled:    false,
		InAppEnabled:  true,
		ThresholdDays: dbtypes.IntArray(append([]int(nil), s.defaultThresholds...)),
	}
}

// normalizeThresholds dedupes, sorts descending (farthest reminder first, the
// order users see), and bounds the values.
func normalizeThresholds(in []int) ([]int, error) {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, t := range in {
		if t < 0 || t > MaxThresholdDays {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("threshold %d out of range [0, %d]", t, MaxThresholdDays))
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > MaxThresholds {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d thresholds allowed", MaxThresholds))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
