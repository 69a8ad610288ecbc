package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/certtracker/certtracker-backend/pkg/logger"
)

const defaultRetentionDays = 30

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob prunes read and unread in-app notifications older
// than the retention window.
func NewNotificationCleanupJob(repo notificationPurger, logg *logger.Logger, retentionDays int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &notificationCleanupJob{
		repo:      repo,
		logg:      logg,
		retention: retentionDays,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	repo      notificationPurger
	logg      *logger.Logger
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff.Format(time.RFC3339),
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
