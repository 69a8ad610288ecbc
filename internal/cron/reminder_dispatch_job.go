package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/certtracker/certtracker-backend/internal/reminders"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type reminderRunner interface {
	Run(ctx context.Context, asOf time.Time) (*reminders.RunReport, error)
}

// NewReminderDispatchJob wraps the reminder dispatcher as a scheduled job.
// Per-item delivery failures are reported inside the run report and logged;
// only a run-level abort fails the job.
func NewReminderDispatchJob(dispatcher reminderRunner, logg *logger.Logger) (Job, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("reminder dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &reminderDispatchJob{dispatcher: dispatcher, logg: logg}, nil
}

type reminderDispatchJob struct {
	dispatcher reminderRunner
	logg       *logger.Logger
}

func (j *reminderDispatchJob) Name() string { return "reminder-dispatch" }

func (j *reminderDispatchJob) Run(ctx context.Context) error {
	report, err := j.dispatcher.Run(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reminder dispatch: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users":     report.Users,
		"processed": report.Processed,
		"sent":      report.Sent,
		"skipped":   report.Skipped,
		"gated":     report.Gated,
		"failures":  len(report.Failures),
	})
	if len(report.Failures) > 0 {
		j.logg.Warn(logCtx, "reminder dispatch finished with item failures")
		return nil
	}
	j.logg.Info(logCtx, "reminder dispatch complete")
	return nil
}
