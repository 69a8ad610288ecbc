package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/certtracker/certtracker-backend/internal/reminders"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

type fakeLock struct {
	acquired  bool
	denied    bool
	released  int
	acquireds int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquireds++
	if f.denied {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released++
	f.acquired = false
	return nil
}

type recordingJob struct {
	name string
	runs int
	err  error
	log  *[]string
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	if j.log != nil {
		*j.log = append(*j.log, j.name)
	}
	return j.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(nil),
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleExecutesJobsInOrder(t *testing.T) {
	var order []string
	first := &recordingJob{name: "first", log: &order}
	second := &recordingJob{name: "second", log: &order}
	lock := &fakeLock{}
	svc := newTestService(t, lock, first, second)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected registration order, got %v", order)
	}
	if lock.released != 1 {
		t.Fatalf("expected lock released once, got %d", lock.released)
	}
}

func TestRunCycleSkipsWhenLockDenied(t *testing.T) {
	job := &recordingJob{name: "only"}
	svc := newTestService(t, &fakeLock{denied: true}, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("jobs must not run without the lock")
	}
}

func TestRunCycleContinuesPastFailingJob(t *testing.T) {
	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	trailing := &recordingJob{name: "trailing"}
	svc := newTestService(t, &fakeLock{}, failing, trailing)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if trailing.runs != 1 {
		t.Fatal("a failing job must not block later jobs")
	}
}

type fakeDispatchRunner struct {
	report *reminders.RunReport
	err    error
	asOf   time.Time
}

func (f *fakeDispatchRunner) Run(ctx context.Context, asOf time.Time) (*reminders.RunReport, error) {
	f.asOf = asOf
	return f.report, f.err
}

func TestReminderDispatchJobReportsRunLevelError(t *testing.T) {
	runner := &fakeDispatchRunner{err: errors.New("db unavailable")}
	job, err := NewReminderDispatchJob(runner, testLogger())
	if err != nil {
		t.Fatalf("NewReminderDispatchJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected run-level error surfaced")
	}
}

func TestReminderDispatchJobToleratesItemFailures(t *testing.T) {
	runner := &fakeDispatchRunner{report: &reminders.RunReport{
		Users:    3,
		Sent:     5,
		Failures: []reminders.ItemFailure{{Reason: "smtp timeout"}},
	}}
	job, _ := NewReminderDispatchJob(runner, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("item failures must not fail the job: %v", err)
	}
	if runner.asOf.IsZero() {
		t.Fatal("expected asOf passed to the dispatcher")
	}
}

type fakePurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestNotificationCleanupJobComputesCutoff(t *testing.T) {
	purger := &fakePurger{deleted: 7}
	job, err := NewNotificationCleanupJob(purger, testLogger(), 30)
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}

	before := time.Now().UTC().AddDate(0, 0, -30)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	after := time.Now().UTC().AddDate(0, 0, -30)

	if purger.cutoff.Before(before) || purger.cutoff.After(after) {
		t.Fatalf("expected cutoff 30 days back, got %v", purger.cutoff)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	job, _ := NewNotificationCleanupJob(&fakePurger{err: errors.New("db down")}, testLogger(), 30)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected cleanup error surfaced")
	}
}
