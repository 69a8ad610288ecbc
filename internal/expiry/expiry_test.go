package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysUntilNormalizesTimeOfDay(t *testing.T) {
	asOf := time.Date(2026, time.March, 10, 23, 45, 0, 0, time.UTC)
	expiry := time.Date(2026, time.March, 11, 0, 5, 0, 0, time.UTC)
	if got := DaysUntil(expiry, asOf); got != 1 {
		t.Fatalf("expected 1 day across midnight, got %d", got)
	}

	// A non-UTC wall clock must not shift the calendar-day difference.
	loc := time.FixedZone("UTC+13", 13*3600)
	localAsOf := time.Date(2026, time.March, 11, 11, 0, 0, 0, loc) // 2026-03-10 22:00 UTC
	if got := DaysUntil(expiry, localAsOf); got != 1 {
		t.Fatalf("expected 1 day for zoned asOf, got %d", got)
	}
}

func TestDaysUntilMonotonicity(t *testing.T) {
	expiry := date(2026, time.June, 1)
	prev := DaysUntil(expiry, date(2026, time.April, 1))
	for i := 1; i <= 90; i++ {
		asOf := date(2026, time.April, 1).AddDate(0, 0, i)
		got := DaysUntil(expiry, asOf)
		if got != prev-1 {
			t.Fatalf("asOf %s: expected %d, got %d", asOf, prev-1, got)
		}
		prev = got
	}
}

func TestClassifyStatusBuckets(t *testing.T) {
	asOf := date(2026, time.May, 1)
	cases := []struct {
		name      string
		expiry    time.Time
		daysUntil int
		status    enums.CredentialStatus
	}{
		{"five days past", asOf.AddDate(0, 0, -5), -5, enums.CredentialStatusExpired},
		{"yesterday", asOf.AddDate(0, 0, -1), -1, enums.CredentialStatusExpired},
		{"today", asOf, 0, enums.CredentialStatusExpiringSoon},
		{"fifteen days out", asOf.AddDate(0, 0, 15), 15, enums.CredentialStatusExpiringSoon},
		{"window boundary", asOf.AddDate(0, 0, 30), 30, enums.CredentialStatusExpiringSoon},
		{"just past window", asOf.AddDate(0, 0, 31), 31, enums.CredentialStatusValid},
		{"far out", asOf.AddDate(0, 0, 200), 200, enums.CredentialStatusValid},
	}

	for _, tc := range cases {
		got, err := Classify(tc.expiry, asOf)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got.DaysUntil != tc.daysUntil {
			t.Errorf("%s: expected daysUntil %d, got %d", tc.name, tc.daysUntil, got.DaysUntil)
		}
		if got.Status != tc.status {
			t.Errorf("%s: expected status %s, got %s", tc.name, tc.status, got.Status)
		}
	}
}

func TestClassifyExpiredIffNegative(t *testing.T) {
	asOf := date(2026, time.May, 1)
	for days := -40; days <= 40; days++ {
		got, err := Classify(asOf.AddDate(0, 0, days), asOf)
		if err != nil {
			t.Fatalf("days=%d: unexpected error: %v", days, err)
		}
		expired := got.Status == enums.CredentialStatusExpired
		if expired != (got.DaysUntil < 0) {
			t.Fatalf("days=%d: expired=%v daysUntil=%d", days, expired, got.DaysUntil)
		}
	}
}

func TestClassifyZeroDate(t *testing.T) {
	if _, err := Classify(time.Time{}, date(2026, time.May, 1)); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDueThresholdsTenDaysOut(t *testing.T) {
	asOf := date(2026, time.May, 1)
	expiry := asOf.AddDate(0, 0, 10)

	sched := DueThresholds(expiry, asOf, []int{90, 60, 30, 7, 1})

	wantPassed := []int{30, 60, 90}
	if len(sched.Passed) != len(wantPassed) {
		t.Fatalf("expected passed %v, got %v", wantPassed, sched.Passed)
	}
	for i, v := range wantPassed {
		if sched.Passed[i] != v {
			t.Fatalf("expected passed %v, got %v", wantPassed, sched.Passed)
		}
	}

	wantFuture := []int{1, 7}
	if len(sched.Future) != len(wantFuture) {
		t.Fatalf("expected future %v, got %v", wantFuture, sched.Future)
	}
	for i, v := range wantFuture {
		if sched.Future[i] != v {
			t.Fatalf("expected future %v, got %v", wantFuture, sched.Future)
		}
	}

	if sched.NextDue == nil || *sched.NextDue != 7 {
		t.Fatalf("expected next due 7, got %v", sched.NextDue)
	}
}

func TestDueThresholdsDeduplicatesAndSorts(t *testing.T) {
	asOf := date(2026, time.May, 1)
	expiry := asOf.AddDate(0, 0, 45)

	sched := DueThresholds(expiry, asOf, []int{7, 90, 7, 60, -4, 90, 1})

	wantPassed := []int{60, 90}
	if len(sched.Passed) != len(wantPassed) {
		t.Fatalf("expected passed %v, got %v", wantPassed, sched.Passed)
	}
	wantFuture := []int{1, 7}
	if len(sched.Future) != len(wantFuture) {
		t.Fatalf("expected future %v, got %v", wantFuture, sched.Future)
	}
	if sched.NextDue == nil || *sched.NextDue != 7 {
		t.Fatalf("expected next due 7, got %v", sched.NextDue)
	}
}

func TestDueThresholdsAllPassedOrAllFuture(t *testing.T) {
	asOf := date(2026, time.May, 1)

	expired := DueThresholds(asOf.AddDate(0, 0, -3), asOf, []int{30, 7, 1})
	if len(expired.Passed) != 3 || len(expired.Future) != 0 {
		t.Fatalf("expired credential should pass everything, got passed=%v future=%v", expired.Passed, expired.Future)
	}
	if expired.NextDue != nil {
		t.Fatalf("expected no next due, got %d", *expired.NextDue)
	}

	fresh := DueThresholds(asOf.AddDate(0, 0, 365), asOf, []int{30, 7, 1})
	if len(fresh.Passed) != 0 || len(fresh.Future) != 3 {
		t.Fatalf("fresh credential should pass nothing, got passed=%v future=%v", fresh.Passed, fresh.Future)
	}
	if fresh.NextDue == nil || *fresh.NextDue != 30 {
		t.Fatalf("expected next due 30, got %v", fresh.NextDue)
	}
}

func TestDueThresholdsEmptyInput(t *testing.T) {
	sched := DueThresholds(date(2026, time.May, 10), date(2026, time.May, 1), nil)
	if len(sched.Passed) != 0 || len(sched.Future) != 0 || sched.NextDue != nil {
		t.Fatalf("expected empty schedule, got %+v", sched)
	}
}
