// Package expiry holds the pure date math that turns a credential's expiry
// date into a status and a reminder schedule. Everything here is deterministic
// and side-effect free; dispatch bookkeeping lives in internal/reminders.
package expiry

import (
	"errors"
	"sort"
	"time"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

// ExpiringSoonWindowDays is the upper bound of the expiring-soon bucket.
const ExpiringSoonWindowDays = 30

// ErrInvalidDate signals a missing or zero expiry date.
var ErrInvalidDate = errors.New("invalid expiry date")

// Classification is the result of classifying a single expiry date.
type Classification struct {
	DaysUntil int
	Status    enums.CredentialStatus
}

// Schedule partitions a threshold set relative to an as-of date.
type Schedule struct {
	// Passed holds thresholds whose reminder window has been reached or gone
	// by (daysUntil <= t), ascending.
	Passed []int
	// Future holds thresholds not yet reached (t < daysUntil), ascending.
	Future []int
	// NextDue is the threshold that will fire next as days advance, i.e. the
	// largest value in Future. Nil when no future thresholds remain.
	NextDue *int
}

// DaysUntil returns the signed whole-day count from asOf to expiry. Both
// inputs are normalized to UTC midnight first so time-of-day and DST shifts
// can never skew the difference.
func DaysUntil(expiry, asOf time.Time) int {
	return int(midnightUTC(expiry).Sub(midnightUTC(asOf)).Hours() / 24)
}

// Classify maps an expiry date to its day count and tri-state status.
func Classify(expiry, asOf time.Time) (Classification, error) {
	if expiry.IsZero() {
		return Classification{}, ErrInvalidDate
	}

	daysUntil := DaysUntil(expiry, asOf)
	status := enums.CredentialStatusValid
	switch {
	case daysUntil < 0:
		status = enums.CredentialStatusExpired
	case daysUntil <= ExpiringSoonWindowDays:
		status = enums.CredentialStatusExpiringSoon
	}

	return Classification{DaysUntil: daysUntil, Status: status}, nil
}

// DueThresholds classifies each configured threshold as passed or future for
// the given expiry/asOf pair. The input may be unsorted and contain
// duplicates; negative thresholds are dropped.
func DueThresholds(expiry, asOf time.Time, thresholds []int) Schedule {
	daysUntil := DaysUntil(expiry, asOf)

	uniq := make([]int, 0, len(thresholds))
	seen := make(map[int]struct{}, len(thresholds))
	for _, t := range thresholds {
		if t < 0 {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Ints(uniq)

	sched := Schedule{}
	for _, t := range uniq {
		if daysUntil <= t {
			sched.Passed = append(sched.Passed, t)
		} else {
			sched.Future = append(sched.Future, t)
		}
	}

	if n := len(sched.Future); n > 0 {
		next := sched.Future[n-1]
		sched.NextDue = &next
	}

	return sched
}

func midnightUTC(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
