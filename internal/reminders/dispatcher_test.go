package reminders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	dbtypes "github.com/certtracker/certtracker-backend/pkg/db/types"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/metrics"
)

var testAsOf = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

type fakeUserSource struct {
	users []models.User
}

func (f *fakeUserSource) ListActivePaged(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error) {
	sorted := append([]models.User(nil), f.users...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })

	var page []models.User
	for _, u := range sorted {
		if afterID != uuid.Nil && u.ID.String() <= afterID.String() {
			continue
		}
		page = append(page, u)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

type fakeCredentialSource struct {
	byUser map[uuid.UUID][]models.Credential
}

func (f *fakeCredentialSource) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error) {
	return f.byUser[userID], nil
}

type fakePreferenceSource struct {
	byUser map[uuid.UUID]*models.NotificationPreference
}

func (f *fakePreferenceSource) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	if pref, ok := f.byUser[userID]; ok {
		return pref, nil
	}
	return &models.NotificationPreference{
		UserID:        userID,
		EmailEnabled:  true,
		InAppEnabled:  true,
		ThresholdDays: dbtypes.IntArray{90, 60, 30, 7, 1},
	}, nil
}

type memLedger struct {
	mu   sync.Mutex
	rows map[uuid.UUID]map[int]bool
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[uuid.UUID]map[int]bool)}
}

func (l *memLedger) MarkSent(ctx context.Context, credentialID uuid.UUID, thresholdDays int, sentAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rows[credentialID][thresholdDays] {
		return false, nil
	}
	if l.rows[credentialID] == nil {
		l.rows[credentialID] = make(map[int]bool)
	}
	l.rows[credentialID][thresholdDays] = true
	return true, nil
}

func (l *memLedger) SentPairs(ctx context.Context, credentialIDs []uuid.UUID) (map[uuid.UUID]map[int]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uuid.UUID]map[int]bool)
	for _, id := range credentialIDs {
		if thresholds, ok := l.rows[id]; ok {
			copied := make(map[int]bool, len(thresholds))
			for t, v := range thresholds {
				copied[t] = v
			}
			out[id] = copied
		}
	}
	return out, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, thresholds := range l.rows {
		total += len(thresholds)
	}
	return total
}

func (l *memLedger) has(credentialID uuid.UUID, threshold int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[credentialID][threshold]
}

type recordingNotifier struct {
	mu           sync.Mutex
	sends        []Request
	failChannels map[enums.Channel]bool
}

func (n *recordingNotifier) Send(ctx context.Context, req Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failChannels[req.Channel] {
		return errors.New("transport unavailable")
	}
	n.sends = append(n.sends, req)
	return nil
}

func (n *recordingNotifier) countByChannel(channel enums.Channel) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sends {
		if s.Channel == channel {
			count++
		}
	}
	return count
}

func newTestDispatcher(t *testing.T, users *fakeUserSource, creds *fakeCredentialSource, prefs *fakePreferenceSource, ledger *memLedger, notifier Notifier) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{
		Users:       users,
		Credentials: creds,
		Preferences: prefs,
		Ledger:      ledger,
		Notifier:    notifier,
		Metrics:     metrics.NewDispatchMetrics(nil),
		Logger:      logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}),
		Config: config.RemindersConfig{
			UserWorkers:  2,
			UserPageSize: 2,
			MaxAttempts:  1,
			CallTimeout:  time.Second,
		},
		BaseURL: "https://certtracker.test/",
		Now: func() time.Time { return testAsOf },
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func seedWorld(expiryOffsetDays int) (*fakeUserSource, *fakeCredentialSource, *fakePreferenceSource, models.User, models.Credential) {
	user := models.User{
		ID:       uuid.New(),
		Email:    "vet@example.com",
		FullName: "Dana Vet",
		Plan:     enums.PlanFree,
		IsActive: true,
	}
	cred := models.Credential{
		ID:           uuid.New(),
		UserID:       user.ID,
		Name:         "DEA Registration",
		Type:         enums.CredentialTypeLicense,
		Organization: "DEA",
		ExpiryDate:   testAsOf.AddDate(0, 0, expiryOffsetDays),
	}
	users := &fakeUserSource{users: []models.User{user}}
	creds := &fakeCredentialSource{byUser: map[uuid.UUID][]models.Credential{user.ID: {cred}}}
	prefs := &fakePreferenceSource{byUser: map[uuid.UUID]*models.NotificationPreference{}}
	return users, creds, prefs, user, cred
}

func TestRunSendsDueRemindersThenIsIdempotent(t *testing.T) {
	users, creds, prefs, _, cred := seedWorld(10)
	ledger := newMemLedger()
	notifier := &recordingNotifier{}
	d := newTestDispatcher(t, users, creds, prefs, ledger, notifier)

	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 10 days out with thresholds {90,60,30,7,1}: passed = {30,60,90},
	// delivered over email and in-app.
	if report.Processed != 1 {
		t.Fatalf("expected 1 credential processed, got %d", report.Processed)
	}
	if report.Sent != 6 {
		t.Fatalf("expected 6 sends (3 thresholds x 2 channels), got %d", report.Sent)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if got := notifier.countByChannel(enums.ChannelEmail); got != 3 {
		t.Fatalf("expected 3 email sends, got %d", got)
	}
	wantLink := "https://certtracker.test/credentials/" + cred.ID.String()
	for _, s := range notifier.sends {
		if s.DaysUntil != 10 {
			t.Fatalf("expected daysUntil 10 on request, got %d", s.DaysUntil)
		}
		if s.Link != wantLink {
			t.Fatalf("expected deep link %q, got %q", wantLink, s.Link)
		}
	}

	// Rerunning with unchanged state must send nothing.
	second, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Sent != 0 {
		t.Fatalf("expected idempotent second run, got %d sends", second.Sent)
	}
	if second.Skipped != 3 {
		t.Fatalf("expected 3 already-sent skips, got %d", second.Skipped)
	}
}

func TestRunSkipsRecordedPair(t *testing.T) {
	users, creds, prefs, _, cred := seedWorld(10)
	ledger := newMemLedger()
	if _, err := ledger.MarkSent(context.Background(), cred.ID, 30, testAsOf.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	notifier := &recordingNotifier{}
	d := newTestDispatcher(t, users, creds, prefs, ledger, notifier)

	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Sent != 4 {
		t.Fatalf("expected 4 sends (60 and 90 over 2 channels), got %d", report.Sent)
	}
	for _, s := range notifier.sends {
		if s.ThresholdDays == 30 {
			t.Fatal("threshold 30 already recorded and must not resend")
		}
	}
}

func TestRunLeavesLedgerUnsetOnPartialFailure(t *testing.T) {
	users, creds, prefs, _, cred := seedWorld(5)
	ledger := newMemLedger()
	notifier := &recordingNotifier{failChannels: map[enums.Channel]bool{enums.ChannelEmail: true}}
	d := newTestDispatcher(t, users, creds, prefs, ledger, notifier)

	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 5 days out passes {7,30,60,90}. Email fails each pair; in-app succeeds.
	if len(report.Failures) != 4 {
		t.Fatalf("expected 4 email failures, got %+v", report.Failures)
	}
	if got := notifier.countByChannel(enums.ChannelInApp); got != 4 {
		t.Fatalf("expected in-app sends to continue, got %d", got)
	}
	if ledger.count() != 0 {
		t.Fatal("partially failed pairs must stay unrecorded for retry")
	}

	// The transport recovers; the next run retries every pair.
	notifier.failChannels = nil
	retry, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if retry.Sent != 8 {
		t.Fatalf("expected full retry of 4 pairs x 2 channels, got %d", retry.Sent)
	}
	if ledger.count() != 4 {
		t.Fatalf("expected 4 ledger rows after recovery, got %d", ledger.count())
	}
	if !ledger.has(cred.ID, 7) {
		t.Fatal("expected threshold 7 recorded")
	}
}

func TestRunGatesSMSByPlanAndPhone(t *testing.T) {
	users, creds, prefs, user, _ := seedWorld(10)
	prefs.byUser[user.ID] = &models.NotificationPreference{
		UserID:        user.ID,
		EmailEnabled:  false,
		SMSEnabled:    true,
		InAppEnabled:  false,
		ThresholdDays: dbtypes.IntArray{30},
	}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}
	d := newTestDispatcher(t, users, creds, prefs, ledger, notifier)

	// Free plan: SMS is gated even though the preference is on.
	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Sent != 0 {
		t.Fatalf("expected no sends for gated sms, got %d", report.Sent)
	}
	if report.Gated != 1 {
		t.Fatalf("expected 1 gated channel, got %d", report.Gated)
	}
	if report.Skipped != 0 {
		t.Fatalf("gated channels must not count as already-sent skips, got %d", report.Skipped)
	}

	// Pro plan with a phone number delivers.
	phone := "+15555550123"
	users.users[0].Plan = enums.PlanPro
	users.users[0].Phone = &phone
	report, err = d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := notifier.countByChannel(enums.ChannelSMS); got != 1 {
		t.Fatalf("expected 1 sms send, got %d", got)
	}
	if notifier.sends[0].Recipient != phone {
		t.Fatalf("expected sms recipient %q, got %q", phone, notifier.sends[0].Recipient)
	}
	if report.Sent != 1 {
		t.Fatalf("expected 1 send, got %d", report.Sent)
	}
}

func TestRunRejectsCredentialWithoutExpiryDate(t *testing.T) {
	users, creds, prefs, user, cred := seedWorld(10)
	creds.byUser[user.ID][0].ExpiryDate = time.Time{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}
	d := newTestDispatcher(t, users, creds, prefs, ledger, notifier)

	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Sent != 0 {
		t.Fatalf("a credential without an expiry date must not dispatch, got %d sends", report.Sent)
	}
	if report.Processed != 1 {
		t.Fatalf("expected the credential counted as processed, got %d", report.Processed)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 per-item failure, got %+v", report.Failures)
	}
	failure := report.Failures[0]
	if failure.CredentialID != cred.ID || failure.Reason != "invalid expiry date" {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if ledger.count() != 0 {
		t.Fatal("no ledger rows may be written for an invalid expiry date")
	}
}

func TestRunWalksAllUserPages(t *testing.T) {
	var allUsers []models.User
	credsByUser := make(map[uuid.UUID][]models.Credential)
	for i := 0; i < 5; i++ {
		u := models.User{
			ID:       uuid.New(),
			Email:    fmt.Sprintf("user%d@example.com", i),
			FullName: fmt.Sprintf("User %d", i),
			Plan:     enums.PlanFree,
			IsActive: true,
		}
		allUsers = append(allUsers, u)
		credsByUser[u.ID] = []models.Credential{{
			ID:         uuid.New(),
			UserID:     u.ID,
			Name:       "CPR Certification",
			Type:       enums.CredentialTypeCertificate,
			ExpiryDate: testAsOf.AddDate(0, 0, 3),
		}}
	}
	users := &fakeUserSource{users: allUsers}
	creds := &fakeCredentialSource{byUser: credsByUser}
	prefs := &fakePreferenceSource{byUser: map[uuid.UUID]*models.NotificationPreference{}}
	d := newTestDispatcher(t, users, creds, prefs, newMemLedger(), &recordingNotifier{})

	report, err := d.Run(context.Background(), testAsOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Users != 5 {
		t.Fatalf("expected all 5 users visited across pages, got %d", report.Users)
	}
	if report.Processed != 5 {
		t.Fatalf("expected 5 credentials processed, got %d", report.Processed)
	}
}

func TestRunStopsBetweenPagesOnCancel(t *testing.T) {
	users, creds, prefs, _, _ := seedWorld(10)
	d := newTestDispatcher(t, users, creds, prefs, newMemLedger(), &recordingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, testAsOf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
