package reminders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/certtracker/certtracker-backend/internal/expiry"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/metrics"
)

// Skip reasons recorded on the dispatch metrics.
const (
	skipAlreadySent      = "already_sent"
	skipPlanGated        = "plan_gated"
	skipMissingRecipient = "missing_recipient"
)

type userSource interface {
	ListActivePaged(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error)
}

type credentialSource interface {
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.Credential, error)
}

type preferenceSource interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
}

type ledgerStore interface {
	SentPairs(ctx context.Context, credentialIDs []uuid.UUID) (map[uuid.UUID]map[int]bool, error)
	MarkSent(ctx context.Context, credentialID uuid.UUID, thresholdDays int, sentAt time.Time) (bool, error)
}

// ItemFailure describes one delivery that exhausted its retries.
type ItemFailure struct {
	UserID        uuid.UUID     `json:"user_id"`
	CredentialID  uuid.UUID     `json:"credential_id,omitempty"`
	ThresholdDays int           `json:"threshold_days,omitempty"`
	Channel       enums.Channel `json:"channel,omitempty"`
	Reason        string        `json:"reason"`
}

// RunReport summarizes a dispatch run. Skipped counts (credential, threshold)
// pairs already recorded in the ledger; Gated counts channels suppressed per
// user by plan gating or a missing recipient.
type RunReport struct {
	AsOf      time.Time     `json:"as_of"`
	Users     int           `json:"users"`
	Processed int           `json:"processed"`
	Sent      int           `json:"sent"`
	Skipped   int           `json:"skipped"`
	Gated     int           `json:"gated"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// DispatcherParams bundles the dependencies for NewDispatcher.
type DispatcherParams struct {
	Users       userSource
	Credentials credentialSource
	Preferences preferenceSource
	Ledger      ledgerStore
	Notifier    Notifier
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
	Config      config.RemindersConfig
	BaseURL     string
	Now         func() time.Time
}

// Dispatcher walks every active user once per run and emits the reminders
// whose thresholds have newly passed. The ledger keeps reruns from
// double-sending; a notifier failure leaves the pair unrecorded so the next
// run retries it.
type Dispatcher struct {
	users       userSource
	credentials credentialSource
	preferences preferenceSource
	ledger      ledgerStore
	notifier    Notifier
	metrics     *metrics.DispatchMetrics
	logg        *logger.Logger
	cfg         config.RemindersConfig
	baseURL     string
	now         func() time.Time
}

// NewDispatcher wires a dispatcher from its dependencies.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user source required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential source required")
	}
	if params.Preferences == nil {
		return nil, fmt.Errorf("preference source required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	cfg := params.Config
	if cfg.UserWorkers <= 0 {
		cfg.UserWorkers = 10
	}
	if cfg.UserPageSize <= 0 {
		cfg.UserPageSize = 200
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	return &Dispatcher{
		users:       params.Users,
		credentials: params.Credentials,
		preferences: params.Preferences,
		ledger:      params.Ledger,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		logg:        params.Logger,
		cfg:         cfg,
		baseURL:     strings.TrimRight(params.BaseURL, "/"),
		now:         now,
	}, nil
}

// Run executes one dispatch pass. Users are processed concurrently up to the
// configured worker bound; one user's failure never aborts the batch. The run
// stops cleanly between user pages when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, asOf time.Time) (*RunReport, error) {
	if asOf.IsZero() {
		asOf = d.now()
	}

	report := &RunReport{AsOf: asOf}
	var mu sync.Mutex

	afterID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := d.users.ListActivePaged(ctx, afterID, d.cfg.UserPageSize)
		if err != nil {
			return report, fmt.Errorf("listing users: %w", err)
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.UserWorkers)
		for _, user := range page {
			user := user
			g.Go(func() error {
				result := d.processUser(gctx, &user, asOf)

				mu.Lock()
				report.Users++
				report.Processed += result.Processed
				report.Sent += result.Sent
				report.Skipped += result.Skipped
				report.Gated += result.Gated
				report.Failures = append(report.Failures, result.Failures...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < d.cfg.UserPageSize {
			break
		}
	}

	return report, nil
}

type userResult struct {
	Processed int
	Sent      int
	Skipped   int
	Gated     int
	Failures  []ItemFailure
}

func (d *Dispatcher) processUser(ctx context.Context, user *models.User, asOf time.Time) userResult {
	var result userResult
	ctx = d.logg.WithUserID(ctx, user.ID.String())

	prefs, err := d.preferences.GetPreferences(ctx, user.ID)
	if err != nil {
		result.Failures = append(result.Failures, ItemFailure{
			UserID: user.ID,
			Reason: fmt.Sprintf("load preferences: %v", err),
		})
		return result
	}

	channels := d.eligibleChannels(user, prefs, &result)
	if len(channels) == 0 {
		return result
	}

	creds, err := d.credentials.ListAllByUser(ctx, user.ID)
	if err != nil {
		result.Failures = append(result.Failures, ItemFailure{
			UserID: user.ID,
			Reason: fmt.Sprintf("load credentials: %v", err),
		})
		return result
	}
	if len(creds) == 0 {
		return result
	}

	ids := make([]uuid.UUID, len(creds))
	for i, c := range creds {
		ids[i] = c.ID
	}
	sent, err := d.ledger.SentPairs(ctx, ids)
	if err != nil {
		result.Failures = append(result.Failures, ItemFailure{
			UserID: user.ID,
			Reason: fmt.Sprintf("load reminder ledger: %v", err),
		})
		return result
	}

	thresholds := []int(prefs.ThresholdDays)
	for i := range creds {
		result.Processed++
		d.processCredential(ctx, user, &creds[i], channels, thresholds, sent[creds[i].ID], asOf, &result)
	}
	return result
}

// eligibleChannels resolves the user's enabled channels against plan gating
// and recipient availability.
func (d *Dispatcher) eligibleChannels(user *models.User, prefs *models.NotificationPreference, result *userResult) []enums.Channel {
	var channels []enums.Channel
	if prefs.EmailEnabled {
		channels = append(channels, enums.ChannelEmail)
	}
	if prefs.SMSEnabled {
		switch {
		case !user.Plan.AllowsSMS():
			d.metrics.IncSkipped(skipPlanGated)
			result.Gated++
		case user.Phone == nil || *user.Phone == "":
			d.metrics.IncSkipped(skipMissingRecipient)
			result.Gated++
		default:
			channels = append(channels, enums.ChannelSMS)
		}
	}
	if prefs.InAppEnabled {
		channels = append(channels, enums.ChannelInApp)
	}
	return channels
}

func (d *Dispatcher) processCredential(
	ctx context.Context,
	user *models.User,
	cred *models.Credential,
	channels []enums.Channel,
	thresholds []int,
	sentThresholds map[int]bool,
	asOf time.Time,
	result *userResult,
) {
	// A zero expiry date would classify as expired for every threshold; it is
	// a data defect, not a reminder.
	if cred.ExpiryDate.IsZero() {
		result.Failures = append(result.Failures, ItemFailure{
			UserID:       user.ID,
			CredentialID: cred.ID,
			Reason:       "invalid expiry date",
		})
		return
	}

	sched := expiry.DueThresholds(cred.ExpiryDate, asOf, thresholds)
	daysUntil := expiry.DaysUntil(cred.ExpiryDate, asOf)

	for _, threshold := range sched.Passed {
		if sentThresholds[threshold] {
			d.metrics.IncSkipped(skipAlreadySent)
			result.Skipped++
			continue
		}

		var sendErrs error
		for _, channel := range channels {
			req := Request{
				Channel:        channel,
				Recipient:      d.recipientFor(user, channel),
				UserID:         user.ID,
				UserName:       user.FullName,
				CredentialID:   cred.ID,
				CredentialName: cred.Name,
				CredentialType: cred.Type,
				Organization:   cred.Organization,
				ExpiryDate:     cred.ExpiryDate,
				DaysUntil:      daysUntil,
				ThresholdDays:  threshold,
				Link:           d.credentialLink(cred.ID),
			}

			if err := d.sendWithRetry(ctx, req); err != nil {
				sendErrs = multierr.Append(sendErrs, err)
				d.metrics.IncFailed(channel.String())
				result.Failures = append(result.Failures, ItemFailure{
					UserID:        user.ID,
					CredentialID:  cred.ID,
					ThresholdDays: threshold,
					Channel:       channel,
					Reason:        err.Error(),
				})
				continue
			}
			d.metrics.IncSent(channel.String())
			result.Sent++
		}

		// The ledger row is written only once every enabled channel got
		// through. A partially failed pair stays unrecorded so the next run
		// retries it; the resulting duplicate on the succeeded channel is the
		// documented trade-off against dropping reminders.
		if sendErrs != nil {
			continue
		}
		inserted, err := d.ledger.MarkSent(ctx, cred.ID, threshold, asOf)
		if err != nil {
			d.logg.Error(ctx, "reminder sent but ledger write failed", err)
			continue
		}
		if !inserted {
			d.logg.Warn(ctx, "reminder pair raced with a concurrent run")
		}
	}
}

// credentialLink builds the deep link to the credential's detail page.
func (d *Dispatcher) credentialLink(credentialID uuid.UUID) string {
	if d.baseURL == "" {
		return ""
	}
	return d.baseURL + "/credentials/" + credentialID.String()
}

func (d *Dispatcher) recipientFor(user *models.User, channel enums.Channel) string {
	switch channel {
	case enums.ChannelEmail:
		return user.Email
	case enums.ChannelSMS:
		if user.Phone != nil {
			return *user.Phone
		}
	}
	return ""
}

// sendWithRetry wraps a single notifier call with a timeout and bounded
// exponential backoff.
func (d *Dispatcher) sendWithRetry(ctx context.Context, req Request) error {
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
		defer cancel()
		return d.notifier.Send(callCtx, req)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.cfg.MaxAttempts-1)),
		ctx,
	)
	return backoff.Retry(op, policy)
}
