package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/internal/reminders"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

const reminderConsumerScope = "reminder-notifications"

// eventDedupeTTL bounds how long processed event ids are remembered. Pub/Sub
// redelivery windows are far shorter than a week.
const eventDedupeTTL = 7 * 24 * time.Hour

type createRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Consumer turns reminder events from the dispatch pipeline into in-app
// notification rows. SMS events share the topic and are acked untouched; the
// messaging relay owns that channel.
type Consumer struct {
	repo         createRepository
	subscription *pubsub.Subscriber
	idempotency  idempotencyStore
	logg         *logger.Logger
}

// NewConsumer builds a reminder notification consumer.
func NewConsumer(repo createRepository, subscription *pubsub.Subscriber, store idempotencyStore, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("reminder subscription required")
	}
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  store,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"channel":    msg.Attributes["channel"],
	})

	if msg.Attributes["version"] != reminders.EventVersion {
		c.logg.Info(logCtx, "skipping unknown event version")
		return processResult{ack: true}
	}
	if msg.Attributes["channel"] != enums.ChannelInApp.String() {
		return processResult{ack: true}
	}

	var event reminders.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode reminder event", err)
		return processResult{ack: true}
	}
	if event.EventID == "" || event.UserID == uuid.Nil {
		c.logg.Warn(logCtx, "reminder event missing identity fields")
		return processResult{ack: true}
	}

	key := c.idempotency.IdempotencyKey(reminderConsumerScope, event.EventID)
	fresh, err := c.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), eventDedupeTTL)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification := buildReminderNotification(event)
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Del(ctx, key)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithUserID(logCtx, event.UserID.String()), "reminder notification stored")
	return processResult{ack: true}
}

func buildReminderNotification(event reminders.Event) *models.Notification {
	var link *string
	if event.Link != "" {
		link = &event.Link
	}
	return &models.Notification{
		UserID:  event.UserID,
		Type:    enums.NotificationTypeExpiryReminder,
		Title:   reminderTitle(event),
		Message: reminderMessage(event),
		Link:    link,
	}
}

func reminderTitle(event reminders.Event) string {
	switch {
	case event.DaysUntil < 0:
		return fmt.Sprintf("%s has expired", event.CredentialName)
	case event.DaysUntil == 0:
		return fmt.Sprintf("%s expires today", event.CredentialName)
	case event.DaysUntil == 1:
		return fmt.Sprintf("%s expires tomorrow", event.CredentialName)
	default:
		return fmt.Sprintf("%s expires in %d days", event.CredentialName, event.DaysUntil)
	}
}

func reminderMessage(event reminders.Event) string {
	expires := event.ExpiryDate.Format("January 2, 2006")
	if event.Organization != "" {
		return fmt.Sprintf("Your %s from %s expires on %s. Renew it to stay compliant.",
			event.CredentialName, event.Organization, expires)
	}
	return fmt.Sprintf("Your %s expires on %s. Renew it to stay compliant.", event.CredentialName, expires)
}
