package reminders

import (
	"context"
	"encoding/json"
	"fmt"

	pubsublib "cloud.google.com/go/pubsub/v2"

	"github.com/certtracker/certtracker-backend/pkg/enums"
	"github.com/certtracker/certtracker-backend/pkg/mailer"
)

// Notifier delivers one dispatch request over its channel's transport.
type Notifier interface {
	Send(ctx context.Context, req Request) error
}

type mailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EventPublisher hands reminder events to the async pipeline. In-app rows are
// written by the notification worker; SMS is handed off to the external
// messaging relay consuming the same topic.
type EventPublisher interface {
	PublishReminder(ctx context.Context, ev Event) error
}

// Router fans a request out to the transport matching its channel. Email goes
// straight through Resend; in-app and SMS are published as events.
type Router struct {
	email  mailSender
	events EventPublisher
}

// NewRouter builds the channel router.
func NewRouter(email mailSender, events EventPublisher) (*Router, error) {
	if email == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if events == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	return &Router{email: email, events: events}, nil
}

// Send implements Notifier.
func (r *Router) Send(ctx context.Context, req Request) error {
	switch req.Channel {
	case enums.ChannelEmail:
		return r.sendEmail(ctx, req)
	case enums.ChannelSMS, enums.ChannelInApp:
		return r.events.PublishReminder(ctx, NewEvent(req))
	default:
		return fmt.Errorf("unsupported channel %q", req.Channel)
	}
}

func (r *Router) sendEmail(ctx context.Context, req Request) error {
	email := mailer.ReminderEmail{
		UserName:       req.UserName,
		CredentialName: req.CredentialName,
		CredentialType: req.CredentialType.String(),
		Organization:   req.Organization,
		ExpiryDate:     req.ExpiryDate,
		DaysUntil:      req.DaysUntil,
		RenewalLink:    req.Link,
	}
	body, err := mailer.RenderReminder(email)
	if err != nil {
		return err
	}
	return r.email.Send(ctx, req.Recipient, email.Subject(), body)
}

// PubSubPublisher publishes reminder events to the configured topic.
type PubSubPublisher struct {
	publisher *pubsublib.Publisher
}

// NewPubSubPublisher wraps a Pub/Sub publisher handle.
func NewPubSubPublisher(publisher *pubsublib.Publisher) (*PubSubPublisher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubPublisher{publisher: publisher}, nil
}

// PublishReminder implements EventPublisher. Publish blocks on the server ack
// so a failure here leaves the ledger untouched and the next run retries.
func (p *PubSubPublisher) PublishReminder(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal reminder event: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsublib.Message{
		Data: data,
		Attributes: map[string]string{
			"version":  ev.Version,
			"event_id": ev.EventID,
			"channel":  ev.Channel,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish reminder event: %w", err)
	}
	return nil
}
