package reminders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

type capturingMailSender struct {
	to      string
	subject string
	body    string
}

func (c *capturingMailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	c.to = to
	c.subject = subject
	c.body = htmlBody
	return nil
}

type capturingPublisher struct {
	events []Event
}

func (c *capturingPublisher) PublishReminder(ctx context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func sampleRequest(channel enums.Channel) Request {
	return Request{
		Channel:        channel,
		Recipient:      "vet@example.com",
		UserID:         uuid.New(),
		UserName:       "Dana Vet",
		CredentialID:   uuid.New(),
		CredentialName: "DEA Registration",
		CredentialType: enums.CredentialTypeLicense,
		Organization:   "DEA",
		ExpiryDate:     time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		DaysUntil:      10,
		ThresholdDays:  30,
		Link:           "https://certtracker.app/dashboard",
	}
}

func TestRouterSendsEmail(t *testing.T) {
	mail := &capturingMailSender{}
	router, err := NewRouter(mail, &capturingPublisher{})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	if err := router.Send(context.Background(), sampleRequest(enums.ChannelEmail)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mail.to != "vet@example.com" {
		t.Fatalf("expected recipient, got %q", mail.to)
	}
	if !strings.Contains(mail.subject, "expires in 10 days") {
		t.Fatalf("unexpected subject %q", mail.subject)
	}
	if !strings.Contains(mail.body, "DEA Registration") {
		t.Fatal("expected credential name in body")
	}
}

func TestRouterPublishesAsyncChannels(t *testing.T) {
	publisher := &capturingPublisher{}
	router, err := NewRouter(&capturingMailSender{}, publisher)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	for _, channel := range []enums.Channel{enums.ChannelInApp, enums.ChannelSMS} {
		if err := router.Send(context.Background(), sampleRequest(channel)); err != nil {
			t.Fatalf("send %s: %v", channel, err)
		}
	}

	if len(publisher.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(publisher.events))
	}
	for _, ev := range publisher.events {
		if ev.Version != EventVersion {
			t.Fatalf("expected event version %q, got %q", EventVersion, ev.Version)
		}
		if ev.EventID == "" {
			t.Fatal("expected event id for consumer dedupe")
		}
		if ev.ThresholdDays != 30 {
			t.Fatalf("expected threshold carried, got %d", ev.ThresholdDays)
		}
	}
}

func TestRouterRejectsUnknownChannel(t *testing.T) {
	router, err := NewRouter(&capturingMailSender{}, &capturingPublisher{})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	if err := router.Send(context.Background(), sampleRequest(enums.Channel("pager"))); err == nil {
		t.Fatal("expected error for unsupported channel")
	}
}
