package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/certtracker/certtracker-backend/pkg/config"
)

// Client sends transactional email through Resend.
type Client struct {
	emails    emailSender
	fromEmail string
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// New constructs a Resend-backed mail client.
func New(cfg config.ResendConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("from email is required")
	}
	rc := resend.NewClient(cfg.APIKey)
	return &Client{
		emails:    rc.Emails,
		fromEmail: cfg.FromEmail,
	}, nil
}

// Send delivers a single HTML email.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient is required")
	}
	params := &resend.SendEmailRequest{
		From:    c.fromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}
	if _, err := c.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("sending email via resend: %w", err)
	}
	return nil
}
