package reminders

import (
	"time"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

// Request is one outbound notification for a (credential, threshold, channel)
// triple. The notifier decides how the channel maps onto a transport.
type Request struct {
	Channel        enums.Channel
	Recipient      string
	UserID         uuid.UUID
	UserName       string
	CredentialID   uuid.UUID
	CredentialName string
	CredentialType enums.CredentialType
	Organization   string
	ExpiryDate     time.Time
	DaysUntil      int
	ThresholdDays  int
	Link           string
}

// EventVersion tags reminder events on the wire so consumers can evolve.
const EventVersion = "reminder.v1"

// Event is the JSON body published for channels that are delivered
// asynchronously (in-app rows and SMS handoff).
type Event struct {
	Version        string    `json:"version"`
	EventID        string    `json:"event_id"`
	Channel        string    `json:"channel"`
	UserID         uuid.UUID `json:"user_id"`
	Recipient      string    `json:"recipient,omitempty"`
	CredentialID   uuid.UUID `json:"credential_id"`
	CredentialName string    `json:"credential_name"`
	CredentialType string    `json:"credential_type"`
	Organization   string    `json:"organization,omitempty"`
	ExpiryDate     time.Time `json:"expiry_date"`
	DaysUntil      int       `json:"days_until"`
	ThresholdDays  int       `json:"threshold_days"`
	Link           string    `json:"link,omitempty"`
}

// NewEvent builds the wire event for a dispatch request.
func NewEvent(req Request) Event {
	return Event{
		Version:        EventVersion,
		EventID:        uuid.NewString(),
		Channel:        req.Channel.String(),
		UserID:         req.UserID,
		Recipient:      req.Recipient,
		CredentialID:   req.CredentialID,
		CredentialName: req.CredentialName,
		CredentialType: req.CredentialType.String(),
		Organization:   req.Organization,
		ExpiryDate:     req.ExpiryDate,
		DaysUntil:      req.DaysUntil,
		ThresholdDays:  req.ThresholdDays,
		Link:           req.Link,
	}
}
