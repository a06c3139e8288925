// Package events defines the domain events the intake engine emits and the
// publishers that carry them.
package events

import "time"

const (
	TypeAppointmentCreated = "appointment.created"
	TypeContactCaptured    = "contact.captured"
)

// Envelope wraps an event payload on the wire.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type AppointmentCreatedV1 struct {
	EventID        string    `json:"event_id"`
	AppointmentID  string    `json:"appointment_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Services       []string  `json:"services"`
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot"`
	SourceTimezone string    `json:"source_timezone"`
	StartsAt       time.Time `json:"starts_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContactCapturedV1 struct {
	EventID    string    `json:"event_id"`
	LeadID     string    `json:"lead_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}
