// Package replies is the client side of the automated reply service.
package replies

import (
	"context"
	"errors"
	"strings"
)

// ActionOpenForm asks the widget to open the appointment form.
const ActionOpenForm = "open_form"

// ErrUnavailable wraps transport and status failures.
var ErrUnavailable = errors.New("replies: service unavailable")

// Context is what the service knows about the visitor.
type Context struct {
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	ConversationLength int    `json:"conversation_length"`
	BusinessProfile    string `json:"business_profile,omitempty"`
}

// Request carries the latest visitor message.
type Request struct {
	Message string  `json:"message"`
	Context Context `json:"context"`
}

// Response is the service's answer. Reply may be empty, in which case the
// caller must fall back to a local reply.
type Response struct {
	Reply               string `json:"reply"`
	ShowContactForm     bool   `json:"show_contact_form,omitempty"`
	ShowAppointmentForm bool   `json:"show_appointment_form,omitempty"`
	Action              string `json:"action,omitempty"`

	// Fallback is set when Reply came from the local generator.
	Fallback bool `json:"-"`
}

// WantsAppointment reports whether the response asks for the appointment form.
func (r Response) WantsAppointment() bool {
	return r.ShowAppointmentForm || strings.EqualFold(strings.TrimSpace(r.Action), ActionOpenForm)
}

// Empty reports a blank reply.
func (r Response) Empty() bool {
	return strings.TrimSpace(r.Reply) == ""
}

// Service produces a reply for a visitor message.
type Service interface {
	Reply(ctx context.Context, req Request) (Response, error)
}
