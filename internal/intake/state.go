package intake

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state. The machine is returned unchanged.
var ErrInvalidTransition = errors.New("intake: invalid transition")

// State is which part of the intake flow is showing.
type State int

const (
	Idle State = iota
	ContactFormOpen
	Chatting
	AppointmentFormOpen
	Disabled
	Confirmed
)

var stateNames = map[State]string{
	Idle:                "idle",
	ContactFormOpen:     "contact_form_open",
	Chatting:            "chatting",
	AppointmentFormOpen: "appointment_form_open",
	Disabled:            "disabled",
	Confirmed:           "confirmed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("intake: unknown state %q", text)
}

// Machine is the intake state plus the automated reply counter. The chat lock
// is derived from the counter, never stored.
type Machine struct {
	State   State `json:"state"`
	Replies int   `json:"replies"`
	Limit   int   `json:"limit"`
	Limited bool  `json:"limited"`
}

// NewMachine starts Idle. The reply limit only applies when limited is set.
func NewMachine(limit int, limited bool) Machine {
	return Machine{State: Idle, Limit: limit, Limited: limited}
}

// Locked reports that the reply budget is spent and free text is disabled.
func (m Machine) Locked() bool {
	return m.Limited && m.Limit > 0 && m.Replies >= m.Limit
}

// CanChat reports whether free-text messages are accepted.
func (m Machine) CanChat() bool {
	if m.Locked() {
		return false
	}
	return m.State == Chatting || m.State == Confirmed
}

func (m Machine) chatState() State {
	if m.Locked() {
		return Disabled
	}
	return Chatting
}

// Event drives a transition.
type Event interface {
	event() string
}

// Mounted fires once when the widget is constructed.
type Mounted struct{ ProfileSubmitted bool }

// ContactRequested asks for the contact form, usually from a reply flag.
type ContactRequested struct{}

// ContactSubmitted fires after the contact endpoint accepted the profile.
type ContactSubmitted struct{}

// Trigger names why the appointment form opened.
type Trigger string

const (
	TriggerCommand Trigger = "command"
	TriggerIntent  Trigger = "intent"
	TriggerReply   Trigger = "reply"
	TriggerLimit   Trigger = "limit"
	TriggerVisitor Trigger = "visitor"
)

// AppointmentRequested opens the appointment form.
type AppointmentRequested struct{ Trigger Trigger }

// BotReplied counts one automated reply.
type BotReplied struct{}

// AppointmentCancelled closes the appointment form without booking.
type AppointmentCancelled struct{}

// AppointmentConfirmed fires after the booking endpoint accepted the request.
type AppointmentConfirmed struct{}

// SubmissionFailed keeps the appointment form open for a retry.
type SubmissionFailed struct{ Kind string }

// ConfirmationDismissed closes the thank-you view.
type ConfirmationDismissed struct{}

func (Mounted) event() string               { return "mounted" }
func (ContactRequested) event() string      { return "contact_requested" }
func (ContactSubmitted) event() string      { return "contact_submitted" }
func (AppointmentRequested) event() string  { return "appointment_requested" }
func (BotReplied) event() string            { return "bot_replied" }
func (AppointmentCancelled) event() string  { return "appointment_cancelled" }
func (AppointmentConfirmed) event() string  { return "appointment_confirmed" }
func (SubmissionFailed) event() string      { return "submission_failed" }
func (ConfirmationDismissed) event() string { return "confirmation_dismissed" }

// EventName is the log name of an event.
func EventName(e Event) string {
	if e == nil {
		return ""
	}
	return e.event()
}

// Transition applies e to m. It has no side effects.
func Transition(m Machine, e Event) (Machine, error) {
	next := m
	switch ev := e.(type) {
	case Mounted:
		if m.State != Idle {
			return m, invalid(m, e)
		}
		if ev.ProfileSubmitted {
			next.State = m.chatState()
		} else {
			next.State = ContactFormOpen
		}

	case ContactRequested:
		switch m.State {
		case Chatting, ContactFormOpen:
			next.State = ContactFormOpen
		default:
			return m, invalid(m, e)
		}

	case ContactSubmitted:
		if m.State != ContactFormOpen {
			return m, invalid(m, e)
		}
		next.State = m.chatState()

	case AppointmentRequested:
		switch m.State {
		case ContactFormOpen, Chatting, Disabled, AppointmentFormOpen:
			next.State = AppointmentFormOpen
		default:
			return m, invalid(m, e)
		}

	case BotReplied:
		if m.State == Idle {
			return m, invalid(m, e)
		}
		next.Replies++
		if !m.Locked() && next.Locked() {
			switch m.State {
			case Chatting, ContactFormOpen, Disabled:
				next.State = AppointmentFormOpen
			}
		}

	case AppointmentCancelled:
		if m.State != AppointmentFormOpen {
			return m, invalid(m, e)
		}
		next.State = m.chatState()

	case AppointmentConfirmed:
		if m.State != AppointmentFormOpen {
			return m, invalid(m, e)
		}
		next.State = Confirmed

	case SubmissionFailed:
		if m.State != AppointmentFormOpen {
			return m, invalid(m, e)
		}

	case ConfirmationDismissed:
		if m.State != Confirmed {
			return m, invalid(m, e)
		}
		next.State = m.chatState()

	default:
		return m, invalid(m, e)
	}
	return next, nil
}

func invalid(m Machine, e Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, EventName(e), m.State)
}
