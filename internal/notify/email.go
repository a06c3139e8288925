package notify

import (
	"context"
	"strings"

	"github.com/wolfman30/intake-engine/pkg/logging"
)

// DefaultFromName is used when no sender name is configured.
const DefaultFromName = "Studio Bookings"

// EmailSender delivers one message. SendGrid and SES implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is an outgoing email. It is stored as JSON while it waits
// for a retry, so every field must survive a round trip.
type EmailMessage struct {
	Kind    Kind   `json:"kind,omitempty"`
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html,omitempty"`
}

// From is the address a provider sends as.
type From struct {
	Email string
	Name  string
}

func (f From) withDefaults() From {
	f.Email = strings.TrimSpace(f.Email)
	if strings.TrimSpace(f.Name) == "" {
		f.Name = DefaultFromName
	}
	return f
}

// StubEmailSender logs instead of sending. Used when no provider is set up.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent, no provider configured", "kind", string(msg.Kind), "to", msg.To, "subject", msg.Subject)
	return nil
}
