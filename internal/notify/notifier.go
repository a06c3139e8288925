package notify

import (
	"context"
	"strings"

	"github.com/wolfman30/intake-engine/internal/events"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Notifier emails the business about new bookings and contacts, and
// acknowledges bookings to the visitor.
type Notifier struct {
	email    EmailSender
	business string
	to       string
	retry    RetryQueue
	logger   *logging.Logger
}

// RetryQueue takes emails whose first delivery attempt failed.
type RetryQueue interface {
	Enqueue(ctx context.Context, msg EmailMessage) error
}

// NewNotifier creates a notifier. An empty notifyEmail skips business emails.
func NewNotifier(email EmailSender, business, notifyEmail string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{email: email, business: business, to: strings.TrimSpace(notifyEmail), logger: logger}
}

// WithRetry hands failed sends to q for later delivery.
func (n *Notifier) WithRetry(q RetryQueue) *Notifier {
	if n != nil {
		n.retry = q
	}
	return n
}

// NotifyAppointmentCreated sends both emails. The first failure is returned
// after both are attempted.
func (n *Notifier) NotifyAppointmentCreated(ctx context.Context, evt events.AppointmentCreatedV1) error {
	if n == nil || n.email == nil {
		return nil
	}

	var firstErr error
	if n.to != "" {
		if err := n.send(ctx, AppointmentRequestedEmail(n.business, n.to, evt)); err != nil {
			n.logger.Error("notify: business email failed", "error", err, "appointment_id", evt.AppointmentID)
			firstErr = err
		}
	}

	if strings.TrimSpace(evt.Email) != "" {
		if err := n.send(ctx, AppointmentReceiptEmail(n.business, evt)); err != nil {
			n.logger.Error("notify: visitor email failed", "error", err, "appointment_id", evt.AppointmentID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyContactCaptured emails the business about a new contact.
func (n *Notifier) NotifyContactCaptured(ctx context.Context, evt events.ContactCapturedV1) error {
	if n == nil || n.email == nil || n.to == "" {
		return nil
	}
	if err := n.send(ctx, ContactCapturedEmail(n.business, n.to, evt)); err != nil {
		n.logger.Error("notify: contact email failed", "error", err, "lead_id", evt.LeadID)
		return err
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, msg EmailMessage) error {
	err := n.email.Send(ctx, msg)
	if err == nil || n.retry == nil {
		return err
	}
	if qerr := n.retry.Enqueue(ctx, msg); qerr != nil {
		n.logger.Error("notify: enqueue retry failed", "error", qerr, "kind", string(msg.Kind), "to", msg.To)
	}
	return err
}
