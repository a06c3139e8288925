package widget

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/intake-engine/internal/booking"
)

// failureMessage is the transcript line for a failed appointment submission.
func failureMessage(kind booking.FailureKind, err error, date string) string {
	switch kind {
	case booking.FailureValidation:
		return "Some details need another look. Please check the highlighted fields and try again."
	case booking.FailureBusinessRule:
		return businessRuleMessage(err, date)
	case booking.FailureConnectivity:
		return "We couldn't reach our scheduling system just now. Your details are still in the form, so you can try again, or our team will follow up with you by email."
	default:
		return "We received your request and our team will confirm your appointment by email shortly."
	}
}

func businessRuleMessage(err error, date string) string {
	hours := booking.ValidHours(err)
	when := "that date"
	if date != "" {
		when = date
	}
	if len(hours) == 0 {
		return fmt.Sprintf("We don't have any openings on %s. Please choose another date.", when)
	}
	lead := "That time is outside our business hours."
	if errors.Is(err, booking.ErrSlotUnavailable) {
		lead = "That time was just booked."
	}
	return fmt.Sprintf("%s Available times on %s: %s.", lead, when, strings.Join(hours, ", "))
}
