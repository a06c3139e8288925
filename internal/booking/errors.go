package booking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/wolfman30/intake-engine/internal/intake"
)

var (
	// ErrInvalidRequest is a request the endpoint could not parse.
	ErrInvalidRequest = errors.New("booking: invalid request")
	// ErrOutsideBusinessHours is a slot that is not one of the day's slots.
	ErrOutsideBusinessHours = errors.New("booking: outside business hours")
	// ErrSlotUnavailable is a slot already at capacity.
	ErrSlotUnavailable = errors.New("booking: slot unavailable")
	// ErrConnectivity wraps storage and transport failures.
	ErrConnectivity = errors.New("booking: connectivity")
)

// BusinessRuleError carries the hours the visitor could pick instead.
type BusinessRuleError struct {
	Err        error
	Date       string
	ValidHours []string
}

func (e *BusinessRuleError) Error() string {
	if len(e.ValidHours) == 0 {
		return fmt.Sprintf("%v: no openings on %s", e.Err, e.Date)
	}
	return fmt.Sprintf("%v: valid hours on %s are %s", e.Err, e.Date, strings.Join(e.ValidHours, ", "))
}

func (e *BusinessRuleError) Unwrap() error { return e.Err }

// FailureKind is the category that picks the visitor-facing message.
type FailureKind string

const (
	FailureValidation   FailureKind = "validation"
	FailureBusinessRule FailureKind = "business_rule"
	FailureConnectivity FailureKind = "connectivity"
	FailureUnknown      FailureKind = "unknown"
)

// Classify maps an Endpoint error to its category.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var netErr net.Error
	switch {
	case errors.Is(err, intake.ErrValidation), errors.Is(err, ErrInvalidRequest):
		return FailureValidation
	case errors.Is(err, ErrOutsideBusinessHours), errors.Is(err, ErrSlotUnavailable):
		return FailureBusinessRule
	case errors.Is(err, ErrConnectivity),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return FailureConnectivity
	default:
		return FailureUnknown
	}
}

// ValidHours extracts the alternative hours from a business rule error.
func ValidHours(err error) []string {
	var rule *BusinessRuleError
	if errors.As(err, &rule) {
		return rule.ValidHours
	}
	return nil
}
