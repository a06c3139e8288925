package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrStorage wraps repository failures so callers can tell them from
	// validation errors.
	ErrStorage = errors.New("leads: storage unavailable")
)
