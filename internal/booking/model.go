// Package booking accepts appointment requests from the intake widget.
package booking

import (
	"context"
	"time"

	"github.com/wolfman30/intake-engine/internal/intake"
)

// Status of an appointment request. Changes after acceptance belong to the
// team working the request.
type Status string

const StatusPending Status = "pending"

// AppointmentRequest is the validated appointment form plus bookkeeping.
type AppointmentRequest struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Services       []string  `json:"services"`
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot"`
	Notes          string    `json:"notes,omitempty"`
	SourceTimezone string    `json:"source_timezone"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	StartsAt       time.Time `json:"starts_at,omitempty"`
}

// NewRequest builds a pending request from the widget form.
func NewRequest(form intake.AppointmentForm, sourceTimezone string) AppointmentRequest {
	return AppointmentRequest{
		Name:           form.Name,
		Email:          form.Email,
		Phone:          form.Phone,
		Services:       form.SelectedServices(),
		Date:           form.Date,
		TimeSlot:       form.Time,
		Notes:          form.Notes,
		SourceTimezone: sourceTimezone,
		Status:         StatusPending,
	}
}

// Form returns the request as the widget form it came from.
func (r AppointmentRequest) Form() intake.AppointmentForm {
	return intake.AppointmentForm{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Services: r.Services,
		Date:     r.Date,
		Time:     r.TimeSlot,
		Notes:    r.Notes,
	}
}

// Confirmation acknowledges an accepted request.
type Confirmation struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	TimeSlot string    `json:"time_slot"`
	StartsAt time.Time `json:"starts_at"`
}

// Endpoint accepts appointment requests.
type Endpoint interface {
	Submit(ctx context.Context, req AppointmentRequest) (*Confirmation, error)
}
