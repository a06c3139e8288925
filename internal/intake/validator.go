// Package intake holds the widget's form validation, its state machine and
// the command type used to open it from elsewhere on the site.
package intake

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/internal/scheduling"
)

// ErrValidation matches any FieldErrors returned as an error.
var ErrValidation = errors.New("intake: validation failed")

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

var fieldOrder = []string{"name", "email", "phone", "services", "date", "time"}

// FieldErrors maps a field name to its message. Empty means valid.
type FieldErrors map[string]string

// Valid reports whether there are no errors.
func (f FieldErrors) Valid() bool { return len(f) == 0 }

// First returns the first error in form order.
func (f FieldErrors) First() (string, string) {
	for _, field := range fieldOrder {
		if msg, ok := f[field]; ok {
			return field, msg
		}
	}
	for field, msg := range f {
		return field, msg
	}
	return "", ""
}

func (f FieldErrors) Error() string {
	field, msg := f.First()
	if field == "" {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + field + ": " + msg
}

// Is lets errors.Is(err, ErrValidation) match.
func (f FieldErrors) Is(target error) bool { return target == ErrValidation }

// Err returns nil when valid.
func (f FieldErrors) Err() error {
	if f.Valid() {
		return nil
	}
	return f
}

// ContactForm is the contact capture form.
type ContactForm struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// AppointmentForm is the appointment capture form. Date is "2006-01-02" in
// the visitor's calendar and Time is a slot label or its start time.
type AppointmentForm struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone,omitempty"`
	Services []string `json:"services"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Notes    string   `json:"notes,omitempty"`
}

// Contact returns the contact fields of the form.
func (f AppointmentForm) Contact() ContactForm {
	return ContactForm{Name: f.Name, Email: f.Email, Phone: f.Phone}
}

// SelectedServices drops blank entries.
func (f AppointmentForm) SelectedServices() []string {
	out := make([]string, 0, len(f.Services))
	for _, s := range f.Services {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidateContact checks name, email and the optional phone.
func ValidateContact(form ContactForm) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(form.Name) == "" {
		errs["name"] = "Please enter your name"
	}
	email := strings.TrimSpace(form.Email)
	switch {
	case email == "":
		errs["email"] = "Please enter your email"
	case !emailPattern.MatchString(email):
		errs["email"] = "Please enter a valid email address"
	}
	if phone := strings.TrimSpace(form.Phone); phone != "" {
		if n := len(PhoneDigits(phone)); n < 10 || n > 15 {
			errs["phone"] = "Phone number must have 10 to 15 digits"
		}
	}
	return errs
}

// PhoneDigits strips everything but digits.
func PhoneDigits(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// Calendar is what appointment validation needs to know about the visitor's
// day: the current instant, their zone, and the selected date's slots as
// annotated by scheduling.FilterPast.
type Calendar struct {
	Now      time.Time
	Location *time.Location
	Slots    []scheduling.LocalSlot
}

// ValidateAppointment applies the contact rules plus services, date and time.
func ValidateAppointment(form AppointmentForm, cal Calendar) FieldErrors {
	errs := ValidateContact(form.Contact())

	if len(form.SelectedServices()) == 0 {
		errs["services"] = "Please select at least one service"
	}

	loc := cal.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cal.Now
	if now.IsZero() {
		now = time.Now()
	}

	var date time.Time
	today := false
	if strings.TrimSpace(form.Date) == "" {
		errs["date"] = "Please choose a date"
	} else if d, err := scheduling.ParseDate(form.Date, loc); err != nil {
		errs["date"] = "Please enter a valid date"
	} else {
		date = d
		switch scheduling.CompareDay(date, now, loc) {
		case -1:
			errs["date"] = "Please choose today or a later date"
		case 0:
			today = true
		}
	}

	if strings.TrimSpace(form.Time) == "" {
		errs["time"] = "Please choose a time"
	} else if today {
		if slot, ok := scheduling.FindSlot(cal.Slots, form.Time); ok && slot.Past {
			errs["time"] = "That time has already passed, please pick a later slot"
		}
	}

	return errs
}
