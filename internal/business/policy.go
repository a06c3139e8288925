// Package business holds the business profile and its weekly hours policy.
package business

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const minutesPerDay = 24 * 60

var (
	// ErrInvalidHours is returned when a day's open/close pair cannot be used.
	ErrInvalidHours = errors.New("business: invalid hours")
	// ErrMissingTimezone is returned when the policy has no reference timezone.
	ErrMissingTimezone = errors.New("business: reference timezone required")
	// ErrUnknownTimezone is returned when the reference timezone cannot be loaded.
	ErrUnknownTimezone = errors.New("business: unknown timezone")
)

// IsPolicyError reports whether err came from policy validation.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrInvalidHours) || errors.Is(err, ErrMissingTimezone) || errors.Is(err, ErrUnknownTimezone)
}

// DayHours is one day's opening window in the reference timezone.
// Close before Open means the window ends on the following day.
type DayHours struct {
	Open  string `json:"open" yaml:"open"`   // "18:00" in 24-hour format
	Close string `json:"close" yaml:"close"` // "03:00" in 24-hour format
}

// Minutes returns the open and close times as minutes after midnight.
func (d DayHours) Minutes() (int, int, error) {
	open, err := parseClock(d.Open)
	if err != nil {
		return 0, 0, err
	}
	closing, err := parseClock(d.Close)
	if err != nil {
		return 0, 0, err
	}
	return open, closing, nil
}

// Duration is the length of the window, wrapping past midnight when Close < Open.
func (d DayHours) Duration() (time.Duration, error) {
	open, closing, err := d.Minutes()
	if err != nil {
		return 0, err
	}
	span := closing - open
	if span < 0 {
		span += minutesPerDay
	}
	if span == 0 {
		return 0, fmt.Errorf("%w: %s-%s has no duration", ErrInvalidHours, d.Open, d.Close)
	}
	return time.Duration(span) * time.Minute, nil
}

// String renders the window as "18:00-03:00".
func (d DayHours) String() string {
	return d.Open + "-" + d.Close
}

// Policy maps each weekday to its hours. Nil means closed that day.
type Policy struct {
	Timezone  string    `json:"timezone" yaml:"timezone"`
	Sunday    *DayHours `json:"sunday,omitempty" yaml:"sunday,omitempty"`
	Monday    *DayHours `json:"monday,omitempty" yaml:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty" yaml:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty" yaml:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty" yaml:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty" yaml:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty" yaml:"saturday,omitempty"`
}

// DefaultPolicy is the evening schedule: 18:00 to 03:00 in the reference zone,
// closed on Sundays.
func DefaultPolicy(timezone string) Policy {
	evening := func() *DayHours { return &DayHours{Open: "18:00", Close: "03:00"} }
	return Policy{
		Timezone:  timezone,
		Sunday:    nil,
		Monday:    evening(),
		Tuesday:   evening(),
		Wednesday: evening(),
		Thursday:  evening(),
		Friday:    evening(),
		Saturday:  evening(),
	}
}

// ForDay returns the hours for a weekday, or nil when closed.
func (p *Policy) ForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return p.Sunday
	case time.Monday:
		return p.Monday
	case time.Tuesday:
		return p.Tuesday
	case time.Wednesday:
		return p.Wednesday
	case time.Thursday:
		return p.Thursday
	case time.Friday:
		return p.Friday
	case time.Saturday:
		return p.Saturday
	default:
		return nil
	}
}

// SetDay replaces the hours for one weekday. Pass nil to close the day.
func (p *Policy) SetDay(weekday time.Weekday, hours *DayHours) {
	switch weekday {
	case time.Sunday:
		p.Sunday = hours
	case time.Monday:
		p.Monday = hours
	case time.Tuesday:
		p.Tuesday = hours
	case time.Wednesday:
		p.Wednesday = hours
	case time.Thursday:
		p.Thursday = hours
	case time.Friday:
		p.Friday = hours
	case time.Saturday:
		p.Saturday = hours
	}
}

// Closed reports whether the business is closed on the weekday.
func (p *Policy) Closed(weekday time.Weekday) bool {
	return p.ForDay(weekday) == nil
}

// IsOpenBetween reports whether [start, end) lies inside a single opening
// window, judged on the reference calendar. A window that wraps past
// midnight belongs to the day it opened.
func (p *Policy) IsOpenBetween(start, end time.Time) bool {
	loc := p.Location()
	y, m, d := start.In(loc).Date()
	for _, delta := range []int{0, -1} {
		day := time.Date(y, m, d+delta, 0, 0, 0, 0, loc)
		hours := p.ForDay(day.Weekday())
		if hours == nil {
			continue
		}
		open, closing, err := hours.Minutes()
		if err != nil {
			continue
		}
		if closing <= open {
			closing += minutesPerDay
		}
		from := time.Date(y, m, d+delta, 0, open, 0, 0, loc)
		to := time.Date(y, m, d+delta, 0, closing, 0, 0, loc)
		if !start.Before(from) && !end.After(to) {
			return true
		}
	}
	return false
}

// Location loads the reference timezone, or UTC when it cannot be loaded.
func (p *Policy) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the timezone loads and every open day has a positive window.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Timezone) == "" {
		return ErrMissingTimezone
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnknownTimezone, p.Timezone, err)
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours := p.ForDay(day)
		if hours == nil {
			continue
		}
		if _, err := hours.Duration(); err != nil {
			return fmt.Errorf("business: %s: %w", strings.ToLower(day.String()), err)
		}
	}
	return nil
}

// Summary renders the weekly policy for humans, one line per day.
func (p *Policy) Summary() string {
	var b strings.Builder
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours := p.ForDay(day)
		b.WriteString(day.String())
		b.WriteString(": ")
		if hours == nil {
			b.WriteString("closed")
		} else {
			b.WriteString(hours.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// LoadPolicyFile reads a YAML policy. Days that are omitted are closed.
func LoadPolicyFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("business: read policy file: %w", err)
	}
	return ParsePolicyYAML(data)
}

// ParsePolicyYAML decodes and validates a YAML policy document.
func ParsePolicyYAML(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("business: decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidHours, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
