// Package scheduling turns the business hours policy into bookable slots in
// the visitor's timezone.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time as minutes after midnight, in [0, 1440).
type TimeOfDay int

// NewTimeOfDay normalizes minutes into a single day.
func NewTimeOfDay(minutes int) TimeOfDay {
	m := minutes % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return TimeOfDay(m)
}

// ParseTimeOfDay parses "15:04".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid time of day %q", value)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats as "15:04".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Clock formats as "6:00 PM".
func (t TimeOfDay) Clock() string {
	return time.Date(2000, 1, 1, t.Hour(), t.Minute(), 0, 0, time.UTC).Format("3:04 PM")
}

// Converter maps times of day between the reference zone the policy is
// written in and the visitor's zone. The zone offset difference is fixed at
// an anchor instant, which is what resolves DST for both zones.
//
// When either zone cannot be loaded the converter is in fallback mode: times
// pass through unchanged and ZoneLabel reports the reference zone.
type Converter struct {
	reference     *time.Location
	visitor       *time.Location
	referenceName string
	visitorName   string
	anchor        time.Time
	shift         int
	fallback      bool
}

// NewConverter resolves both zones and anchors the offset at the given instant.
func NewConverter(referenceTZ, visitorTZ string, anchor time.Time) *Converter {
	c := &Converter{
		referenceName: referenceTZ,
		visitorName:   visitorTZ,
	}

	ref, refErr := loadZone(referenceTZ)
	vis, visErr := loadZone(visitorTZ)
	switch {
	case refErr != nil:
		c.reference, c.visitor, c.fallback = time.UTC, time.UTC, true
	case visErr != nil:
		c.reference, c.visitor, c.fallback = ref, ref, true
	default:
		c.reference, c.visitor = ref, vis
	}
	return c.At(anchor)
}

func loadZone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("scheduling: empty timezone")
	}
	return time.LoadLocation(name)
}

// At returns a copy anchored at t.
func (c *Converter) At(t time.Time) *Converter {
	out := *c
	if t.IsZero() {
		t = time.Now()
	}
	out.anchor = t
	out.shift = 0
	if !out.fallback {
		_, refOffset := t.In(out.reference).Zone()
		_, visOffset := t.In(out.visitor).Zone()
		out.shift = (visOffset - refOffset) / 60
	}
	return &out
}

// ToLocal converts a reference-zone time of day into the visitor's zone.
func (c *Converter) ToLocal(t TimeOfDay) TimeOfDay {
	return NewTimeOfDay(int(t) + c.shift)
}

// ToReference converts a visitor-zone time of day into the reference zone.
func (c *Converter) ToReference(t TimeOfDay) TimeOfDay {
	return NewTimeOfDay(int(t) - c.shift)
}

// Shift is the visitor offset minus the reference offset, in minutes.
func (c *Converter) Shift() int { return c.shift }

// Fallback reports that the visitor zone could not be resolved and displayed
// times are in the reference zone.
func (c *Converter) Fallback() bool { return c.fallback }

// Location is the zone displayed times are expressed in.
func (c *Converter) Location() *time.Location { return c.visitor }

// Reference is the policy's zone.
func (c *Converter) Reference() *time.Location { return c.reference }

// ZoneLabel names the zone displayed times are expressed in.
func (c *Converter) ZoneLabel() string {
	if c.fallback {
		if c.referenceName == "" {
			return "UTC"
		}
		return c.referenceName
	}
	return c.visitorName
}
