package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/internal/business"
)

// DefaultSlotDuration is the fixed length of a bookable window.
const DefaultSlotDuration = 3 * time.Hour

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// LocalSlot is a bookable window in the visitor's zone.
type LocalSlot struct {
	Start TimeOfDay `json:"-"`
	End   TimeOfDay `json:"-"`
	// Offset is minutes from local midnight of the selected date; windows
	// after midnight have an offset of 1440 or more.
	Offset int    `json:"offset_minutes"`
	Label  string `json:"label"`
	// ReferenceZone is set when times could not be converted to the
	// visitor's zone and are shown in the reference zone instead.
	ReferenceZone bool      `json:"reference_zone"`
	Past          bool      `json:"past"`
	At            time.Time `json:"starts_at"`
}

// StartsAt is the absolute start instant for the slot on date in loc.
func (s LocalSlot) StartsAt(date time.Time, loc *time.Location) time.Time {
	if !s.At.IsZero() {
		return s.At.In(loc)
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, 0, s.Offset, 0, 0, loc)
}

// Generator carves a day's opening window into fixed-length slots.
type Generator struct {
	Duration time.Duration
}

// NewGenerator returns a generator, defaulting to three hour slots.
func NewGenerator(duration time.Duration) Generator {
	if duration <= 0 {
		duration = DefaultSlotDuration
	}
	return Generator{Duration: duration}
}

// Generate returns the chronological slots for the visitor's calendar date.
// A business day belongs to the visitor date on which its window opens, so
// the policy weekday is the reference weekday of that opening, which is not
// always the visitor's weekday. A window running past local midnight stays
// on the date it opened.
func (g Generator) Generate(date time.Time, policy *business.Policy, conv *Converter) ([]LocalSlot, error) {
	if policy == nil {
		return nil, nil
	}

	duration := g.Duration
	if duration <= 0 {
		duration = DefaultSlotDuration
	}

	ref, loc := conv.Reference(), conv.Location()
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var slots []LocalSlot
	// Zone offsets differ by at most 26h, so two reference days either side
	// cover every window that can open on this date.
	for delta := -2; delta <= 2; delta++ {
		refDay := time.Date(y, m, d+delta, 0, 0, 0, 0, ref)
		hours := policy.ForDay(refDay.Weekday())
		if hours == nil {
			continue
		}
		open, closing, err := hours.Minutes()
		if err != nil {
			return nil, err
		}
		if closing <= open {
			closing += minutesPerDay
		}

		ry, rm, rd := refDay.Date()
		start := time.Date(ry, rm, rd, 0, open, 0, 0, ref)
		end := time.Date(ry, rm, rd, 0, closing, 0, 0, ref)
		if CompareDay(start, day, loc) != 0 {
			continue
		}
		for cur := start; !cur.Add(duration).After(end); cur = cur.Add(duration) {
			slots = append(slots, newLocalSlot(day, cur, cur.Add(duration), loc, conv.Fallback()))
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].At.Before(slots[j].At) })
	return slots, nil
}

func newLocalSlot(day, from, to time.Time, loc *time.Location, fallback bool) LocalSlot {
	start, end := clockIn(from, loc), clockIn(to, loc)
	return LocalSlot{
		Start:         start,
		End:           end,
		Offset:        daysBetween(day, from.In(loc))*minutesPerDay + int(start),
		Label:         fmt.Sprintf("%s – %s", start.Clock(), end.Clock()),
		ReferenceZone: fallback,
		At:            from,
	}
}

func clockIn(t time.Time, loc *time.Location) TimeOfDay {
	local := t.In(loc)
	return TimeOfDay(local.Hour()*60 + local.Minute())
}

// daysBetween counts calendar days from a to b by their wall dates.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	x := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	y := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(y.Sub(x).Hours() / 24)
}

// FindSlot looks a slot up by its label or its "15:04" start time.
func FindSlot(slots []LocalSlot, value string) (LocalSlot, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return LocalSlot{}, false
	}
	for _, s := range slots {
		if s.Label == value || s.Start.String() == value {
			return s, true
		}
	}
	return LocalSlot{}, false
}

// Labels lists slot labels in order.
func Labels(slots []LocalSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Label)
	}
	return out
}

// ParseDate parses a "2006-01-02" calendar date as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling: invalid date %q", value)
	}
	return t, nil
}
