package scheduling

import "time"

// CompareDay orders the calendar days of a and b in loc: -1, 0 or 1.
func CompareDay(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	x := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	y := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	switch {
	case x.Before(y):
		return -1
	case x.After(y):
		return 1
	default:
		return 0
	}
}

// FilterPast returns a copy of slots with Past set. Slots on a date after
// today are never past; otherwise a slot is past once its start is at or
// before now. Dates before today are annotated, not rejected.
func FilterPast(date time.Time, slots []LocalSlot, now time.Time, loc *time.Location) []LocalSlot {
	if loc == nil {
		loc = date.Location()
	}
	out := make([]LocalSlot, len(slots))
	future := CompareDay(date, now, loc) > 0
	for i, s := range slots {
		s.Past = !future && !s.StartsAt(date, loc).After(now)
		out[i] = s
	}
	return out
}

// AllPast reports that a non-empty day has no remaining openings.
func AllPast(slots []LocalSlot) bool {
	if len(slots) == 0 {
		return false
	}
	for _, s := range slots {
		if !s.Past {
			return false
		}
	}
	return true
}

// Open returns the slots that are not past.
func Open(slots []LocalSlot) []LocalSlot {
	var out []LocalSlot
	for _, s := range slots {
		if !s.Past {
			out = append(out, s)
		}
	}
	return out
}
