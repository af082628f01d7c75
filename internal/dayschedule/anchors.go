package dayschedule

import (
	"fmt"
	"time"
)

// Anchors are the three reference instants of a day as supplied by a source
type Anchors struct {
	DayStart  time.Time // dawn
	DayMiddle time.Time // solar noon
	DayEnd    time.Time // dusk
}

// In returns the anchors converted to loc
func (a Anchors) In(loc *time.Location) Anchors {
	return Anchors{
		DayStart:  a.DayStart.In(loc),
		DayMiddle: a.DayMiddle.In(loc),
		DayEnd:    a.DayEnd.In(loc),
	}
}

// CoercionPolicy decides how "next occurring" anchors are moved onto today
type CoercionPolicy string

const (
	// CoerceToToday keeps each anchor's time of day and replaces its date
	// with the date of the reference instant
	CoerceToToday CoercionPolicy = "today"

	// ShiftBackOneDay subtracts one day from any anchor whose local date
	// differs from the reference date, and leaves the rest untouched
	ShiftBackOneDay CoercionPolicy = "shift-back"
)

// ParseCoercionPolicy parses a policy name. An empty string selects CoerceToToday
func ParseCoercionPolicy(s string) (CoercionPolicy, error) {
	switch CoercionPolicy(s) {
	case "", CoerceToToday:
		return CoerceToToday, nil
	case ShiftBackOneDay:
		return ShiftBackOneDay, nil
	default:
		return "", fmt.Errorf("unknown coercion policy %q (must be %q or %q)", s, CoerceToToday, ShiftBackOneDay)
	}
}

// Coerce moves the anchors onto the calendar date of now, in now's location
func (p CoercionPolicy) Coerce(now time.Time, a Anchors) Anchors {
	move := p.coerceToToday
	if p == ShiftBackOneDay {
		move = p.shiftBack
	}

	return Anchors{
		DayStart:  move(now, a.DayStart),
		DayMiddle: move(now, a.DayMiddle),
		DayEnd:    move(now, a.DayEnd),
	}
}

func (CoercionPolicy) coerceToToday(now, t time.Time) time.Time {
	loc := now.Location()
	t = t.In(loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (CoercionPolicy) shiftBack(now, t time.Time) time.Time {
	t = t.In(now.Location())
	if sameDate(now, t) {
		return t
	}
	return t.AddDate(0, 0, -1)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
