package dayschedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	predawnLength     = time.Hour
	lateEveningOffset = time.Hour
	lateEveningStep   = 15 * time.Minute
	lateEveningHour   = 22
	nightOffset       = time.Hour
	maxDuskGap        = 4 * time.Hour
	duskCorrection    = 30 * time.Minute
)

// ErrInvalidAnchors is returned when the anchors are not strictly ordered
var ErrInvalidAnchors = errors.New("day anchors out of order")

// Boundaries is the full set of instants derived from one day's anchors
type Boundaries struct {
	PreDawn      time.Time `json:"pre_dawn"`
	DayStart     time.Time `json:"day_start"`
	MidMorning   time.Time `json:"mid_morning"`
	DayMiddle    time.Time `json:"day_middle"`
	MidAfternoon time.Time `json:"mid_afternoon"`
	// Dusk is the day end as supplied; DayEnd may be pushed later
	Dusk        time.Time `json:"dusk"`
	DayEnd      time.Time `json:"day_end"`
	LateEvening time.Time `json:"late_evening"`
	Night       time.Time `json:"night"`

	MorningLength   time.Duration `json:"morning_length"`
	AfternoonLength time.Duration `json:"afternoon_length"`
	EveningLength   time.Duration `json:"evening_length"`

	DuskCorrected bool `json:"dusk_corrected"`
}

// Derive computes every boundary of the day from its three anchors
//
// Late evening starts an hour after dusk but never before 22:00 on the dusk's
// date, moving forward in 15 minute steps. When that leaves more than four
// hours between dusk and late evening, the end of the day is pushed 30
// minutes later so the evening phase does not stretch as far
func Derive(a Anchors) (Boundaries, error) {
	if !a.DayStart.Before(a.DayMiddle) || !a.DayMiddle.Before(a.DayEnd) {
		return Boundaries{}, fmt.Errorf("%w: start=%s middle=%s end=%s", ErrInvalidAnchors,
			a.DayStart.Format(time.RFC3339), a.DayMiddle.Format(time.RFC3339), a.DayEnd.Format(time.RFC3339))
	}

	b := Boundaries{
		PreDawn:   a.DayStart.Add(-predawnLength),
		DayStart:  a.DayStart,
		DayMiddle: a.DayMiddle,
		Dusk:      a.DayEnd,
	}

	b.MorningLength = a.DayMiddle.Sub(a.DayStart) / 2
	b.MidMorning = a.DayStart.Add(b.MorningLength)

	b.LateEvening = a.DayEnd.Add(lateEveningOffset)
	y, m, d := a.DayEnd.Date()
	tenPM := time.Date(y, m, d, lateEveningHour, 0, 0, 0, a.DayEnd.Location())
	for b.LateEvening.Before(tenPM) {
		b.LateEvening = b.LateEvening.Add(lateEveningStep)
	}
	b.Night = b.LateEvening.Add(nightOffset)

	b.DayEnd = a.DayEnd
	if b.LateEvening.Sub(a.DayEnd) > maxDuskGap {
		b.DayEnd = a.DayEnd.Add(duskCorrection)
		b.DuskCorrected = true
	}

	b.EveningLength = b.Night.Sub(b.DayEnd)
	b.AfternoonLength = b.DayEnd.Sub(b.DayMiddle) / 2
	b.MidAfternoon = b.DayMiddle.Add(b.AfternoonLength)

	return b, nil
}

// Ordered returns the boundaries in chronological order
func (b Boundaries) Ordered() []time.Time {
	return []time.Time{
		b.PreDawn, b.DayStart, b.MidMorning, b.DayMiddle, b.MidAfternoon,
		b.Dusk, b.DayEnd, b.LateEvening, b.Night,
	}
}
