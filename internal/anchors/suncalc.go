package anchors

import (
	"context"
	"fmt"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
)

// SunCalcSource computes anchors locally from latitude and longitude
// Dawn is civil dawn, the middle is solar noon and the end is civil dusk
type SunCalcSource struct {
	lat float64
	lon float64
	loc *time.Location
	now func() time.Time
}

// NewSunCalcSource creates a source for the given position
func NewSunCalcSource(lat, lon float64, loc *time.Location) *SunCalcSource {
	if loc == nil {
		loc = time.Local
	}
	return &SunCalcSource{
		lat: lat,
		lon: lon,
		loc: loc,
		now: time.Now,
	}
}

// WithClock replaces the time source used to pick the next events
func (s *SunCalcSource) WithClock(now func() time.Time) *SunCalcSource {
	s.now = now
	return s
}

// NextAnchors returns the next occurrence of each event after now
func (s *SunCalcSource) NextAnchors(ctx context.Context) (dayschedule.Anchors, error) {
	now := s.now().In(s.loc)

	dawn, err := s.next(now, suncalc.Dawn)
	if err != nil {
		return dayschedule.Anchors{}, err
	}
	noon, err := s.next(now, suncalc.SolarNoon)
	if err != nil {
		return dayschedule.Anchors{}, err
	}
	dusk, err := s.next(now, suncalc.Dusk)
	if err != nil {
		return dayschedule.Anchors{}, err
	}

	return dayschedule.Anchors{
		DayStart:  dawn,
		DayMiddle: noon,
		DayEnd:    dusk,
	}, nil
}

// next looks at today and then tomorrow. Polar day or night leaves the
// event undefined, which surfaces as unavailable
func (s *SunCalcSource) next(now time.Time, name suncalc.DayTimeName) (time.Time, error) {
	for offset := 0; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		times := suncalc.GetTimes(day, s.lat, s.lon)

		t, ok := times[name]
		if !ok || !plausible(t.Value, day) {
			return time.Time{}, fmt.Errorf("%w: no %s at %.4f,%.4f on %s",
				dayschedule.ErrAnchorUnavailable, name, s.lat, s.lon, day.Format("2006-01-02"))
		}
		if t.Value.After(now) {
			return t.Value.In(s.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s not found within two days", dayschedule.ErrAnchorUnavailable, name)
}

// plausible rejects the out-of-range instants that undefined events
// produce
func plausible(t, day time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := t.Sub(day)
	return d > -36*time.Hour && d < 36*time.Hour
}
