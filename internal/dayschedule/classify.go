package dayschedule

import (
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
)

// Reading is the outcome of classifying one instant
type Reading struct {
	Phase     Phase     `json:"time_of_day"`
	Kelvin    int       `json:"state"`
	Progress  float64   `json:"progress"`
	Available bool      `json:"available"`
	At        time.Time `json:"at"`
}

// Classify finds the phase containing now and computes its kelvin value
// It has no side effects: the same inputs always give the same reading
func Classify(now time.Time, plan Plan, m *curve.Model) Reading {
	night := Reading{
		Phase:     PhaseNight,
		Kelvin:    plan.NightLevel,
		Available: true,
		At:        now,
	}

	if len(plan.Windows) == 0 || now.Before(plan.Windows[0].Start) {
		return night
	}

	for _, w := range plan.Windows {
		if !w.End.After(now) {
			continue
		}

		r := Reading{
			Phase:     w.Phase,
			Available: true,
			At:        now,
		}

		if w.Plateau() {
			r.Kelvin = w.Level
			return r
		}

		seg, ok := m.Segment(w.Curve)
		if !ok {
			r.Kelvin = plan.NightLevel
			return r
		}

		r.Progress = curve.ClampProgress(progress(now, w.Origin, w.Span))
		r.Kelvin = seg.Evaluate(r.Progress, w.Direction)
		return r
	}

	return night
}

func progress(now, origin time.Time, span time.Duration) float64 {
	if span <= 0 {
		return 1
	}
	return float64(now.Sub(origin)) / float64(span)
}
