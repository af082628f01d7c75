package dayschedule

import (
	"fmt"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
)

// Phase is a named interval of the day
type Phase string

const (
	PhaseNight          Phase = "Night"
	PhasePreDawn        Phase = "Pre-Dawn"
	PhaseEarlyMorning   Phase = "Early Morning"
	PhaseMidMorning     Phase = "Mid Morning"
	PhaseLateMorning    Phase = "Late Morning"
	PhaseEarlyAfternoon Phase = "Early Afternoon"
	PhaseMidAfternoon   Phase = "Mid Afternoon"
	PhaseLateAfternoon  Phase = "Late Afternoon"
	PhaseEvening        Phase = "Evening"
	PhaseLateEvening    Phase = "Late Evening"
)

// PhaseModel selects how a day is divided into phases
type PhaseModel string

const (
	// ModelPlateau ramps for at most two hours around each anchor and holds
	// the middle level in between. Evening holds the minimum for two hours
	// after dusk
	ModelPlateau PhaseModel = "plateau"

	// ModelContinuous ramps from dawn to noon and from noon to dusk with no
	// plateaus. Night sits at the minimum level
	ModelContinuous PhaseModel = "continuous"

	// ModelExtended adds pre-dawn, evening and late-evening transitions down
	// to the overnight floor
	ModelExtended PhaseModel = "extended"
)

// plateau ramps never run longer than this
const plateauRamp = 2 * time.Hour

// ParsePhaseModel parses a phase model name. An empty string selects ModelExtended
func ParsePhaseModel(s string) (PhaseModel, error) {
	switch PhaseModel(s) {
	case "", ModelExtended:
		return ModelExtended, nil
	case ModelContinuous:
		return ModelContinuous, nil
	case ModelPlateau:
		return ModelPlateau, nil
	default:
		return "", fmt.Errorf("unknown phase model %q (must be %q, %q or %q)", s, ModelPlateau, ModelContinuous, ModelExtended)
	}
}

// Window is one phase of a plan. Progress through a ramp window is measured
// from Origin across Span, which usually equal Start and End-Start
type Window struct {
	Phase     Phase             `json:"phase"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Origin    time.Time         `json:"origin"`
	Span      time.Duration     `json:"span"`
	Curve     curve.SegmentName `json:"curve,omitempty"`
	Direction curve.Direction   `json:"direction"`
	// Level is returned as-is by plateau windows (Curve == "")
	Level int `json:"level,omitempty"`
}

// Plateau reports whether the window holds a constant level
func (w Window) Plateau() bool {
	return w.Curve == ""
}

// Plan is the ordered list of windows for one day. Instants outside every
// window are Night at NightLevel
type Plan struct {
	Model      PhaseModel `json:"model"`
	Windows    []Window   `json:"windows"`
	NightLevel int        `json:"night_level"`
}

// Plan lays the phases of the model over the boundaries
func (pm PhaseModel) Plan(b Boundaries, m *curve.Model) Plan {
	switch pm {
	case ModelPlateau:
		return planPlateau(b, m)
	case ModelContinuous:
		return Plan{
			Model:      pm,
			Windows:    daylightWindows(b),
			NightLevel: m.Levels().Minimum,
		}
	default:
		return planExtended(b, m)
	}
}

func ramp(phase Phase, start, end time.Time, seg curve.SegmentName, dir curve.Direction) Window {
	return Window{
		Phase:     phase,
		Start:     start,
		End:       end,
		Origin:    start,
		Span:      end.Sub(start),
		Curve:     seg,
		Direction: dir,
	}
}

func hold(phase Phase, start, end time.Time, level int) Window {
	return Window{
		Phase:  phase,
		Start:  start,
		End:    end,
		Origin: start,
		Span:   end.Sub(start),
		Level:  level,
	}
}

// daylightWindows are the four ramps between dawn and the end of the day
func daylightWindows(b Boundaries) []Window {
	return []Window{
		ramp(PhaseEarlyMorning, b.DayStart, b.MidMorning, curve.SegmentBottom, curve.Forward),
		ramp(PhaseLateMorning, b.MidMorning, b.DayMiddle, curve.SegmentTop, curve.Backward),
		ramp(PhaseEarlyAfternoon, b.DayMiddle, b.MidAfternoon, curve.SegmentTop, curve.Forward),
		ramp(PhaseLateAfternoon, b.MidAfternoon, b.DayEnd, curve.SegmentBottom, curve.Backward),
	}
}

func planExtended(b Boundaries, m *curve.Model) Plan {
	windows := make([]Window, 0, 7)
	windows = append(windows, ramp(PhasePreDawn, b.PreDawn, b.DayStart, curve.SegmentPredawn, curve.Backward))
	windows = append(windows, daylightWindows(b)...)

	// Both evening phases follow one curve measured from the end of the day
	evening := ramp(PhaseEvening, b.DayEnd, b.LateEvening, curve.SegmentEvening, curve.Forward)
	evening.Span = b.EveningLength
	lateEvening := ramp(PhaseLateEvening, b.LateEvening, b.Night, curve.SegmentEvening, curve.Forward)
	lateEvening.Origin = b.DayEnd
	lateEvening.Span = b.EveningLength
	windows = append(windows, evening, lateEvening)

	return Plan{
		Model:      ModelExtended,
		Windows:    windows,
		NightLevel: m.NightLevel(),
	}
}

func planPlateau(b Boundaries, m *curve.Model) Plan {
	// This model ends the day at dusk as supplied and never applies the
	// late dusk correction
	dusk := b.Dusk
	morning := min(plateauRamp, b.MorningLength)
	afternoon := min(plateauRamp, dusk.Sub(b.DayMiddle)/2)
	levels := m.Levels()

	return Plan{
		Model: ModelPlateau,
		Windows: []Window{
			ramp(PhaseEarlyMorning, b.DayStart, b.DayStart.Add(morning), curve.SegmentBottom, curve.Forward),
			hold(PhaseMidMorning, b.DayStart.Add(morning), b.DayMiddle.Add(-morning), levels.Middle),
			ramp(PhaseLateMorning, b.DayMiddle.Add(-morning), b.DayMiddle, curve.SegmentTop, curve.Backward),
			ramp(PhaseEarlyAfternoon, b.DayMiddle, b.DayMiddle.Add(afternoon), curve.SegmentTop, curve.Forward),
			hold(PhaseMidAfternoon, b.DayMiddle.Add(afternoon), dusk.Add(-afternoon), levels.Middle),
			ramp(PhaseLateAfternoon, dusk.Add(-afternoon), dusk, curve.SegmentBottom, curve.Backward),
			hold(PhaseEvening, dusk, dusk.Add(plateauRamp), levels.Minimum),
		},
		NightLevel: levels.Minimum,
	}
}
