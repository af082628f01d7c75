package curve

import "fmt"

// SegmentName identifies one of the fitted transitions of a Model
type SegmentName string

const (
	// SegmentBottom spans Minimum -> Middle (dawn and dusk ramps)
	SegmentBottom SegmentName = "bottom"
	// SegmentTop spans Maximum -> Middle (the ramps flanking solar noon)
	SegmentTop SegmentName = "top"
	// SegmentPredawn spans Minimum -> Overnight
	SegmentPredawn SegmentName = "predawn"
	// SegmentEvening spans Minimum -> Overnight with a steep base
	SegmentEvening SegmentName = "evening"
)

// Default exponents for the night transitions
const (
	DefaultPredawnExponent = 2.0
	DefaultEveningExponent = 8.0
)

// Levels are the kelvin anchors of a model
type Levels struct {
	// Overnight is the floor used at night. Zero means "same as Minimum"
	Overnight int
	Minimum   int
	Middle    int
	Maximum   int
}

// Exponents are the bases of the fitted segments
type Exponents struct {
	Top     float64
	Bottom  float64
	Predawn float64
	Evening float64
}

// Model is an immutable set of fitted segments. Build one with New
type Model struct {
	levels    Levels
	exponents Exponents
	segments  map[SegmentName]Segment
}

// New validates levels and exponents and fits every segment
func New(levels Levels, exponents Exponents) (*Model, error) {
	if levels.Overnight == 0 {
		levels.Overnight = levels.Minimum
	}
	if exponents.Predawn == 0 {
		exponents.Predawn = DefaultPredawnExponent
	}
	if exponents.Evening == 0 {
		exponents.Evening = DefaultEveningExponent
	}

	if err := levels.validate(); err != nil {
		return nil, err
	}

	specs := []struct {
		name     SegmentName
		from, to int
		base     float64
	}{
		{SegmentBottom, levels.Minimum, levels.Middle, exponents.Bottom},
		{SegmentTop, levels.Maximum, levels.Middle, exponents.Top},
		{SegmentPredawn, levels.Minimum, levels.Overnight, exponents.Predawn},
		{SegmentEvening, levels.Minimum, levels.Overnight, exponents.Evening},
	}

	segments := make(map[SegmentName]Segment, len(specs))
	for _, spec := range specs {
		seg, err := Fit(spec.from, spec.to, spec.base)
		if err != nil {
			return nil, fmt.Errorf("%w: %s segment: %w", ErrInvalidConfig, spec.name, err)
		}
		seg.Name = spec.name
		segments[spec.name] = seg
	}

	return &Model{
		levels:    levels,
		exponents: exponents,
		segments:  segments,
	}, nil
}

func (l Levels) validate() error {
	if l.Overnight <= 0 {
		return fmt.Errorf("%w: overnight must be positive, got %d", ErrInvalidConfig, l.Overnight)
	}
	if l.Overnight > l.Minimum {
		return fmt.Errorf("%w: overnight %d must not exceed minimum %d", ErrInvalidConfig, l.Overnight, l.Minimum)
	}
	if l.Minimum >= l.Middle {
		return fmt.Errorf("%w: minimum %d must be below middle %d", ErrInvalidConfig, l.Minimum, l.Middle)
	}
	if l.Middle >= l.Maximum {
		return fmt.Errorf("%w: middle %d must be below maximum %d", ErrInvalidConfig, l.Middle, l.Maximum)
	}
	return nil
}

// Levels returns the normalized levels (Overnight filled in)
func (m *Model) Levels() Levels {
	return m.levels
}

// Exponents returns the normalized exponents (night defaults filled in)
func (m *Model) Exponents() Exponents {
	return m.exponents
}

// Segment returns the fitted segment with the given name
func (m *Model) Segment(name SegmentName) (Segment, bool) {
	seg, ok := m.segments[name]
	return seg, ok
}

// NightLevel is the overnight floor, or Minimum when no separate floor is set
func (m *Model) NightLevel() int {
	return m.levels.Overnight
}
