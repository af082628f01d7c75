// Package curve fits and evaluates the exponential segments used to move a
// color temperature between two kelvin levels
//
// Every segment has the form
//
//	f(x) = a*b^x + c
//
// where b is the segment's exponent and x runs across [-XLimit, +XLimit]
// A progress fraction in [0,1] is remapped onto that domain before
// evaluation, so a base close to 1 gives a near linear transition and a
// larger base flattens the curve towards one of its ends
package curve

import (
	"errors"
	"fmt"
	"math"
)

// XLimit is the normalization half-width of every segment
const XLimit = 2.0

// truncation slack for float noise at the segment endpoints
const epsilon = 1e-6

var (
	// ErrInvalidExponent is returned when a segment base is not strictly greater than 1
	ErrInvalidExponent = errors.New("exponent must be greater than 1")

	// ErrInvalidConfig is returned when levels or exponents cannot form a model
	ErrInvalidConfig = errors.New("invalid curve configuration")
)

// Direction selects which way a segment is traversed as progress goes 0 -> 1
type Direction int

const (
	// Forward runs x from -XLimit to +XLimit, i.e. From -> To
	Forward Direction = iota
	// Backward runs x from +XLimit to -XLimit, i.e. To -> From
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "forward":
		*d = Forward
	case "backward":
		*d = Backward
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// Segment holds the fitted coefficients of one transition
// f(-XLimit) == From and f(+XLimit) == To
type Segment struct {
	Name SegmentName
	A    float64
	C    float64
	Base float64
	From int
	To   int
}

// Fit solves a*b^(+XLimit)+c = to and a*b^(-XLimit)+c = from for a and c
func Fit(from, to int, base float64) (Segment, error) {
	if math.IsNaN(base) || math.IsInf(base, 0) || base <= 1 {
		return Segment{}, fmt.Errorf("%w: got %v", ErrInvalidExponent, base)
	}

	pos := math.Pow(base, XLimit)
	neg := math.Pow(base, -XLimit)
	span := pos - neg

	return Segment{
		A:    float64(to-from) / span,
		C:    (pos*float64(from) - neg*float64(to)) / span,
		Base: base,
		From: from,
		To:   to,
	}, nil
}

// At returns the raw curve value at x
func (s Segment) At(x float64) float64 {
	return s.A*math.Pow(s.Base, x) + s.C
}

// Evaluate maps progress onto the segment domain and returns whole kelvins
// Progress outside [0,1] is clamped
func (s Segment) Evaluate(progress float64, dir Direction) int {
	p := ClampProgress(progress)

	var x float64
	if dir == Backward {
		x = XLimit - p*2*XLimit
	} else {
		x = p*2*XLimit - XLimit
	}

	return int(math.Floor(s.At(x) + epsilon))
}

// ClampProgress forces a progress fraction into [0,1]. NaN becomes 0
func ClampProgress(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
