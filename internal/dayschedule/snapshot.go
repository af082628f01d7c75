package dayschedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
)

const (
	// StaleAfter is how long a snapshot stays usable after its refresh
	StaleAfter = 24 * time.Hour

	// RetryAfter is the wait before asking an unavailable source again
	RetryAfter = 5 * time.Minute

	refreshAfterDusk     = 3 * time.Hour
	refreshNextDayOffset = 27 * time.Hour
	refreshAfterNight    = 15 * time.Minute
)

// ErrDayOver is returned when the anchors describe a day whose night has
// already started
var ErrDayOver = errors.New("day anchors describe a day that has ended")

// Snapshot is one day's derived schedule. It is never modified after
// BuildSnapshot returns; a refresh replaces it as a whole
type Snapshot struct {
	ID          uuid.UUID    `json:"id"`
	Raw         Anchors      `json:"raw_anchors"`
	Anchors     Anchors      `json:"anchors"`
	Boundaries  Boundaries   `json:"boundaries"`
	Plan        Plan         `json:"plan"`
	Curve       *curve.Model `json:"-"`
	UpdatedAt   time.Time    `json:"updated_at"`
	NextRefresh time.Time    `json:"next_refresh"`
}

// BuildSnapshot coerces the raw anchors onto now's date, derives the
// boundaries and lays out the phase plan
//
// If the coerced day has already reached night, the anchors keep the dates
// they were supplied with, so a refresh late in the evening moves on to the
// next day instead of rebuilding the one that is ending
func BuildSnapshot(now time.Time, raw Anchors, m *curve.Model, phases PhaseModel, policy CoercionPolicy) (*Snapshot, error) {
	anchors := policy.Coerce(now, raw)

	b, err := Derive(anchors)
	if err != nil {
		return nil, fmt.Errorf("failed to derive boundaries: %w", err)
	}

	if !now.Before(b.Night) {
		anchors = raw.In(now.Location())
		if b, err = Derive(anchors); err != nil {
			return nil, fmt.Errorf("failed to derive boundaries: %w", err)
		}
		if !now.Before(b.Night) {
			return nil, fmt.Errorf("%w: night started %s", ErrDayOver, b.Night.Format(time.RFC3339))
		}
	}

	return &Snapshot{
		ID:          uuid.New(),
		Raw:         raw,
		Anchors:     anchors,
		Boundaries:  b,
		Plan:        phases.Plan(b, m),
		Curve:       m,
		UpdatedAt:   now,
		NextRefresh: NextRefresh(now, b),
	}, nil
}

// NextRefresh proposes when anchors should be fetched again: three hours
// after dusk. From then on it is a quarter of an hour into the night so the
// next day is picked up, or a day after the first proposal once the night
// has begun
func NextRefresh(now time.Time, b Boundaries) time.Time {
	next := b.Dusk.Add(refreshAfterDusk)
	if now.Before(next) {
		return next
	}
	if rollover := b.Night.Add(refreshAfterNight); now.Before(rollover) {
		return rollover
	}
	return b.Dusk.Add(refreshNextDayOffset)
}

// Stale reports whether the snapshot is too old to classify now
func (s *Snapshot) Stale(now time.Time) bool {
	return now.Sub(s.UpdatedAt) >= StaleAfter
}

// Classify classifies now against the snapshot, or reports the reading as
// unavailable if the snapshot is stale
func (s *Snapshot) Classify(now time.Time) Reading {
	if s.Stale(now) {
		return Reading{At: now}
	}
	return Classify(now, s.Plan, s.Curve)
}
