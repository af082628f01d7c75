package dayschedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
)

var (
	// ErrAnchorUnavailable is returned by a Source that has no anchors to give
	ErrAnchorUnavailable = errors.New("day anchors unavailable")

	// ErrStaleAnchors marks a snapshot that is older than StaleAfter
	ErrStaleAnchors = errors.New("day anchors are stale")

	// ErrNoAnchors marks an evaluator that has never been refreshed
	ErrNoAnchors = errors.New("no day anchors received yet")
)

// Source supplies the next dawn, solar noon and dusk
type Source interface {
	NextAnchors(ctx context.Context) (Anchors, error)
}

// RetryError tells the caller to try the refresh again after RetryAfter
type RetryError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.RetryAfter, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// State is what the evaluator exposes for display
type State struct {
	Reading  Reading   `json:"reading"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Evaluator holds the current snapshot and the last reading. Refreshes and
// evaluations may run on different goroutines; both values are swapped
// atomically and never modified in place
type Evaluator struct {
	model  *curve.Model
	phases PhaseModel
	policy CoercionPolicy
	logger *slog.Logger

	retry backoff.BackOff

	snapshot atomic.Pointer[Snapshot]
	last     atomic.Pointer[Reading]
}

// NewEvaluator creates an evaluator with no anchors. Until the first refresh
// it reports unavailable and holds the maximum level
func NewEvaluator(model *curve.Model, phases PhaseModel, policy CoercionPolicy, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		model:  model,
		phases: phases,
		policy: policy,
		logger: logger,
		retry:  backoff.NewConstantBackOff(RetryAfter),
	}
	e.last.Store(&Reading{Kelvin: model.Levels().Maximum})
	return e
}

// Model returns the curve model in use
func (e *Evaluator) Model() *curve.Model {
	return e.model
}

// Refresh asks src for anchors and publishes a new snapshot. If the source
// fails, the previous snapshot is kept and a *RetryError is returned
func (e *Evaluator) Refresh(ctx context.Context, now time.Time, src Source) (*Snapshot, error) {
	e.logger.Debug("Updating day anchors from source")

	raw, err := src.NextAnchors(ctx)
	if err != nil {
		wait := e.retry.NextBackOff()
		e.logger.Warn("Can't access day anchors, retrying later",
			"retry_after", wait,
			"error", err)
		if !errors.Is(err, ErrAnchorUnavailable) {
			err = fmt.Errorf("%w: %w", ErrAnchorUnavailable, err)
		}
		return nil, &RetryError{RetryAfter: wait, Err: err}
	}

	snap, err := e.Apply(now, raw)
	if err != nil {
		wait := e.retry.NextBackOff()
		e.logger.Warn("Received unusable day anchors, retrying later",
			"retry_after", wait,
			"error", err)
		return nil, &RetryError{RetryAfter: wait, Err: err}
	}

	return snap, nil
}

// Apply builds a snapshot from raw anchors and publishes it
func (e *Evaluator) Apply(now time.Time, raw Anchors) (*Snapshot, error) {
	snap, err := BuildSnapshot(now, raw, e.model, e.phases, e.policy)
	if err != nil {
		return nil, err
	}

	e.snapshot.Store(snap)
	e.retry.Reset()

	e.logger.Info("Day anchors updated",
		"snapshot_id", snap.ID,
		"day_start", snap.Boundaries.DayStart.Format(time.RFC3339),
		"day_middle", snap.Boundaries.DayMiddle.Format(time.RFC3339),
		"day_end", snap.Boundaries.DayEnd.Format(time.RFC3339),
		"dusk_corrected", snap.Boundaries.DuskCorrected,
		"next_refresh", snap.NextRefresh.Format(time.RFC3339))

	return snap, nil
}

// Evaluate classifies now against the current snapshot and records the
// result. With no snapshot, or a stale one, the reading is unavailable and
// carries the last computed value
func (e *Evaluator) Evaluate(now time.Time) Reading {
	reading, err := e.evaluate(now)
	if err != nil {
		if errors.Is(err, ErrNoAnchors) {
			e.logger.Info("Circadian sensor is still waiting for day anchors")
		} else {
			e.logger.Warn("Day anchor data is out of date", "error", err)
		}
	} else {
		e.logger.Debug("Day is currently",
			"time_of_day", reading.Phase,
			"kelvin", reading.Kelvin,
			"progress", reading.Progress)
	}
	return reading
}

func (e *Evaluator) evaluate(now time.Time) (Reading, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return e.unavailable(now), ErrNoAnchors
	}

	if snap.Stale(now) {
		return e.unavailable(now), fmt.Errorf("%w: last update %s", ErrStaleAnchors, snap.UpdatedAt.Format(time.RFC3339))
	}

	reading := Classify(now, snap.Plan, snap.Curve)
	e.last.Store(&reading)
	return reading, nil
}

func (e *Evaluator) unavailable(now time.Time) Reading {
	prev := *e.last.Load()
	prev.Available = false
	prev.At = now
	e.last.Store(&prev)
	return prev
}

// Snapshot returns the current snapshot, or nil before the first refresh
func (e *Evaluator) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// State returns the last reading together with the snapshot it came from
func (e *Evaluator) State() State {
	return State{
		Reading:  *e.last.Load(),
		Snapshot: e.snapshot.Load(),
	}
}
