package anchors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
)

// Named pairs a source with the name it is logged under
type Named struct {
	Name   string
	Source dayschedule.Source
}

// FallbackSource tries each source in order and returns the first success
type FallbackSource struct {
	sources []Named
	logger  *slog.Logger
}

// NewFallbackSource chains sources in priority order
func NewFallbackSource(logger *slog.Logger, sources ...Named) *FallbackSource {
	return &FallbackSource{
		sources: sources,
		logger:  logger,
	}
}

// NextAnchors returns anchors from the first source that has them
func (f *FallbackSource) NextAnchors(ctx context.Context) (dayschedule.Anchors, error) {
	if len(f.sources) == 0 {
		return dayschedule.Anchors{}, fmt.Errorf("%w: no sources configured", dayschedule.ErrAnchorUnavailable)
	}

	var errs []error
	for _, s := range f.sources {
		if err := ctx.Err(); err != nil {
			return dayschedule.Anchors{}, err
		}

		a, err := s.Source.NextAnchors(ctx)
		if err == nil {
			f.logger.Debug("Anchors resolved", "source", s.Name)
			return a, nil
		}

		f.logger.Warn("Anchor source failed, trying next",
			"source", s.Name,
			"error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	return dayschedule.Anchors{}, fmt.Errorf("%w: all sources failed: %w",
		dayschedule.ErrAnchorUnavailable, errors.Join(errs...))
}
