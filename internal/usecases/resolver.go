package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/tagver/tagver/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific
// implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// PiecesSource produces VersionPieces from a live checkout.
type PiecesSource interface {
	Pieces(ctx context.Context, dir, tagPrefix string) (*domain.VersionPieces, error)
}

// DescribeStrategy is the live-inspection strategy: it derives structured
// pieces from the repository and renders them in the configured style.
type DescribeStrategy struct {
	source   PiecesSource
	renderer *Renderer
	cfg      domain.Config
}

// NewDescribeStrategy creates the live-inspection strategy.
func NewDescribeStrategy(source PiecesSource, renderer *Renderer, cfg domain.Config) *DescribeStrategy {
	return &DescribeStrategy{source: source, renderer: renderer, cfg: cfg}
}

// Name identifies the strategy in logs.
func (s *DescribeStrategy) Name() string { return "git-describe" }

// Resolve derives pieces from the checkout and renders them. The pieces
// record is constructed fresh per call and consumed exactly once here.
func (s *DescribeStrategy) Resolve(ctx context.Context, dir string) (*domain.VersionDict, error) {
	pieces, err := s.source.Pieces(ctx, dir, s.cfg.TagPrefix)
	if err != nil {
		return nil, err
	}
	dict, err := s.renderer.Render(ctx, dir, *pieces, s.cfg.Style)
	if err != nil {
		return nil, err
	}
	return &dict, nil
}

// FallbackResolver tries each strategy in strict priority order and returns
// the first confident result. Strategies signalling "not applicable" drive
// the cascade; any other failure aborts resolution.
type FallbackResolver struct {
	strategies []domain.Strategy
	logger     Logger
}

// NewFallbackResolver creates a resolver over the given ordered strategies.
func NewFallbackResolver(log Logger, strategies ...domain.Strategy) *FallbackResolver {
	return &FallbackResolver{
		strategies: strategies,
		logger:     log,
	}
}

// Resolve runs the cascade for the given working directory. When every
// strategy fails, the fixed unresolved record is returned rather than an
// error; callers can treat its error field as fatal if they choose.
func (r *FallbackResolver) Resolve(ctx context.Context, dir string) (domain.VersionDict, error) {
	for _, strategy := range r.strategies {
		dict, err := strategy.Resolve(ctx, dir)
		if err != nil {
			if errors.Is(err, domain.ErrNotThisMethod) {
				r.logger.Debug(ctx, "strategy not applicable", map[string]interface{}{
					"strategy": strategy.Name(),
					"reason":   err.Error(),
				})
				continue
			}
			r.logger.Error(ctx, "strategy failed", err, map[string]interface{}{
				"strategy": strategy.Name(),
			})
			return domain.VersionDict{}, fmt.Errorf("strategy %s: %w", strategy.Name(), err)
		}

		r.logger.Info(ctx, "version resolved", map[string]interface{}{
			"strategy": strategy.Name(),
			"version":  dict.Version,
		})
		return *dict, nil
	}

	r.logger.Warn(ctx, "all strategies exhausted, version unknown", map[string]interface{}{
		"dir": dir,
	})
	return domain.Unresolved(), nil
}
