package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/logger"
)

// SourceBinding pairs a search source with its rate limit.
type SourceBinding struct {
	Source driven.SearchSource
	Limit  RateLimitConfig
}

// SourceResolver answers a query from some source.
type SourceResolver interface {
	Resolve(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}

// Ensure FallbackResolver implements SourceResolver.
var _ SourceResolver = (*FallbackResolver)(nil)

// FallbackResolver tries sources in fixed priority order and returns the
// first one that is permitted by its rate limit and yields results.
type FallbackResolver struct {
	sources []SourceBinding
	limiter *RateLimiter
}

// NewFallbackResolver creates a resolver over sources in priority order.
// A nil limiter uses the process-wide shared limiter.
func NewFallbackResolver(limiter *RateLimiter, sources ...SourceBinding) *FallbackResolver {
	if limiter == nil {
		limiter = SharedRateLimiter()
	}
	return &FallbackResolver{sources: sources, limiter: limiter}
}

// Sources returns the names of the bound sources in priority order.
func (f *FallbackResolver) Sources() []string {
	names := make([]string, len(f.sources))
	for i, b := range f.sources {
		names[i] = b.Source.Name()
	}
	return names
}

// Resolve walks the sources in order.
//
// A source denied by its bucket is skipped without error. A failing source is
// recorded and the next one is tried. The first source returning at least one
// result wins and no later source is called.
//
// When no source yields results the response is nil. The error is nil if every
// source was skipped or empty, and wraps domain.ErrSourcesExhausted with every
// recorded failure otherwise. Callers treat both as zero evidence.
func (f *FallbackResolver) Resolve(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	opts = opts.Clamp(domain.MaxResultsLimit)

	var errs []error
	for _, b := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := b.Source.Name()
		if !f.limiter.Allow(name, b.Limit) {
			logger.Debug("Source %s rate limited, skipping", name)
			continue
		}

		resp, err := f.call(ctx, b.Source, query, opts)
		if err != nil {
			logger.Debug("Source %s failed: %v", name, err)
			errs = append(errs, err)
			continue
		}
		if resp == nil || len(resp.Results) == 0 {
			logger.Debug("Source %s returned no results", name)
			continue
		}

		if resp.Source == "" {
			resp.Source = name
		}
		logger.Debug("Source %s answered %q with %d results", name, query, len(resp.Results))
		return resp, nil
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourcesExhausted, errors.Join(errs...))
	}
	return nil, nil
}

// call bounds a single source invocation by opts.Timeout.
func (f *FallbackResolver) call(
	ctx context.Context, src driven.SearchSource, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := src.Search(callCtx, query, opts)
	if err != nil {
		var srcErr *domain.SourceError
		if !errors.As(err, &srcErr) {
			err = domain.NewSourceError(src.Name(), err)
		}
		return nil, err
	}
	return resp, nil
}
