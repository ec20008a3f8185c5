package driven

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// SearchSource is one external web search provider.
//
// Implementations normalise the provider response into domain.SearchResult,
// cap MaxResults to the provider limit and cancel the call once
// opts.Timeout elapses. Failures are returned as *domain.SourceError.
// A source without credentials fails before any network I/O.
type SearchSource interface {
	// Name returns the stable source name used for rate limiting and logs.
	Name() string

	// Search runs one query against the provider.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}
