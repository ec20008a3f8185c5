package domain

import "time"

// Search limits shared by every source adapter.
const (
	// DefaultMaxResults is used when a caller does not set MaxResults.
	DefaultMaxResults = 5

	// MaxResultsLimit is the largest MaxResults any request may ask for.
	MaxResultsLimit = 20

	// DefaultSourceTimeout bounds a single call to an external source.
	DefaultSourceTimeout = 8 * time.Second
)

// SearchOptions configures a call to a single search source.
type SearchOptions struct {
	// MaxResults is the maximum number of results to return (1..20).
	MaxResults int

	// Timeout is the hard deadline for the call.
	Timeout time.Duration
}

// Clamp returns a copy with MaxResults in [1, limit] and a non-zero Timeout.
// A zero MaxResults becomes DefaultMaxResults before clamping.
func (o SearchOptions) Clamp(limit int) SearchOptions {
	if o.MaxResults == 0 {
		o.MaxResults = DefaultMaxResults
	}
	if limit <= 0 {
		limit = MaxResultsLimit
	}
	o.MaxResults = max(1, min(limit, o.MaxResults))
	if o.Timeout <= 0 {
		o.Timeout = DefaultSourceTimeout
	}
	return o
}

// SearchResult represents a single hit from an external source.
// Values are immutable once created.
type SearchResult struct {
	// Title is the display title of the hit.
	Title string `json:"title"`

	// URL is the location of the hit as returned by the provider.
	URL string `json:"url"`

	// Content is the snippet or summary. Empty when the provider sent none.
	Content string `json:"content,omitempty"`

	// Score is the provider relevance score, when it reports one.
	Score float64 `json:"score,omitempty"`
}

// SearchResponse is the normalised output of one source call.
type SearchResponse struct {
	// Source is the name of the source that produced the results.
	Source string `json:"source"`

	// Results are the hits in provider order.
	Results []SearchResult `json:"results"`
}

// AggregatedSource is evidence deduplicated by normalised URL
// across all sources and sub-questions of one retrieval session.
type AggregatedSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`

	// Origin names where the evidence came from: a source name or "local".
	Origin string `json:"origin,omitempty"`
}

// OriginLocal marks evidence that came from the local vector index.
const OriginLocal = "local"
