// Package googlecse provides a search source backed by Google Programmable
// Search (Custom Search JSON API).
package googlecse

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.SearchSource = (*Source)(nil)

// MaxResults is the largest page the Custom Search API returns.
const MaxResults = 10

// Config holds configuration for the Google CSE source.
type Config struct {
	// APIKey is the Google API key (required).
	APIKey string

	// EngineID is the search engine ID, the cx parameter (required).
	EngineID string

	// Endpoint overrides the API root.
	Endpoint string
}

// Source searches the web through a Google Programmable Search engine.
type Source struct {
	apiKey   string
	engineID string
	endpoint string
}

// New creates a Google CSE source.
func New(cfg Config) *Source {
	return &Source{apiKey: cfg.APIKey, engineID: cfg.EngineID, endpoint: cfg.Endpoint}
}

// Name returns the source name.
func (s *Source) Name() string {
	return domain.SourceGoogleCSE
}

func (s *Source) service(ctx context.Context) (*customsearch.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(s.apiKey)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return customsearch.NewService(ctx, opts...)
}

// Search runs one Custom Search query.
func (s *Source) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	if s.apiKey == "" || s.engineID == "" {
		return nil, domain.NewSourceError(s.Name(),
			fmt.Errorf("%w: GOOGLE_API_KEY and GOOGLE_CX_KEY", domain.ErrMissingCredentials))
	}
	opts = opts.Clamp(MaxResults)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	svc, err := s.service(ctx)
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("create client: %w", err))
	}

	res, err := svc.Cse.List().
		Cx(s.engineID).
		Q(query).
		Num(int64(opts.MaxResults)).
		Context(ctx).
		Do()
	if err != nil {
		srcErr := domain.NewSourceError(s.Name(), err)
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			srcErr.StatusCode = apiErr.Code
		}
		return nil, srcErr
	}

	return &domain.SearchResponse{Source: s.Name(), Results: toResults(res, opts.MaxResults)}, nil
}

// toResults maps a Custom Search response to at most limit results.
func toResults(res *customsearch.Search, limit int) []domain.SearchResult {
	if res == nil {
		return nil
	}
	var out []domain.SearchResult
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, domain.SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Content: item.Snippet,
		})
	}
	return out
}
