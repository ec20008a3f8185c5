// Package bing provides a search source backed by the Bing Web Search API v7.
package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.SearchSource = (*Source)(nil)

const (
	// DefaultEndpoint is the Bing web search endpoint.
	DefaultEndpoint = "https://api.bing.microsoft.com/v7.0/search"

	// MaxResults is the largest count this source requests.
	MaxResults = 10

	subscriptionHeader = "Ocp-Apim-Subscription-Key"
)

// Config holds configuration for the Bing source.
type Config struct {
	// APIKey is the subscription key (required).
	APIKey string

	// Endpoint overrides the search endpoint.
	Endpoint string

	// Client overrides the HTTP client.
	Client *http.Client
}

// Source searches the web through Bing.
type Source struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

type searchResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// New creates a Bing source.
func New(cfg Config) *Source {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Source{client: cfg.Client, endpoint: cfg.Endpoint, apiKey: cfg.APIKey}
}

// Name returns the source name.
func (s *Source) Name() string {
	return domain.SourceBing
}

// Search runs a moderate safe-search Bing query.
func (s *Source) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	if s.apiKey == "" {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("%w: BING_API_KEY", domain.ErrMissingCredentials))
	}
	opts = opts.Clamp(MaxResults)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(opts.MaxResults))
	params.Set("textDecorations", "false")
	params.Set("safeSearch", "Moderate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	req.Header.Set(subscriptionHeader, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.SourceError{
			Source:     s.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("bing error: %s", strings.TrimSpace(string(text))),
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	return &domain.SearchResponse{Source: s.Name(), Results: toResults(parsed, opts.MaxResults)}, nil
}

// toResults maps a Bing response to at most limit results.
func toResults(parsed searchResponse, limit int) []domain.SearchResult {
	var out []domain.SearchResult
	for _, page := range parsed.WebPages.Value {
		if len(out) == limit {
			break
		}
		out = append(out, domain.SearchResult{
			Title:   page.Name,
			URL:     page.URL,
			Content: page.Snippet,
		})
	}
	return out
}
