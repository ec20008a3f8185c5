// Package tavily provides a search source backed by the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.SearchSource = (*Source)(nil)

const (
	// DefaultBaseURL is the Tavily API root.
	DefaultBaseURL = "https://api.tavily.com"

	// MaxResults is the largest page Tavily returns.
	MaxResults = 20
)

// Config holds configuration for the Tavily source.
type Config struct {
	// APIKey is the Tavily API key (required).
	APIKey string

	// BaseURL overrides the API root.
	BaseURL string

	// Client overrides the HTTP client.
	Client *http.Client
}

// Source searches the web through Tavily.
type Source struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// New creates a Tavily source.
func New(cfg Config) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Source{
		client:  cfg.Client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return domain.SourceTavily
}

// Search runs an advanced-depth Tavily search.
func (s *Source) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	if s.apiKey == "" {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("%w: TAVILY_API_KEY", domain.ErrMissingCredentials))
	}
	opts = opts.Clamp(MaxResults)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	body, err := json.Marshal(searchRequest{
		APIKey:        s.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    opts.MaxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

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
			Err:        fmt.Errorf("tavily error: %s", strings.TrimSpace(string(text))),
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	return &domain.SearchResponse{Source: s.Name(), Results: toResults(parsed, opts.MaxResults)}, nil
}

// toResults maps a Tavily response to at most limit results.
func toResults(parsed searchResponse, limit int) []domain.SearchResult {
	var out []domain.SearchResult
	for _, r := range parsed.Results {
		if len(out) == limit {
			break
		}
		out = append(out, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return out
}
