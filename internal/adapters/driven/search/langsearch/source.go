// Package langsearch provides a search source backed by the LangSearch web search API.
package langsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.SearchSource = (*Source)(nil)

const (
	// DefaultBaseURL is the LangSearch API root.
	DefaultBaseURL = "https://api.langsearch.com/v1"

	// MaxResults is the largest count LangSearch accepts.
	MaxResults = 10

	// MinTimeout is the floor applied to the per-call timeout.
	MinTimeout = 3 * time.Second
)

// Config holds configuration for the LangSearch source.
type Config struct {
	// APIKey is the LangSearch API key (required).
	APIKey string

	// BaseURL overrides the API root.
	BaseURL string

	// Client overrides the HTTP client.
	Client *http.Client
}

// Source searches the web through LangSearch.
type Source struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchRequest struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Summary   bool   `json:"summary"`
	Count     int    `json:"count"`
}

type webPage struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	DisplayURL   string `json:"displayUrl"`
	WebSearchURL string `json:"webSearchUrl"`
	Summary      string `json:"summary"`
	Snippet      string `json:"snippet"`
}

type searchResponse struct {
	Data *struct {
		WebPages struct {
			Value []webPage `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
	WebPages struct {
		Value []webPage `json:"value"`
	} `json:"webPages"`
}

// pages returns the result list whether or not the API wrapped it in data.
func (r searchResponse) pages() []webPage {
	if len(r.WebPages.Value) == 0 && r.Data != nil {
		return r.Data.WebPages.Value
	}
	return r.WebPages.Value
}

// New creates a LangSearch source.
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
	return domain.SourceLangSearch
}

// Search runs a LangSearch web search with summaries enabled.
func (s *Source) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	if s.apiKey == "" {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("%w: LANGSEARCH_API_KEY", domain.ErrMissingCredentials))
	}
	opts = opts.Clamp(MaxResults)

	ctx, cancel := context.WithTimeout(ctx, max(MinTimeout, opts.Timeout))
	defer cancel()

	body, err := json.Marshal(searchRequest{
		Query:     query,
		Freshness: "noLimit",
		Summary:   true,
		Count:     opts.MaxResults,
	})
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/web-search", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

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
			Err:        fmt.Errorf("langsearch error: %s", strings.TrimSpace(string(text))),
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	return &domain.SearchResponse{Source: s.Name(), Results: toResults(parsed, opts.MaxResults)}, nil
}

// toResults maps a LangSearch response to at most limit results.
// Pages without a URL are dropped.
func toResults(parsed searchResponse, limit int) []domain.SearchResult {
	var out []domain.SearchResult
	for _, v := range parsed.pages() {
		if len(out) == limit {
			break
		}
		url := firstNonEmpty(v.URL, v.WebSearchURL)
		if url == "" {
			continue
		}
		out = append(out, domain.SearchResult{
			Title:   firstNonEmpty(v.Name, v.DisplayURL, "Untitled"),
			URL:     url,
			Content: firstNonEmpty(v.Summary, v.Snippet),
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
