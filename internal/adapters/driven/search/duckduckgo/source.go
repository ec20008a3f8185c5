// Package duckduckgo provides a keyless search source backed by the
// DuckDuckGo Instant Answer API, with the HTML results page as a fallback
// when the instant answer carries no related topics.
package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.SearchSource = (*Source)(nil)

const (
	// DefaultAPIURL is the Instant Answer endpoint.
	DefaultAPIURL = "https://api.duckduckgo.com/"

	// DefaultHTMLURL is the JavaScript-free results page.
	DefaultHTMLURL = "https://html.duckduckgo.com/html/"

	maxBodyBytes = 1 << 20
	userAgent    = "Mozilla/5.0 (compatible; deepone/1.0)"
)

// Config holds configuration for the DuckDuckGo source.
type Config struct {
	// APIURL overrides the Instant Answer endpoint.
	APIURL string

	// HTMLURL overrides the HTML results endpoint. Set DisableHTML to skip it.
	HTMLURL string

	// DisableHTML turns off the HTML fallback.
	DisableHTML bool

	// Client overrides the HTTP client.
	Client *http.Client
}

// Source searches DuckDuckGo. It needs no credentials.
type Source struct {
	client      *http.Client
	apiURL      string
	htmlURL     string
	disableHTML bool
}

type topic struct {
	FirstURL string  `json:"FirstURL"`
	Text     string  `json:"Text"`
	Topics   []topic `json:"Topics"`
}

type instantAnswer struct {
	RelatedTopics []topic `json:"RelatedTopics"`
}

// New creates a DuckDuckGo source.
func New(cfg Config) *Source {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.HTMLURL == "" {
		cfg.HTMLURL = DefaultHTMLURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Source{
		client:      cfg.Client,
		apiURL:      cfg.APIURL,
		htmlURL:     cfg.HTMLURL,
		disableHTML: cfg.DisableHTML,
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return domain.SourceDuckDuckGo
}

// Search queries the Instant Answer API and flattens its related topics.
// When that yields nothing the HTML results page is scraped instead.
func (s *Source) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	opts = opts.Clamp(domain.MaxResultsLimit)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	results, err := s.instant(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && !s.disableHTML {
		htmlResults, err := s.scrape(ctx, query, opts.MaxResults)
		if err != nil {
			logger.Debug("duckduckgo: html fallback failed: %v", err)
		} else {
			results = htmlResults
		}
	}

	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return &domain.SearchResponse{Source: s.Name(), Results: results}, nil
}

func (s *Source) instant(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_redirect", "1")
	params.Set("no_html", "1")

	body, err := s.get(ctx, s.apiURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var answer instantAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("decode response: %w", err))
	}
	return flattenTopics(answer.RelatedTopics), nil
}

// flattenTopics keeps topics with both a URL and text, one level of nesting deep.
func flattenTopics(topics []topic) []domain.SearchResult {
	var out []domain.SearchResult
	for _, t := range topics {
		if t.FirstURL != "" && t.Text != "" {
			out = append(out, domain.SearchResult{Title: t.Text, URL: t.FirstURL})
			continue
		}
		for _, sub := range t.Topics {
			if sub.FirstURL != "" && sub.Text != "" {
				out = append(out, domain.SearchResult{Title: sub.Text, URL: sub.FirstURL})
			}
		}
	}
	return out
}

func (s *Source) scrape(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	body, err := s.get(ctx, s.htmlURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	return parseResultsPage(string(body), maxResults)
}

func (s *Source) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.SourceError{
			Source:     s.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("duckduckgo error: %s", strings.TrimSpace(resp.Status)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewSourceError(s.Name(), fmt.Errorf("read response: %w", err))
	}
	return body, nil
}
