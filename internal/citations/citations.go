// Package citations normalises source URLs and renders reference lists.
package citations

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// Source is the input to DedupeAndEnrich.
type Source struct {
	Title  string
	URL    string
	Author string
	Year   string
	Site   string
}

// NormalizeURL parses raw and re-serialises it in canonical form.
// Scheme and host are lowercased, default ports dropped and an empty
// web path becomes "/". Input that is not an absolute URL is returned unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "" && u.Path == "") {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Path == "" && u.Opaque == "" {
		if u.Host == "" {
			return raw
		}
		u.Path = "/"
	}
	return u.String()
}

// HostFromURL returns the host (with port) of raw, or "" when it has none.
func HostFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// DedupeAndEnrich keeps the first entry per canonical URL, in input order.
// Entries without a URL are dropped. Titles are trimmed and fall back to the
// canonical URL; Site falls back to the URL host. The result is stable under
// repeated application.
func DedupeAndEnrich(sources []Source) []domain.CitationRecord {
	out := make([]domain.CitationRecord, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		norm := NormalizeURL(s.URL)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}

		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = norm
		}
		site := s.Site
		if site == "" {
			site = HostFromURL(norm)
		}
		out = append(out, domain.CitationRecord{
			Title:  title,
			URL:    norm,
			Author: s.Author,
			Year:   s.Year,
			Site:   site,
		})
	}
	return out
}

// FromAggregated converts aggregated evidence into citation sources.
func FromAggregated(sources []domain.AggregatedSource) []Source {
	out := make([]Source, len(sources))
	for i, s := range sources {
		out[i] = Source{Title: s.Title, URL: s.URL}
	}
	return out
}

// FormatCitation renders one record in the given style.
//
//	APA: Author. (Year). Title. URL
//	MLA: Author. "Title." Year, URL
//
// Year defaults to "n.d." and Author falls back to Site.
func FormatCitation(r domain.CitationRecord, style domain.CitationStyle) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = r.URL
	}
	year := r.Year
	if year == "" {
		year = "n.d."
	}
	author := r.Author
	if author == "" {
		author = r.Site
	}
	authorPart := ""
	if author != "" {
		authorPart = author + ". "
	}

	if style == domain.CitationMLA {
		return strings.TrimSpace(fmt.Sprintf("%s\"%s.\" %s, %s", authorPart, title, year, r.URL))
	}
	return strings.TrimSpace(fmt.Sprintf("%s(%s). %s. %s", authorPart, year, title, r.URL))
}

// FormatCitations renders records one per line, numbered from 1 to match
// the bracket markers used in report text.
func FormatCitations(style domain.CitationStyle, records []domain.CitationRecord) string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = fmt.Sprintf("[%d] %s", i+1, FormatCitation(r, style))
	}
	return strings.Join(lines, "\n")
}
