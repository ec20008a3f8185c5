package domain

import "strings"

// CitationStyle selects how references are rendered.
type CitationStyle string

// Supported citation styles.
const (
	CitationAPA CitationStyle = "APA"
	CitationMLA CitationStyle = "MLA"
)

// IsValid returns true if the style is recognised.
func (s CitationStyle) IsValid() bool {
	return s == CitationAPA || s == CitationMLA
}

// String returns the string representation.
func (s CitationStyle) String() string {
	return string(s)
}

// ParseCitationStyle maps a case-insensitive name to a style.
// Unknown names fall back to APA.
func ParseCitationStyle(name string) CitationStyle {
	if strings.EqualFold(strings.TrimSpace(name), string(CitationMLA)) {
		return CitationMLA
	}
	return CitationAPA
}

// CitationRecord is a canonical reference entry.
type CitationRecord struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Author string `json:"author,omitempty"`
	Year   string `json:"year,omitempty"`
	Site   string `json:"site,omitempty"`
}
