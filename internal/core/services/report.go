package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

const maxSlugLength = 80

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s, collapses runs of other characters to "-" and trims
// the result to 80 characters. An empty slug becomes "report".
func Slug(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "report"
	}
	return slug
}

// ReportID names the report for task produced at t: "<timestamp>-<slug>".
// The timestamp is UTC ISO-8601 with ':' and '.' replaced by '-'.
func ReportID(t time.Time, task string) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return ts + "-" + Slug(task)
}

// DefaultWriteTemplate is the built-in writer prompt.
const DefaultWriteTemplate = "You are the Writer Agent for DeepOne. Write a %s in %s of about %d words.\n" +
	"Use ONLY the following sources as factual grounding. Attribute claims with bracket citations " +
	"like [1], [2]. Do NOT include a References section; it will be appended programmatically.\n\n" +
	"Topic: %s\n\nSources:\n%s"

// WritePrompt builds the writer prompt over numbered sources.
func WritePrompt(task, language, reportType string, totalWords int, sources []domain.AggregatedSource) string {
	return fmt.Sprintf(DefaultWriteTemplate, writeArgs(task, language, reportType, totalWords, sources)...)
}

// writeArgs returns the template arguments in DefaultWriteTemplate order.
func writeArgs(task, language, reportType string, totalWords int, sources []domain.AggregatedSource) []any {
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = fmt.Sprintf("[%d] %s — %s", i+1, s.Title, s.URL)
	}
	refs := strings.Join(lines, "\n")
	if refs == "" {
		refs = "(no sources)"
	}

	return []any{strings.ReplaceAll(reportType, "_", " "), language, totalWords, task, refs}
}

// ReportText appends the reference list to the generated body.
func ReportText(body, references string) string {
	if references == "" {
		references = "(No references)"
	}
	return body + "\n\nReferences\n" + references
}
