// Package export renders markdown reports into secondary formats.
package export

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure exporters implement the interface.
var (
	_ driven.Exporter = (*HTMLExporter)(nil)
	_ driven.Exporter = (*TextExporter)(nil)
)

// markdown is the goldmark parser. Raw HTML in generated text is escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, autolinks
	),
)

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { max-width: 46rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
pre, code { background: #f4f4f4; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.25rem 0.5rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// DefaultTitle is used when the report has no heading or text.
const DefaultTitle = "Research report"

// HTMLExporter renders a report as a standalone HTML page.
type HTMLExporter struct{}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{}
}

// Format returns domain.FormatHTML.
func (e *HTMLExporter) Format() domain.ExportFormat {
	return domain.FormatHTML
}

// Export converts markdown into a complete HTML document.
func (e *HTMLExporter) Export(ctx context.Context, md []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := renderMarkdown(md)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: Title(md),
		Body:  template.HTML(body), //nolint:gosec // goldmark output with raw HTML escaped
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderMarkdown converts markdown to an HTML fragment.
func renderMarkdown(md []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(md, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Title returns the first non-empty line with heading markers removed.
func Title(md []byte) string {
	for _, line := range strings.Split(string(md), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return DefaultTitle
}
