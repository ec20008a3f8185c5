package export

import (
	"context"
	"strings"

	"github.com/k3a/html2text"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// TextExporter renders a report as plain text by way of HTML, which strips
// markdown syntax while keeping paragraphs and links readable.
type TextExporter struct{}

// NewTextExporter creates a plain text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Format returns domain.FormatText.
func (e *TextExporter) Format() domain.ExportFormat {
	return domain.FormatText
}

// Export converts markdown into plain text.
func (e *TextExporter) Export(ctx context.Context, md []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fragment, err := renderMarkdown(md)
	if err != nil {
		return nil, err
	}
	text := html2text.HTML2TextWithOptions(fragment, html2text.WithUnixLineBreaks())
	return []byte(strings.TrimSpace(text) + "\n"), nil
}

// All returns every available exporter.
func All() []driven.Exporter {
	return []driven.Exporter{NewHTMLExporter(), NewTextExporter()}
}
