package domain

import (
	"strings"
	"time"
)

// ExportFormat names a report output format.
type ExportFormat string

// Known export formats. Markdown is always written.
const (
	FormatMarkdown ExportFormat = "md"
	FormatHTML     ExportFormat = "html"
	FormatText     ExportFormat = "txt"
	FormatPDF      ExportFormat = "pdf"
	FormatDOCX     ExportFormat = "docx"
)

// DefaultReportType is used when a request does not name one.
const DefaultReportType = "research_report"

// ResearchRequest describes one research run. Zero fields take defaults.
type ResearchRequest struct {
	Task          string
	ReportType    string
	Language      string
	TotalWords    int
	MaxResults    int
	Timeout       time.Duration
	Concurrency   int
	RAGTopK       int
	CitationStyle CitationStyle
	Formats       []ExportFormat

	// IncludeLocal overrides the configured default when set.
	IncludeLocal *bool
}

// ReportTypeLabel returns the report type with underscores replaced by spaces.
func (r ResearchRequest) ReportTypeLabel() string {
	t := r.ReportType
	if t == "" {
		t = DefaultReportType
	}
	return strings.ReplaceAll(t, "_", " ")
}

// ResearchResult summarises a completed run.
type ResearchResult struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	WordsTarget  int               `json:"words_target"`
	MaxResults   int               `json:"max_results"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	SubQuestions []string          `json:"sub_questions"`
	SourcesUsed  int               `json:"sources_used"`
	LocalUsed    int               `json:"local_used"`
	Outputs      map[string]string `json:"outputs"`
	ExportErrors map[string]string `json:"export_errors,omitempty"`
	Saved        bool              `json:"saved"`

	// Text is the full report including the reference list.
	Text string `json:"-"`

	// Sources is the merged evidence handed to the writer, web first.
	Sources []AggregatedSource `json:"-"`
}

// ReportInfo describes a stored report.
type ReportInfo struct {
	ID       string    `json:"id"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Report is a stored report and its markdown content.
type Report struct {
	ReportInfo
	Content string `json:"content"`
}
