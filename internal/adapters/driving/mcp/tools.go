package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/logger"
)

// ResearchInput is the input schema for the research tool.
type ResearchInput struct {
	Task          string   `json:"task" jsonschema:"the research question or topic"`
	MaxResults    int      `json:"max_results,omitempty" jsonschema:"search results per sub-question (1-20, default 5)"`
	TotalWords    int      `json:"total_words,omitempty" jsonschema:"target report length in words (min 300)"`
	TimeoutMS     int      `json:"timeout_ms,omitempty" jsonschema:"per-request timeout in milliseconds (min 3000)"`
	Language      string   `json:"language,omitempty" jsonschema:"report language (default english)"`
	ReportType    string   `json:"report_type,omitempty" jsonschema:"report type such as research_report"`
	CitationStyle string   `json:"citation_style,omitempty" jsonschema:"APA or MLA"`
	IncludeLocal  *bool    `json:"include_local,omitempty" jsonschema:"also search the local index"`
	Formats       []string `json:"formats,omitempty" jsonschema:"extra export formats such as html or txt"`
}

// ResearchOutput is the output schema for the research tool.
type ResearchOutput struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	SubQuestions []string          `json:"sub_questions"`
	SourcesUsed  int               `json:"sources_used"`
	LocalUsed    int               `json:"local_used"`
	Outputs      map[string]string `json:"outputs"`
	ExportErrors map[string]string `json:"export_errors,omitempty"`
	Report       string            `json:"report"`
}

// SearchLocalInput is the input schema for the search_local tool.
type SearchLocalInput struct {
	Query string `json:"query" jsonschema:"text to match against the local index"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of matches to return (default 10)"`
}

// SearchLocalOutput is the output schema for the search_local tool.
type SearchLocalOutput struct {
	Matches []LocalMatch `json:"matches"`
	Count   int          `json:"count"`
}

// LocalMatch is a single local index hit.
type LocalMatch struct {
	ID    string  `json:"id"`
	Path  string  `json:"path,omitempty"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "research",
		Description: "Research a topic across web search sources and the local index, and write a cited report",
	}, s.handleResearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_local",
		Description: "Find passages in the local document index most similar to a query",
	}, s.handleSearchLocal)
}

// toRequest maps tool input onto a research request.
func (in ResearchInput) toRequest() domain.ResearchRequest {
	req := domain.ResearchRequest{
		Task:         in.Task,
		ReportType:   in.ReportType,
		Language:     in.Language,
		TotalWords:   in.TotalWords,
		MaxResults:   in.MaxResults,
		Timeout:      time.Duration(in.TimeoutMS) * time.Millisecond,
		IncludeLocal: in.IncludeLocal,
	}
	if in.CitationStyle != "" {
		req.CitationStyle = domain.ParseCitationStyle(in.CitationStyle)
	}
	for _, f := range in.Formats {
		req.Formats = append(req.Formats, domain.ExportFormat(strings.ToLower(strings.TrimSpace(f))))
	}
	return req
}

// handleResearch runs a research task to completion.
func (s *Server) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	if strings.TrimSpace(input.Task) == "" {
		return nil, ResearchOutput{}, fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
	}

	logger.Info("MCP research: %s", input.Task)
	result, _, err := s.ports.Research.Run(ctx, input.toRequest())
	if err != nil {
		return nil, ResearchOutput{}, err
	}

	return nil, ResearchOutput{
		ID:           result.ID,
		Path:         result.Path,
		SubQuestions: result.SubQuestions,
		SourcesUsed:  result.SourcesUsed,
		LocalUsed:    result.LocalUsed,
		Outputs:      result.Outputs,
		ExportErrors: result.ExportErrors,
		Report:       result.Text,
	}, nil
}

// handleSearchLocal queries the local vector index.
func (s *Server) handleSearchLocal(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchLocalInput,
) (*mcp.CallToolResult, SearchLocalOutput, error) {
	if s.ports.Index == nil {
		return nil, SearchLocalOutput{}, ErrIndexUnavailable
	}
	topK := input.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	matches, err := s.ports.Index.Search(ctx, input.Query, topK)
	if err != nil {
		return nil, SearchLocalOutput{}, err
	}

	output := SearchLocalOutput{
		Matches: make([]LocalMatch, len(matches)),
		Count:   len(matches),
	}
	for i, m := range matches {
		output.Matches[i] = LocalMatch{
			ID:    m.Item.ID,
			Path:  m.Item.Path(),
			Score: m.Score,
			Text:  m.Item.Text,
		}
	}
	return nil, output, nil
}
