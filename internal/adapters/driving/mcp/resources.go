package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for deepone resources.
	uriScheme = "deepone://"

	// runsListed is the number of runs returned by the runs resource.
	runsListed = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "reports",
		Name:        "reports",
		Description: "Stored research reports, most recent first",
		MIMEType:    "application/json",
	}, s.handleReportsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "reports/{reportId}",
		Name:        "report",
		Description: "Markdown content of a stored report",
		MIMEType:    "text/markdown",
	}, s.handleReportResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent research runs with their status",
		MIMEType:    "application/json",
	}, s.handleRunsResource)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleReportsResource lists stored reports.
func (s *Server) handleReportsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return jsonResult(req.Params.URI, []domain.ReportInfo{})
	}

	reports, err := s.ports.History.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	if reports == nil {
		reports = []domain.ReportInfo{}
	}
	return jsonResult(req.Params.URI, reports)
}

// handleReportResource returns the markdown of one report.
func (s *Server) handleReportResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractReportID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	report, err := s.ports.History.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     report.Content,
		}},
	}, nil
}

type runInfo struct {
	ID           string  `json:"id"`
	Task         string  `json:"task"`
	Status       string  `json:"status"`
	ReportID     string  `json:"report_id,omitempty"`
	Error        string  `json:"error,omitempty"`
	WebSources   int     `json:"web_sources"`
	LocalSources int     `json:"local_sources"`
	StartedAt    string  `json:"started_at"`
	Seconds      float64 `json:"seconds"`
}

// handleRunsResource lists recent runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return jsonResult(req.Params.URI, []runInfo{})
	}

	runs, err := s.ports.History.ListRuns(ctx, runsListed)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	infos := make([]runInfo, len(runs))
	for i, r := range runs {
		infos[i] = runInfo{
			ID:           r.ID,
			Task:         r.Task,
			Status:       string(r.Status),
			ReportID:     r.ReportID,
			Error:        r.Error,
			WebSources:   r.WebSources,
			LocalSources: r.LocalSources,
			StartedAt:    r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Seconds:      r.Duration().Seconds(),
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// extractReportID extracts the report ID from a URI like deepone://reports/{reportId}.
func extractReportID(uri string) string {
	const prefix = uriScheme + "reports/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
