package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

func TestExtractReportID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid report URI",
			uri:      "deepone://reports/20250101-120000-go",
			expected: "20250101-120000-go",
		},
		{
			name:     "invalid prefix",
			uri:      "file://reports/abc",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "deepone://reports/abc/extra",
			expected: "",
		},
		{
			name:     "list URI",
			uri:      "deepone://reports",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractReportID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleReportsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists reports as JSON", func(t *testing.T) {
		history := &mockHistoryService{
			reports: []domain.ReportInfo{
				{ID: "b", Size: 20},
				{ID: "a", Size: 10},
			},
		}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		result, err := server.handleReportsResource(ctx, makeReadResourceRequest("deepone://reports"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var infos []domain.ReportInfo
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "b", infos[0].ID)
	})

	t.Run("without history returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Research: &mockResearchService{}})
		require.NoError(t, err)

		result, err := server.handleReportsResource(ctx, makeReadResourceRequest("deepone://reports"))
		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("nil list encodes as empty array", func(t *testing.T) {
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: &mockHistoryService{}})
		require.NoError(t, err)

		result, err := server.handleReportsResource(ctx, makeReadResourceRequest("deepone://reports"))
		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("history error", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("disk error")}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		_, err = server.handleReportsResource(ctx, makeReadResourceRequest("deepone://reports"))
		assert.ErrorContains(t, err, "disk error")
	})
}

func TestServer_handleReportResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns markdown", func(t *testing.T) {
		history := &mockHistoryService{
			report: &domain.Report{
				ReportInfo: domain.ReportInfo{ID: "abc"},
				Content:    "# Title\n\nBody",
			},
		}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		result, err := server.handleReportResource(ctx, makeReadResourceRequest("deepone://reports/abc"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "text/markdown", result.Contents[0].MIMEType)
		assert.Equal(t, "# Title\n\nBody", result.Contents[0].Text)
	})

	t.Run("missing report is not found", func(t *testing.T) {
		history := &mockHistoryService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		result, err := server.handleReportResource(ctx, makeReadResourceRequest("deepone://reports/nope"))
		require.Error(t, err)
		assert.Nil(t, result)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("bad URI is not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: &mockHistoryService{}})
		require.NoError(t, err)

		_, err = server.handleReportResource(ctx, makeReadResourceRequest("deepone://reports/a/b"))
		assert.Error(t, err)
	})

	t.Run("without history is not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Research: &mockResearchService{}})
		require.NoError(t, err)

		_, err = server.handleReportResource(ctx, makeReadResourceRequest("deepone://reports/abc"))
		assert.Error(t, err)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("permission denied")}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		_, err = server.handleReportResource(ctx, makeReadResourceRequest("deepone://reports/abc"))
		assert.ErrorContains(t, err, "reading report")
	})
}

func TestServer_handleRunsResource(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	history := &mockHistoryService{
		runs: []domain.RunRecord{
			{
				ID:         "run-1",
				Task:       "topic",
				Status:     domain.RunCompleted,
				ReportID:   "abc",
				WebSources: 3,
				StartedAt:  start,
				FinishedAt: start.Add(90 * time.Second),
			},
		},
	}
	server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
	require.NoError(t, err)

	result, err := server.handleRunsResource(ctx, makeReadResourceRequest("deepone://runs"))
	require.NoError(t, err)

	var infos []runInfo
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "run-1", infos[0].ID)
	assert.Equal(t, "completed", infos[0].Status)
	assert.Equal(t, "abc", infos[0].ReportID)
	assert.Equal(t, "2025-01-01T12:00:00Z", infos[0].StartedAt)
	assert.InDelta(t, 90.0, infos[0].Seconds, 0.001)
}
