package mcp

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// mockResearchService is a mock implementation of driving.ResearchService.
type mockResearchService struct {
	result *domain.ResearchResult
	err    error
	req    domain.ResearchRequest
}

func (m *mockResearchService) Run(
	_ context.Context,
	req domain.ResearchRequest,
) (*domain.ResearchResult, []domain.Event, error) {
	m.req = req
	return m.result, nil, m.err
}

func (m *mockResearchService) Stream(_ context.Context, _ domain.ResearchRequest) <-chan domain.Event {
	ch := make(chan domain.Event)
	close(ch)
	return ch
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	matches []domain.VectorMatch
	err     error
	topK    int
}

func (m *mockIndexService) AddDocuments(_ context.Context, docs []domain.IndexDocument) (int, error) {
	return len(docs), m.err
}

func (m *mockIndexService) Search(_ context.Context, _ string, topK int) ([]domain.VectorMatch, error) {
	m.topK = topK
	return m.matches, m.err
}

func (m *mockIndexService) Stats(_ context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{Items: len(m.matches)}, m.err
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	reports []domain.ReportInfo
	report  *domain.Report
	runs    []domain.RunRecord
	err     error
}

func (m *mockHistoryService) ListReports(_ context.Context) ([]domain.ReportInfo, error) {
	return m.reports, m.err
}

func (m *mockHistoryService) GetReport(_ context.Context, _ string) (*domain.Report, error) {
	return m.report, m.err
}

func (m *mockHistoryService) ListRuns(_ context.Context, _ int) ([]domain.RunRecord, error) {
	return m.runs, m.err
}
