package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// DefaultRunLimit is the number of runs listed when no limit is given.
const DefaultRunLimit = 20

// HistoryService reads persisted reports and run records.
type HistoryService struct {
	reports driven.ReportStore
	runs    driven.RunStore
}

// NewHistoryService creates a history service. runs may be nil when run
// history is disabled.
func NewHistoryService(reports driven.ReportStore, runs driven.RunStore) *HistoryService {
	return &HistoryService{reports: reports, runs: runs}
}

// ListReports returns stored reports, most recent first.
func (s *HistoryService) ListReports(ctx context.Context) ([]domain.ReportInfo, error) {
	return s.reports.List(ctx)
}

// GetReport returns a stored report. The id may carry a ".md" suffix.
func (s *HistoryService) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), ".md")
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: invalid report id %q", domain.ErrInvalidInput, id)
	}
	return s.reports.Get(ctx, id)
}

// ListRuns returns up to limit recent runs, newest first.
func (s *HistoryService) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.runs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	return s.runs.ListRuns(ctx, limit)
}
