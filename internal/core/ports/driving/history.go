package driving

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// HistoryService exposes stored reports and run history.
type HistoryService interface {
	// ListReports returns stored reports, most recent first.
	ListReports(ctx context.Context) ([]domain.ReportInfo, error)

	// GetReport returns the markdown report with the given id.
	GetReport(ctx context.Context, id string) (*domain.Report, error)

	// ListRuns returns recent research runs.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
