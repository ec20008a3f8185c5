package driven

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// ReportStore persists report artifacts named "<timestamp>-<slug>".
type ReportStore interface {
	// Save writes one artifact for the report id in the given format
	// and returns its location.
	Save(ctx context.Context, id string, format domain.ExportFormat, data []byte) (string, error)

	// Get returns the markdown report with the given id.
	// Returns domain.ErrNotFound when it does not exist.
	Get(ctx context.Context, id string) (*domain.Report, error)

	// List returns stored markdown reports, most recent first.
	List(ctx context.Context) ([]domain.ReportInfo, error)
}

// Exporter renders a markdown report into a secondary format.
type Exporter interface {
	// Format returns the format this exporter produces.
	Format() domain.ExportFormat

	// Export converts markdown into the target format.
	Export(ctx context.Context, markdown []byte) ([]byte, error)
}
