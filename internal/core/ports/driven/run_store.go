package driven

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// RunStore persists research run history.
type RunStore interface {
	// SaveRun creates or updates a run record based on ID.
	SaveRun(ctx context.Context, run *domain.RunRecord) error

	// GetRun retrieves a run by ID.
	// Returns nil and no error if the run does not exist.
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)

	// ListRuns returns recent runs ordered by start time descending.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// PruneRuns removes all but the most recent keep runs.
	PruneRuns(ctx context.Context, keep int) error
}
