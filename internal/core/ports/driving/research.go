package driving

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// ResearchService runs the plan, retrieve and write pipeline.
// Both modes emit the same event sequence.
type ResearchService interface {
	// Run executes a research task to completion.
	// It returns the result together with every event emitted along the way.
	Run(ctx context.Context, req domain.ResearchRequest) (*domain.ResearchResult, []domain.Event, error)

	// Stream executes a research task in the background and delivers events
	// as they happen. The channel is closed after the terminal event.
	Stream(ctx context.Context, req domain.ResearchRequest) <-chan domain.Event
}
