package driven

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// VectorStore persists the flat vector index document.
// The whole document is read before search and rewritten on every append.
type VectorStore interface {
	// Load reads the index document.
	// Returns nil and no error when nothing has been saved yet.
	// An undecodable document returns an error wrapping domain.ErrIndexCorrupt.
	Load(ctx context.Context) (*domain.VectorDocument, error)

	// Save replaces the persisted document.
	Save(ctx context.Context, doc *domain.VectorDocument) error
}
