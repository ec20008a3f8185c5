package driving

import (
	"context"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

// IndexService manages the local vector index.
type IndexService interface {
	// AddDocuments embeds and appends documents whose IDs are not yet indexed.
	// Returns the number of documents added.
	AddDocuments(ctx context.Context, docs []domain.IndexDocument) (int, error)

	// Search returns the topK most similar items, highest score first.
	Search(ctx context.Context, query string, topK int) ([]domain.VectorMatch, error)

	// Stats summarises the persisted index.
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// IngestService turns local files into index documents.
type IngestService interface {
	// IngestDir walks dir and indexes every supported file.
	IngestDir(ctx context.Context, dir string) (*domain.IngestResult, error)

	// IngestFile indexes a single file. Unsupported files are skipped.
	IngestFile(ctx context.Context, path string) (*domain.IngestResult, error)
}
