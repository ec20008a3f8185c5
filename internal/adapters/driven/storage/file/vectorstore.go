package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps the whole vector index in one JSON document.
type VectorStore struct {
	mu   sync.Mutex
	path string
}

// NewVectorStore creates a store for the document at path.
// Nothing is read or created until the first Load or Save.
func NewVectorStore(path string) *VectorStore {
	return &VectorStore{path: path}
}

// Path returns the index document location.
func (s *VectorStore) Path() string {
	return s.path
}

// Load reads the index document. A missing file is an empty index.
func (s *VectorStore) Load(ctx context.Context) (*domain.VectorDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var doc domain.VectorDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIndexCorrupt, s.path, err)
	}
	if doc.Version > domain.VectorIndexVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", domain.ErrIndexCorrupt, s.path, doc.Version)
	}
	return &doc, nil
}

// Save atomically replaces the index document.
func (s *VectorStore) Save(ctx context.Context, doc *domain.VectorDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
