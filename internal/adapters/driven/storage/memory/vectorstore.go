package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Load returns a copy so callers can modify it before Save.
type VectorStore struct {
	mu  sync.RWMutex
	doc *domain.VectorDocument
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// Load returns the stored document, or nil if nothing was saved.
func (s *VectorStore) Load(_ context.Context) (*domain.VectorDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, nil
	}
	return cloneDocument(s.doc), nil
}

// Save replaces the stored document.
func (s *VectorStore) Save(_ context.Context, doc *domain.VectorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cloneDocument(doc)
	return nil
}

func cloneDocument(doc *domain.VectorDocument) *domain.VectorDocument {
	out := *doc
	out.Items = make([]domain.VectorItem, len(doc.Items))
	copy(out.Items, doc.Items)
	return &out
}
