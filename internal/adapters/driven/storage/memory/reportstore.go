package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure ReportStore implements the interface.
var _ driven.ReportStore = (*ReportStore)(nil)

type artifact struct {
	data     []byte
	modified time.Time
}

// ReportStore is an in-memory implementation of driven.ReportStore.
// Locations returned by Save use the "memory://" scheme.
type ReportStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[domain.ExportFormat]artifact
	now       func() time.Time
}

// NewReportStore creates an empty in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		artifacts: make(map[string]map[domain.ExportFormat]artifact),
		now:       time.Now,
	}
}

// Save stores data for id in format.
func (s *ReportStore) Save(_ context.Context, id string, format domain.ExportFormat, data []byte) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty report id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	formats, ok := s.artifacts[id]
	if !ok {
		formats = make(map[domain.ExportFormat]artifact)
		s.artifacts[id] = formats
	}
	formats[format] = artifact{data: append([]byte(nil), data...), modified: s.now()}
	return "memory://" + id + "." + string(format), nil
}

// Get returns the markdown report with the given id.
func (s *ReportStore) Get(_ context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id][domain.FormatMarkdown]
	if !ok {
		return nil, fmt.Errorf("%w: report %s", domain.ErrNotFound, id)
	}
	return &domain.Report{
		ReportInfo: domain.ReportInfo{ID: id, Size: int64(len(a.data)), Modified: a.modified},
		Content:    string(a.data),
	}, nil
}

// List returns markdown reports, most recent first.
func (s *ReportStore) List(_ context.Context) ([]domain.ReportInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReportInfo
	for id, formats := range s.artifacts {
		a, ok := formats[domain.FormatMarkdown]
		if !ok {
			continue
		}
		out = append(out, domain.ReportInfo{ID: id, Size: int64(len(a.data)), Modified: a.modified})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
