package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// Ensure ReportStore implements the interface.
var _ driven.ReportStore = (*ReportStore)(nil)

// ReportStore writes report artifacts as "<id>.<format>" files in one directory.
type ReportStore struct {
	dir string
}

// NewReportStore creates a store rooted at dir.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir}
}

// Dir returns the reports directory.
func (s *ReportStore) Dir() string {
	return s.dir
}

func (s *ReportStore) path(id string, format domain.ExportFormat) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: report id %q", domain.ErrInvalidInput, id)
	}
	return filepath.Join(s.dir, id+"."+string(format)), nil
}

// Save writes one artifact and returns its path.
func (s *ReportStore) Save(ctx context.Context, id string, format domain.ExportFormat, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(id, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Get returns the markdown report with the given id.
func (s *ReportStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(id, domain.FormatMarkdown)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: report %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return &domain.Report{
		ReportInfo: domain.ReportInfo{ID: id, Size: info.Size(), Modified: info.ModTime()},
		Content:    string(data),
	}, nil
}

// List returns markdown reports, most recently modified first.
// A missing directory means no reports yet.
func (s *ReportStore) List(ctx context.Context) ([]domain.ReportInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list reports: %w", err)
	}

	suffix := "." + string(domain.FormatMarkdown)
	var out []domain.ReportInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, domain.ReportInfo{
			ID:       strings.TrimSuffix(e.Name(), suffix),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
