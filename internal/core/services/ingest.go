package services

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-addressed ids, not security
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/k3a/html2text"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
	"github.com/custodia-labs/deepone/internal/postprocessors/chunker"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService reads local files, chunks them and appends them to the index.
type IngestService struct {
	index   driving.IndexService
	chunker *chunker.Processor
}

// NewIngestService creates an ingest service writing to index.
func NewIngestService(index driving.IndexService, opts ...chunker.Option) *IngestService {
	return &IngestService{index: index, chunker: chunker.New(opts...)}
}

// Supported reports whether path has an extension the ingester can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".csv", ".html", ".htm":
		return true
	}
	return false
}

// ChunkID returns the content-addressed id of chunk i of the file at path.
// Unchanged text keeps its id; edited text gets a new one.
func ChunkID(path string, i int, text string) string {
	sum := sha1.Sum([]byte(path + "\x00" + text)) //nolint:gosec // see import
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:])[:12], i)
}

// IngestDir walks dir recursively and indexes every supported file.
// Unreadable files are logged and skipped.
func (s *IngestService) IngestDir(ctx context.Context, dir string) (*domain.IngestResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	var docs []domain.IndexDocument
	files := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("Skipping %s: %v", path, walkErr)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		fileDocs, err := s.documents(path)
		if err != nil {
			logger.Warn("Skipping unreadable file %s: %v", path, err)
			return nil
		}
		if len(fileDocs) == 0 {
			return nil
		}
		files++
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.add(ctx, files, docs)
}

// IngestFile indexes a single file. Unsupported or empty files produce an
// empty result.
func (s *IngestService) IngestFile(ctx context.Context, path string) (*domain.IngestResult, error) {
	if !Supported(path) {
		logger.Debug("Ignoring unsupported file %s", path)
		return &domain.IngestResult{}, nil
	}
	docs, err := s.documents(path)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	if len(docs) == 0 {
		return &domain.IngestResult{}, nil
	}
	return s.add(ctx, 1, docs)
}

func (s *IngestService) add(ctx context.Context, files int, docs []domain.IndexDocument) (*domain.IngestResult, error) {
	result := &domain.IngestResult{Files: files, Chunks: len(docs)}
	if len(docs) == 0 {
		return result, nil
	}
	added, err := s.index.AddDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}
	result.Skipped = len(docs) - added
	logger.Info("Ingested %d files: %d chunks, %d already indexed", files, len(docs), result.Skipped)
	return result, nil
}

// documents reads and chunks one file.
func (s *IngestService) documents(path string) ([]domain.IndexDocument, error) {
	text, err := readText(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunks := s.chunker.Split(text)
	docs := make([]domain.IndexDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.IndexDocument{
			ID:   ChunkID(path, i, c),
			Text: c,
			Meta: map[string]any{"path": path, "chunk": i},
		}
	}
	return docs, nil
}

// readText returns the text content of a supported file. HTML is reduced
// to plain text.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return strings.TrimSpace(html2text.HTML2Text(string(data))), nil
	default:
		return string(data), nil
	}
}
