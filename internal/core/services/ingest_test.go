package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/postprocessors/chunker"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newIngestFixture() (*IngestService, *mockVectorStore) {
	store := &mockVectorStore{}
	index := NewVectorIndexService(store, &mockEmbeddingService{})
	return NewIngestService(index), store
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"notes.md", true},
		{"NOTES.MD", true},
		{"a.txt", true},
		{"data.csv", true},
		{"page.html", true},
		{"page.htm", true},
		{"paper.pdf", false},
		{"memo.docx", false},
		{"Makefile", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Supported(tt.path))
		})
	}
}

func TestChunkID(t *testing.T) {
	id := ChunkID("/docs/a.md", 3, "solar")

	assert.Equal(t, id, ChunkID("/docs/a.md", 3, "solar"))
	assert.NotEqual(t, id, ChunkID("/docs/b.md", 3, "solar"))
	assert.NotEqual(t, id, ChunkID("/docs/a.md", 3, "wind"))
	assert.True(t, strings.HasSuffix(id, "-3"))
	assert.Len(t, strings.TrimSuffix(id, "-3"), 12)
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# Title\nbody")
	writeFile(t, filepath.Join(dir, "b.txt"), "plain text")
	writeFile(t, filepath.Join(dir, "c.csv"), "a,b\n1,2")
	writeFile(t, filepath.Join(dir, "d.html"), "<html><body><p>Hello <b>web</b></p></body></html>")
	writeFile(t, filepath.Join(dir, "e.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n")
	writeFile(t, filepath.Join(dir, "sub", "f.md"), "nested")

	svc, store := newIngestFixture()
	result, err := svc.IngestDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, domain.IngestResult{Files: 5, Chunks: 5, Skipped: 0}, *result)
	require.NotNil(t, store.doc)
	require.Len(t, store.doc.Items, 5)

	byPath := make(map[string]domain.VectorItem)
	for _, it := range store.doc.Items {
		byPath[it.Path()] = it
	}
	html := byPath[filepath.Join(dir, "d.html")]
	assert.Equal(t, ChunkID(filepath.Join(dir, "d.html"), 0, html.Text), html.ID)
	assert.Contains(t, html.Text, "Hello")
	assert.NotContains(t, html.Text, "<p>")
	assert.Equal(t, 0, html.Meta["chunk"])
	assert.Contains(t, byPath, filepath.Join(dir, "sub", "f.md"))
}

func TestIngestDir_ReingestSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "beta")

	svc, store := newIngestFixture()
	_, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)

	result, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, store.saves)
}

func TestIngestFile_EditedFileIsReindexed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	writeFile(t, path, "old content about solar")

	svc, store := newIngestFixture()
	_, err := svc.IngestFile(context.Background(), path)
	require.NoError(t, err)

	writeFile(t, path, "NEW content about wind turbines")
	result, err := svc.IngestFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, domain.IngestResult{Files: 1, Chunks: 1, Skipped: 0}, *result)
	require.Len(t, store.doc.Items, 2)
	edited := store.doc.Items[1]
	assert.Equal(t, "NEW content about wind turbines", edited.Text)
	assert.Equal(t, ChunkID(path, 0, edited.Text), edited.ID)
	assert.NotEqual(t, store.doc.Items[0].ID, edited.ID)
}

func TestIngestDir_Errors(t *testing.T) {
	svc, _ := newIngestFixture()

	_, err := svc.IngestDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, file, "x")
	_, err = svc.IngestDir(context.Background(), file)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestDir_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, store := newIngestFixture()
	_, err := svc.IngestDir(ctx, dir)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, store.doc)
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = strings.Repeat("z", 99)
	}
	path := filepath.Join(dir, "long.txt")
	writeFile(t, path, strings.Join(lines, "\n"))

	store := &mockVectorStore{}
	svc := NewIngestService(NewVectorIndexService(store, &mockEmbeddingService{}), chunker.WithChunkSize(1000))
	result, err := svc.IngestFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, ChunkID(path, 2, store.doc.Items[2].Text), store.doc.Items[2].ID)
}

func TestIngestFile_Unsupported(t *testing.T) {
	svc, store := newIngestFixture()

	result, err := svc.IngestFile(context.Background(), "/nowhere/paper.pdf")

	require.NoError(t, err)
	assert.Equal(t, domain.IngestResult{}, *result)
	assert.Nil(t, store.doc)
}

func TestIngestFile_Missing(t *testing.T) {
	svc, _ := newIngestFixture()

	_, err := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "gone.md"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}
