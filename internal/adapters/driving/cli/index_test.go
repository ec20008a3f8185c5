package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

func TestIndexCmd_Subcommands(t *testing.T) {
	names := make([]string, 0, len(indexCmd.Commands()))
	for _, c := range indexCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"add", "search", "stats", "watch"}, names)
}

func TestIndexAdd_Directory(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.ingest.result = &domain.IngestResult{Files: 2, Chunks: 5, Skipped: 1}
	dir := t.TempDir()

	out, err := execute(t, "index", "add", dir)

	require.NoError(t, err)
	assert.Equal(t, []string{dir}, env.runtime.ingest.dirs)
	assert.Empty(t, env.runtime.ingest.files)
	assert.Contains(t, out, "Indexed 5 chunks from 2 files (1 already indexed)")
}

func TestIndexAdd_File(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.ingest.result = &domain.IngestResult{Files: 1, Chunks: 3}
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o600))

	out, err := execute(t, "index", "add", path)

	require.NoError(t, err)
	assert.Equal(t, []string{path}, env.runtime.ingest.files)
	assert.Contains(t, out, "Indexed 3 chunks from 1 files")
	assert.NotContains(t, out, "already indexed")
}

func TestIndexAdd_MissingPath(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "add", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestIndexAdd_IngestError(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.ingest.err = domain.ErrEmbeddingUnavailable

	_, err := execute(t, "index", "add", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIndexSearch_PrintsMatches(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.index.matches = []domain.VectorMatch{
		{
			Item: domain.VectorItem{
				ID:   "abc-0",
				Text: "Generics   were added\nin Go 1.18",
				Meta: map[string]any{"path": "/docs/go.md"},
			},
			Score: 0.8761,
		},
		{
			Item:  domain.VectorItem{ID: "def-1", Text: "no path"},
			Score: 0.5,
		},
	}

	out, err := execute(t, "index", "search", "--top-k", "2", "go", "generics")

	require.NoError(t, err)
	assert.Equal(t, "go generics", env.runtime.index.query)
	assert.Equal(t, 2, env.runtime.index.topK)
	assert.Contains(t, out, "[1] /docs/go.md (0.876)")
	assert.Contains(t, out, "Generics were added in Go 1.18")
	assert.Contains(t, out, "[2] def-1 (0.500)")
}

func TestIndexSearch_DefaultTopK(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "index", "search", "query")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTopK, env.runtime.index.topK)
	assert.Contains(t, out, "No matches found.")
}

func TestIndexSearch_JSON(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.index.matches = []domain.VectorMatch{
		{Item: domain.VectorItem{ID: "abc-0", Text: "hello"}, Score: 0.9},
	}

	out, err := execute(t, "index", "search", "--json", "hello")
	require.NoError(t, err)

	var matches []domain.VectorMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "abc-0", matches[0].Item.ID)
}

func TestIndexStats(t *testing.T) {
	t.Run("empty index", func(t *testing.T) {
		setupTestServices(t)

		out, err := execute(t, "index", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Index is empty")
	})

	t.Run("populated index", func(t *testing.T) {
		env := setupTestServices(t)
		env.runtime.index.stats = domain.IndexStats{
			Exists:    true,
			Items:     42,
			UpdatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		}

		out, err := execute(t, "index", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Items: 42")
		assert.Contains(t, out, "Updated:")
	})

	t.Run("json", func(t *testing.T) {
		env := setupTestServices(t)
		env.runtime.index.stats = domain.IndexStats{Exists: true, Items: 7}

		out, err := execute(t, "index", "stats", "--json")
		require.NoError(t, err)

		var stats domain.IndexStats
		require.NoError(t, json.Unmarshal([]byte(out), &stats))
		assert.Equal(t, 7, stats.Items)
	})
}

func TestIndexCmd_RuntimeError(t *testing.T) {
	env := setupTestServices(t)
	env.runtime.indexErr = errors.New("no embedder")

	_, err := execute(t, "index", "stats")
	assert.EqualError(t, err, "no embedder")
}

func TestIndexWatch_HasDebounceFlag(t *testing.T) {
	flag := indexWatchCmd.Flags().Lookup("debounce")
	require.NotNil(t, flag)
	assert.Equal(t, "500ms", flag.DefValue)
}

func TestIndexWatch_RejectsFile(t *testing.T) {
	setupTestServices(t)
	path := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := execute(t, "index", "watch", path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a \n b\t\tc", 10))
	assert.Equal(t, "abcde...", snippet("abcdefgh", 5))
}
