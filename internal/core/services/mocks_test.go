package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// mockSearchSource is a configurable driven.SearchSource.
type mockSearchSource struct {
	name    string
	results []domain.SearchResult
	err     error
	delay   time.Duration
	respond func(query string) ([]domain.SearchResult, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockSearchSource) Name() string { return m.name }

func (m *mockSearchSource) Search(
	ctx context.Context, query string, _ domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, domain.NewSourceError(m.name, ctx.Err())
		}
	}
	if m.respond != nil {
		results, err := m.respond(query)
		if err != nil {
			return nil, err
		}
		return &domain.SearchResponse{Source: m.name, Results: results}, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SearchResponse{Source: m.name, Results: m.results}, nil
}

func (m *mockSearchSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSearchSource) queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.calls...)
	sort.Strings(out)
	return out
}

func failingSource(name string) *mockSearchSource {
	return &mockSearchSource{name: name, err: domain.NewSourceError(name, errors.New("HTTP 500"))}
}

// resultsFor builds n distinct results under host for query q.
func resultsFor(host, q string, n int) []domain.SearchResult {
	out := make([]domain.SearchResult, n)
	slug := strings.ReplaceAll(q, " ", "-")
	for i := range out {
		out[i] = domain.SearchResult{
			Title:   fmt.Sprintf("%s result %d", q, i+1),
			URL:     fmt.Sprintf("https://%s/%s/%d", host, slug, i+1),
			Content: "snippet",
		}
	}
	return out
}

// bindings wraps sources with a generous rate limit.
func bindings(sources ...driven.SearchSource) []SourceBinding {
	out := make([]SourceBinding, len(sources))
	for i, s := range sources {
		out[i] = SourceBinding{Source: s, Limit: RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}}
	}
	return out
}

// mockTextGenerator is a testify mock of driven.TextGenerator.
type mockTextGenerator struct {
	mock.Mock
}

func (m *mockTextGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *mockTextGenerator) ModelName() string { return "mock-model" }

func (m *mockTextGenerator) Ping(_ context.Context) error { return nil }

func (m *mockTextGenerator) Close() error { return nil }

// planPrompt matches prompts sent by the planner.
var planPrompt = mock.MatchedBy(func(p string) bool { return strings.Contains(p, "Planner") })

// writePrompt matches prompts sent by the writer.
var writePrompt = mock.MatchedBy(func(p string) bool { return strings.Contains(p, "Writer") })

// mockEmbeddingService returns fixed vectors by text, or a vector derived
// from the text length when none is registered.
type mockEmbeddingService struct {
	vectors map[string][]float32
	err     error

	mu      sync.Mutex
	batches [][]string
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (m *mockEmbeddingService) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockEmbeddingService) Dimensions() int { return 3 }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error { return nil }

// mockVectorStore keeps the index document in memory.
type mockVectorStore struct {
	mu      sync.Mutex
	doc     *domain.VectorDocument
	loadErr error
	saves   int
}

func (m *mockVectorStore) Load(_ context.Context) (*domain.VectorDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.doc == nil {
		return nil, nil
	}
	cp := *m.doc
	cp.Items = append([]domain.VectorItem(nil), m.doc.Items...)
	return &cp, nil
}

func (m *mockVectorStore) Save(_ context.Context, doc *domain.VectorDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Items = append([]domain.VectorItem(nil), doc.Items...)
	m.doc = &cp
	m.loadErr = nil
	m.saves++
	return nil
}

// mockReportStore keeps artifacts in memory keyed by "<id>.<format>".
type mockReportStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{files: make(map[string][]byte)}
}

func (m *mockReportStore) Save(_ context.Context, id string, format domain.ExportFormat, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := id + "." + string(format)
	m.files[name] = append([]byte(nil), data...)
	return "mem://" + name, nil
}

func (m *mockReportStore) Get(_ context.Context, id string) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[strings.TrimSuffix(id, ".md")+".md"]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Report{
		ReportInfo: domain.ReportInfo{ID: strings.TrimSuffix(id, ".md"), Size: int64(len(data))},
		Content:    string(data),
	}, nil
}

func (m *mockReportStore) List(_ context.Context) ([]domain.ReportInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReportInfo
	for name, data := range m.files {
		if id, ok := strings.CutSuffix(name, ".md"); ok {
			out = append(out, domain.ReportInfo{ID: id, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockReportStore) content(format domain.ExportFormat) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, data := range m.files {
		if strings.HasSuffix(name, "."+string(format)) {
			return string(data)
		}
	}
	return ""
}

// mockExporter returns fixed output or an error.
type mockExporter struct {
	format domain.ExportFormat
	err    error
}

func (m *mockExporter) Format() domain.ExportFormat { return m.format }

func (m *mockExporter) Export(_ context.Context, markdown []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]byte("exported:"), markdown...), nil
}

// mockRunStore records saved runs.
type mockRunStore struct {
	mu     sync.Mutex
	runs   map[string]domain.RunRecord
	prunes []int
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[string]domain.RunRecord)}
}

func (m *mockRunStore) SaveRun(_ context.Context, run *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRunStore) GetRun(_ context.Context, id string) (*domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockRunStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRunStore) PruneRuns(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes = append(m.prunes, keep)
	return nil
}

func (m *mockRunStore) pruneCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.prunes...)
}

func (m *mockRunStore) only() domain.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		return r
	}
	return domain.RunRecord{}
}

// stubPromptStore serves templates from a map and fails for anything else.
type stubPromptStore map[string]string

func (s stubPromptStore) Load(name string) (string, error) {
	if p, ok := s[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (s stubPromptStore) Reload() {}
