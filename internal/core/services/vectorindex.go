package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
)

// Ensure VectorIndexService implements the interface.
var _ driving.IndexService = (*VectorIndexService)(nil)

const (
	// EmbeddingBatchSize is the number of texts sent per embedding request.
	EmbeddingBatchSize = 64

	// embeddingParallelism bounds concurrent embedding requests.
	embeddingParallelism = 2
)

// VectorIndexService is an append-only flat vector index with exact cosine search.
//
// Every append loads the whole document, adds items and rewrites it. Only
// appends through the same instance are serialised. Two instances over the
// same file, or two processes, must not append at the same time: each
// rewrites the document it loaded and the later save drops the other's items.
type VectorIndexService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	now      func() time.Time
	mu       sync.Mutex
}

// NewVectorIndexService creates an index over store.
// The embedder is optional; without it AddDocuments and Search fail
// with domain.ErrEmbeddingUnavailable once there is something to embed.
func NewVectorIndexService(store driven.VectorStore, embedder driven.EmbeddingService) *VectorIndexService {
	return &VectorIndexService{store: store, embedder: embedder, now: time.Now}
}

// load reads the document, recovering from a missing or corrupt file with an empty one.
func (s *VectorIndexService) load(ctx context.Context) (*domain.VectorDocument, bool, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIndexCorrupt) {
			logger.Warn("Vector index unreadable, starting empty: %v", err)
			return &domain.VectorDocument{Version: domain.VectorIndexVersion}, true, nil
		}
		return nil, false, fmt.Errorf("load vector index: %w", err)
	}
	if doc == nil {
		return &domain.VectorDocument{Version: domain.VectorIndexVersion}, false, nil
	}
	return doc, true, nil
}

// AddDocuments embeds documents whose IDs are not yet stored and appends them.
func (s *VectorIndexService) AddDocuments(ctx context.Context, docs []domain.IndexDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]struct{}, len(doc.Items))
	for _, it := range doc.Items {
		existing[it.ID] = struct{}{}
	}
	var pending []domain.IndexDocument
	for _, d := range docs {
		if _, ok := existing[d.ID]; ok {
			continue
		}
		existing[d.ID] = struct{}{}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		logger.Debug("All %d documents already indexed", len(docs))
		return 0, nil
	}
	if s.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}

	texts := make([]string, len(pending))
	for i, d := range pending {
		texts[i] = d.Text
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	for i, d := range pending {
		doc.Items = append(doc.Items, domain.VectorItem{
			ID:        d.ID,
			Text:      d.Text,
			Embedding: vectors[i],
			Meta:      d.Meta,
		})
	}
	doc.Version = domain.VectorIndexVersion
	doc.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, doc); err != nil {
		return 0, fmt.Errorf("save vector index: %w", err)
	}
	logger.Info("Indexed %d documents (%d total)", len(pending), len(doc.Items))
	return len(pending), nil
}

// embedAll embeds texts in batches of EmbeddingBatchSize, preserving order.
func (s *VectorIndexService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embeddingParallelism)
	for start := 0; start < len(texts); start += EmbeddingBatchSize {
		end := min(start+EmbeddingBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Search embeds query and returns the topK most similar items by cosine
// similarity, highest first. An empty index returns no matches.
func (s *VectorIndexService) Search(ctx context.Context, query string, topK int) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(doc.Items) == 0 {
		return []domain.VectorMatch{}, nil
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]domain.VectorMatch, len(doc.Items))
	for i, it := range doc.Items {
		matches[i] = domain.VectorMatch{Item: it, Score: CosineSimilarity(qv, it.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Stats summarises the persisted index.
func (s *VectorIndexService) Stats(ctx context.Context) (domain.IndexStats, error) {
	doc, exists, err := s.load(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Exists:    exists,
		Items:     len(doc.Items),
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|).
// It is zero when either norm is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
