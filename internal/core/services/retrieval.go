package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/deepone/internal/citations"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/logger"
)

// RetrieveOptions configures one retrieval session.
type RetrieveOptions struct {
	// MaxResults is requested from a source per sub-question.
	MaxResults int

	// Timeout bounds each individual source call.
	Timeout time.Duration

	// Concurrency is the number of workers. Values below one mean one.
	Concurrency int

	// OnProgress is called after each sub-question finishes.
	OnProgress func(completed, total int)
}

// RetrievalCoordinator fans sub-questions across a bounded worker pool and
// merges the evidence, keeping the first result seen for each normalised URL.
type RetrievalCoordinator struct {
	resolver SourceResolver
}

// NewRetrievalCoordinator creates a coordinator over resolver.
func NewRetrievalCoordinator(resolver SourceResolver) *RetrievalCoordinator {
	return &RetrievalCoordinator{resolver: resolver}
}

// session holds the state shared by the workers of one Retrieve call.
type session struct {
	mu        sync.Mutex
	queue     []string
	seen      map[string]struct{}
	collected []domain.AggregatedSource

	progressMu sync.Mutex
	completed  int
}

func (s *session) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	q := s.queue[0]
	s.queue = s.queue[1:]
	return q, true
}

func (s *session) merge(resp *domain.SearchResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		key := citations.NormalizeURL(r.URL)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.collected = append(s.collected, domain.AggregatedSource{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Origin:  resp.Source,
		})
	}
}

// Retrieve resolves every sub-question exactly once and returns the merged
// evidence, at most MaxResults * max(1, len(subQuestions)) entries.
//
// Source failures never fail the session; a sub-question without evidence
// contributes nothing. The only error is cancellation of ctx.
func (c *RetrievalCoordinator) Retrieve(
	ctx context.Context, subQuestions []string, opts RetrieveOptions,
) ([]domain.AggregatedSource, error) {
	total := len(subQuestions)
	maxResults := domain.SearchOptions{MaxResults: opts.MaxResults}.Clamp(domain.MaxResultsLimit).MaxResults
	if total == 0 {
		return []domain.AggregatedSource{}, nil
	}

	s := &session{
		queue: append([]string(nil), subQuestions...),
		seen:  make(map[string]struct{}),
	}
	workers := min(max(1, opts.Concurrency), total)
	logger.Debug("Retrieving %d sub-questions with %d workers", total, workers)

	searchOpts := domain.SearchOptions{MaxResults: maxResults, Timeout: opts.Timeout}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				q, ok := s.pop()
				if !ok {
					return nil
				}

				resp, err := c.resolver.Resolve(gctx, q, searchOpts)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logger.Warn("No evidence for %q: %v", q, err)
				}
				if resp != nil {
					s.merge(resp)
				}

				s.progressMu.Lock()
				s.completed++
				if opts.OnProgress != nil {
					opts.OnProgress(s.completed, total)
				}
				s.progressMu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	limit := maxResults * max(1, total)
	if len(s.collected) > limit {
		s.collected = s.collected[:limit]
	}
	logger.Debug("Retrieved %d unique sources", len(s.collected))
	return s.collected, nil
}
