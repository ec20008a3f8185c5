package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/deepone/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/deepone/internal/adapters/driven/config/file"
	"github.com/custodia-labs/deepone/internal/adapters/driven/export"
	"github.com/custodia-labs/deepone/internal/adapters/driven/search/registry"
	storagefile "github.com/custodia-labs/deepone/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/deepone/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/deepone/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/deepone/internal/adapters/driving/cli"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/core/services"
	"github.com/custodia-labs/deepone/internal/logger"
)

var _ cli.Runtime = (*container)(nil)

// container builds adapters on first use and releases them in Close.
// Settings are resolved lazily so flags such as --verbose apply first.
type container struct {
	settingsService driving.SettingsService

	mu       sync.Mutex
	settings *domain.AppSettings
	db       *sqlite.Store
	embedder driven.EmbeddingService
	embedErr error
	embedded bool
	index    *services.VectorIndexService
	closers  []func() error
}

func newContainer(settings driving.SettingsService) *container {
	return &container{settingsService: settings}
}

// appSettings resolves settings once. Caller must hold the lock.
func (c *container) appSettings() (*domain.AppSettings, error) {
	if c.settings != nil {
		return c.settings, nil
	}
	s, err := c.settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	c.settings = s
	return s, nil
}

// runStore opens the run history database once. Caller must hold the lock.
func (c *container) runStore(s *domain.AppSettings) (driven.RunStore, error) {
	if c.db == nil {
		db, err := sqlite.NewStore(s.Storage.RunsPath())
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		c.db = db
		c.closers = append(c.closers, db.Close)
	}
	return c.db.RunStore(), nil
}

// embeddingService creates the embedder once. A nil service with a nil
// error means no embedding provider is configured. Caller must hold the lock.
func (c *container) embeddingService(s *domain.AppSettings) (driven.EmbeddingService, error) {
	if !c.embedded {
		c.embedded = true
		c.embedder, c.embedErr = ai.CreateEmbeddingService(&s.Embedding)
		if c.embedder != nil {
			c.closers = append(c.closers, c.embedder.Close)
		}
	}
	return c.embedder, c.embedErr
}

// Research builds the pipeline with every configured source.
func (c *container) Research(_ context.Context, ephemeral bool) (driving.ResearchService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.appSettings()
	if err != nil {
		return nil, err
	}

	models, err := ai.Init(s)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error {
		models.Close()
		return nil
	})
	for _, w := range models.Warnings {
		logger.Warn("%s", w)
	}

	bindings := registry.Bindings(s)
	if len(bindings) == 0 {
		logger.Warn("No search source is configured; only local evidence will be used")
	}
	resolver := services.NewFallbackResolver(services.SharedRateLimiter(), bindings...)
	logger.Debug("Search sources: %v", resolver.Sources())

	var (
		reports driven.ReportStore
		runs    driven.RunStore
	)
	if ephemeral {
		reports = memory.NewReportStore()
		runs = memory.NewRunStore()
	} else {
		reports = storagefile.NewReportStore(s.Storage.ReportsDir())
		if runs, err = c.runStore(s); err != nil {
			return nil, err
		}
	}

	opts := []services.PipelineOption{
		services.WithRunStore(runs),
		services.WithExporters(export.All()...),
		services.WithDefaults(s.Research),
		services.WithProviderName(string(s.LLM.Provider)),
		services.WithPromptStore(configfile.NewPromptStore(s.Storage.PromptsDir(), services.DefaultPrompts())),
	}

	if models.Embedder != nil {
		index := services.NewVectorIndexService(storagefile.NewVectorStore(s.Storage.IndexPath()), models.Embedder)
		opts = append(opts, services.WithLocalIndex(index))
	}

	coordinator := services.NewRetrievalCoordinator(resolver)
	return services.NewResearchPipeline(models.Generator, coordinator, reports, opts...), nil
}

// Index returns the file-backed vector index. Without an embedder, Stats
// still works and Search or ingestion report domain.ErrEmbeddingUnavailable.
// Every caller in the process shares one writer.
func (c *container) Index(_ context.Context) (driving.IndexService, driving.IngestService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.appSettings()
	if err != nil {
		return nil, nil, err
	}
	if c.index == nil {
		embedder, err := c.embeddingService(s)
		if err != nil {
			return nil, nil, err
		}
		c.index = services.NewVectorIndexService(storagefile.NewVectorStore(s.Storage.IndexPath()), embedder)
	}
	return c.index, services.NewIngestService(c.index), nil
}

// History exposes stored reports and the run database.
func (c *container) History(_ context.Context) (driving.HistoryService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.appSettings()
	if err != nil {
		return nil, err
	}
	runs, err := c.runStore(s)
	if err != nil {
		return nil, err
	}
	return services.NewHistoryService(storagefile.NewReportStore(s.Storage.ReportsDir()), runs), nil
}

// Close releases resources in reverse order of creation.
func (c *container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("Error releasing resource: %v", err)
		}
	}
	c.closers = nil
	c.db = nil
}
