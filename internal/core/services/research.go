package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/deepone/internal/citations"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
)

// Ensure ResearchPipeline implements the interface.
var _ driving.ResearchService = (*ResearchPipeline)(nil)

// streamBuffer is the channel capacity used by Stream.
const streamBuffer = 32

// RunRetention is the number of finished runs kept in the run store.
const RunRetention = 200

// ResearchPipeline runs Planning, Retrieving and Writing, then persists the
// report. Every run emits the same event sequence whether it is awaited
// with Run or observed with Stream.
type ResearchPipeline struct {
	gen         driven.TextGenerator
	planner     *Planner
	coordinator *RetrievalCoordinator
	reports     driven.ReportStore

	index     driving.IndexService
	runs      driven.RunStore
	exporters map[domain.ExportFormat]driven.Exporter
	defaults  domain.ResearchSettings
	provider  string
	prompts   driven.PromptStore
	now       func() time.Time
}

// PipelineOption configures a ResearchPipeline.
type PipelineOption func(*ResearchPipeline)

// WithLocalIndex enables local evidence from the vector index.
func WithLocalIndex(index driving.IndexService) PipelineOption {
	return func(p *ResearchPipeline) { p.index = index }
}

// WithRunStore records every run in store.
func WithRunStore(store driven.RunStore) PipelineOption {
	return func(p *ResearchPipeline) { p.runs = store }
}

// WithExporters registers secondary output formats.
func WithExporters(exporters ...driven.Exporter) PipelineOption {
	return func(p *ResearchPipeline) {
		for _, e := range exporters {
			p.exporters[e.Format()] = e
		}
	}
}

// WithDefaults sets the parameters used for fields a request leaves zero.
func WithDefaults(settings domain.ResearchSettings) PipelineOption {
	return func(p *ResearchPipeline) { p.defaults = settings }
}

// WithProviderName labels results and run records with the LLM provider.
func WithProviderName(name string) PipelineOption {
	return func(p *ResearchPipeline) { p.provider = name }
}

// WithPromptStore loads the planning and writing prompts from store.
func WithPromptStore(store driven.PromptStore) PipelineOption {
	return func(p *ResearchPipeline) {
		p.prompts = store
		p.planner.SetPromptStore(store)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *ResearchPipeline) { p.now = now }
}

// NewResearchPipeline creates a pipeline.
func NewResearchPipeline(
	gen driven.TextGenerator,
	coordinator *RetrievalCoordinator,
	reports driven.ReportStore,
	opts ...PipelineOption,
) *ResearchPipeline {
	p := &ResearchPipeline{
		gen:         gen,
		planner:     NewPlanner(gen),
		coordinator: coordinator,
		reports:     reports,
		exporters:   make(map[domain.ExportFormat]driven.Exporter),
		defaults:    domain.DefaultAppSettings().Research,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline and returns the result with all emitted events.
func (p *ResearchPipeline) Run(
	ctx context.Context, req domain.ResearchRequest,
) (*domain.ResearchResult, []domain.Event, error) {
	var events []domain.Event
	result, err := p.execute(ctx, req, func(e domain.Event) {
		events = append(events, e)
	})
	return result, events, err
}

// Stream executes the pipeline in a goroutine. Events are delivered in order
// and the channel is closed after the terminal event. Callers must drain the
// channel or cancel ctx.
func (p *ResearchPipeline) Stream(ctx context.Context, req domain.ResearchRequest) <-chan domain.Event {
	ch := make(chan domain.Event, streamBuffer)
	go func() {
		defer close(ch)
		_, _ = p.execute(ctx, req, func(e domain.Event) { //nolint:errcheck // surfaced as an error event
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}

// params merges req over the pipeline defaults and clamps the result.
func (p *ResearchPipeline) params(req domain.ResearchRequest) domain.ResearchSettings {
	s := p.defaults
	if req.MaxResults != 0 {
		s.MaxResults = req.MaxResults
	}
	if req.TotalWords != 0 {
		s.TotalWords = req.TotalWords
	}
	if req.Timeout != 0 {
		s.Timeout = req.Timeout
	}
	if req.Concurrency != 0 {
		s.Concurrency = req.Concurrency
	}
	if req.RAGTopK != 0 {
		s.RAGTopK = req.RAGTopK
	}
	if req.Language != "" {
		s.Language = req.Language
	}
	if req.ReportType != "" {
		s.ReportType = req.ReportType
	}
	if req.CitationStyle != "" {
		s.CitationStyle = req.CitationStyle
	}
	if len(req.Formats) > 0 {
		s.Formats = req.Formats
	}
	if req.IncludeLocal != nil {
		s.IncludeLocal = *req.IncludeLocal
	}
	return s.Clamp()
}

// execute is the single state machine behind Run and Stream.
func (p *ResearchPipeline) execute(
	ctx context.Context, req domain.ResearchRequest, emit func(domain.Event),
) (*domain.ResearchResult, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		err := fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
		emit(domain.ErrorEvent(err.Error()))
		return nil, err
	}
	params := p.params(req)

	run := &domain.RunRecord{
		ID:        uuid.New().String(),
		Task:      task,
		Status:    domain.RunRunning,
		Provider:  p.provider,
		Model:     p.gen.ModelName(),
		StartedAt: p.now().UTC(),
	}
	p.record(ctx, run)

	fail := func(err error) (*domain.ResearchResult, error) {
		logger.Error("Research run %s failed: %v", run.ID, err)
		run.Status = domain.RunFailed
		run.Error = err.Error()
		run.FinishedAt = p.now().UTC()
		p.record(context.WithoutCancel(ctx), run)
		emit(domain.ErrorEvent(err.Error()))
		return nil, err
	}

	// Planning
	logger.Section("Planning")
	emit(domain.StatusEvent(domain.PhasePlanning, "Planning sub-questions"))
	plan, err := p.planner.Plan(ctx, task)
	if err != nil {
		return fail(err)
	}
	run.SubQuestions = len(plan.SubQuestions)
	logger.Info("Planned %d sub-questions", len(plan.SubQuestions))
	emit(domain.PhaseDoneEvent(domain.PhasePlanning, domain.PhasePayload{SubQuestions: plan.SubQuestions}))

	// Retrieving
	logger.Section("Retrieving")
	emit(domain.StatusEvent(domain.PhaseRetrieving, "Retrieving sources"))
	web, err := p.coordinator.Retrieve(ctx, plan.SubQuestions, RetrieveOptions{
		MaxResults:  params.MaxResults,
		Timeout:     params.Timeout,
		Concurrency: params.Concurrency,
		OnProgress: func(completed, total int) {
			emit(domain.ProgressEvent(domain.PhaseRetrieving, completed, total))
		},
	})
	if err != nil {
		return fail(fmt.Errorf("retrieve: %w", err))
	}
	local, err := p.localEvidence(ctx, task, params)
	if err != nil {
		return fail(err)
	}
	run.WebSources = len(web)
	run.LocalSources = len(local)
	merged := make([]domain.AggregatedSource, 0, len(web)+len(local))
	merged = append(merged, web...)
	merged = append(merged, local...)
	emit(domain.PhaseDoneEvent(domain.PhaseRetrieving, domain.PhasePayload{Sources: merged}))

	// Writing
	logger.Section("Writing")
	emit(domain.StatusEvent(domain.PhaseWriting, "Composing report"))
	cited := dedupeSources(merged)
	args := writeArgs(task, params.Language, params.ReportType, params.TotalWords, cited)
	body, err := p.gen.Generate(ctx,
		renderPrompt(p.prompts, driven.PromptWrite, fmt.Sprintf(DefaultWriteTemplate, args...), args...),
		driven.GenerateOptions{Temperature: 0.3})
	if err != nil {
		return fail(fmt.Errorf("%w: writing: %w", domain.ErrGeneration, err))
	}
	records := citations.DedupeAndEnrich(citations.FromAggregated(cited))
	text := ReportText(body, citations.FormatCitations(params.CitationStyle, records))

	id := ReportID(p.now(), task)
	path, err := p.reports.Save(ctx, id, domain.FormatMarkdown, []byte(text))
	if err != nil {
		return fail(fmt.Errorf("save report: %w", err))
	}
	outputs, exportErrs := p.export(ctx, id, []byte(text), params.Formats)
	outputs[string(domain.FormatMarkdown)] = path
	emit(domain.PhaseDoneEvent(domain.PhaseWriting, domain.PhasePayload{}))

	result := &domain.ResearchResult{
		ID:           id,
		Path:         path,
		WordsTarget:  params.TotalWords,
		MaxResults:   params.MaxResults,
		Provider:     p.provider,
		Model:        p.gen.ModelName(),
		SubQuestions: plan.SubQuestions,
		SourcesUsed:  len(web),
		LocalUsed:    len(local),
		Outputs:      outputs,
		ExportErrors: exportErrs,
		Saved:        true,
		Text:         text,
		Sources:      merged,
	}

	run.Status = domain.RunCompleted
	run.ReportID = id
	run.FinishedAt = p.now().UTC()
	p.record(ctx, run)
	logger.Info("Report %s written with %d web and %d local sources", id, len(web), len(local))

	emit(domain.CompletedEvent(result, domain.Preview(text)))
	return result, nil
}

// localEvidence maps vector matches for task into aggregated sources.
// A missing embedder disables local evidence; other failures are returned.
func (p *ResearchPipeline) localEvidence(
	ctx context.Context, task string, params domain.ResearchSettings,
) ([]domain.AggregatedSource, error) {
	if !params.IncludeLocal || p.index == nil {
		return nil, nil
	}
	matches, err := p.index.Search(ctx, task, params.RAGTopK)
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		logger.Warn("Local index skipped: %v", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local search: %w", err)
	}
	return LocalSources(matches), nil
}

// LocalSources converts vector matches into evidence. Items with a path are
// cited as file URLs; others as local chunk URLs.
func LocalSources(matches []domain.VectorMatch) []domain.AggregatedSource {
	out := make([]domain.AggregatedSource, len(matches))
	for i, m := range matches {
		src := domain.AggregatedSource{Content: m.Item.Text, Origin: domain.OriginLocal}
		if path := m.Item.Path(); path != "" {
			src.Title = path
			src.URL = "file://" + path
		} else {
			src.Title = fmt.Sprintf("Local chunk %d", i+1)
			src.URL = "local://chunk-" + m.Item.ID
		}
		out[i] = src
	}
	return out
}

// dedupeSources keeps the first source per normalised URL so that writer
// numbering and the reference list line up.
func dedupeSources(sources []domain.AggregatedSource) []domain.AggregatedSource {
	out := make([]domain.AggregatedSource, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		key := citations.NormalizeURL(s.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// export renders each requested secondary format. Failures are collected,
// never returned.
func (p *ResearchPipeline) export(
	ctx context.Context, id string, markdown []byte, formats []domain.ExportFormat,
) (map[string]string, map[string]string) {
	outputs := make(map[string]string)
	var errs map[string]string
	fail := func(f domain.ExportFormat, err error) {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[string(f)] = err.Error()
		logger.Warn("Export %s failed: %v", f, err)
	}

	for _, f := range formats {
		if f == domain.FormatMarkdown {
			continue
		}
		if _, done := outputs[string(f)]; done {
			continue
		}
		exp, ok := p.exporters[f]
		if !ok {
			fail(f, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, f))
			continue
		}
		data, err := exp.Export(ctx, markdown)
		if err != nil {
			fail(f, err)
			continue
		}
		path, err := p.reports.Save(ctx, id, f, data)
		if err != nil {
			fail(f, err)
			continue
		}
		outputs[string(f)] = path
	}
	return outputs, errs
}

// record saves run state when a run store is configured. Once a run has
// finished, older history beyond RunRetention is pruned.
func (p *ResearchPipeline) record(ctx context.Context, run *domain.RunRecord) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("Failed to record run %s: %v", run.ID, err)
		return
	}
	if run.Status == domain.RunRunning {
		return
	}
	if err := p.runs.PruneRuns(ctx, RunRetention); err != nil {
		logger.Warn("Failed to prune run history: %v", err)
	}
}
