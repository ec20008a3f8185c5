package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

var pipelineTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestPipeline(gen *mockTextGenerator, reports *mockReportStore, sources []*mockSearchSource, opts ...PipelineOption) *ResearchPipeline {
	opts = append([]PipelineOption{WithClock(func() time.Time { return pipelineTime })}, opts...)
	return NewResearchPipeline(gen, newCoordinator(sources...), reports, opts...)
}

func eventKinds(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Type) + ":" + string(e.Phase)
	}
	return out
}

func noLocal() *bool {
	f := false
	return &f
}

func TestResearch_FailingThenSucceedingSource(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).
		Return(`{"subQuestions":["alpha","beta","gamma"],"notes":""}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body citing [1].", nil)

	failing := failingSource("langsearch")
	good := &mockSearchSource{name: "tavily", respond: func(q string) ([]domain.SearchResult, error) {
		return resultsFor("tavily.example", q, 5), nil
	}}
	reports := newMockReportStore()

	result, events, err := newTestPipeline(gen, reports, []*mockSearchSource{failing, good}).
		Run(context.Background(), domain.ResearchRequest{Task: "Battery recycling", MaxResults: 5, IncludeLocal: noLocal()})

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, result.SubQuestions)
	assert.LessOrEqual(t, result.SourcesUsed, 15)
	assert.Equal(t, 15, result.SourcesUsed)
	for _, s := range result.Sources {
		assert.Equal(t, "tavily", s.Origin)
	}
	assert.Equal(t, "2026-10-19T12-00-00-000Z-battery-recycling", result.ID)
	assert.True(t, result.Saved)
	assert.Equal(t, "mem://"+result.ID+".md", result.Outputs["md"])
	assert.Equal(t, "mock-model", result.Model)

	assert.Equal(t, []string{
		"status:planning",
		"phase:planning",
		"status:executing",
		"progress:executing",
		"progress:executing",
		"progress:executing",
		"phase:executing",
		"status:writing",
		"phase:writing",
		"completed:",
	}, eventKinds(events))

	last := events[len(events)-1]
	assert.Equal(t, 15, last.Sources)
	assert.Equal(t, 1200, last.WordsTarget)
	assert.LessOrEqual(t, len([]rune(last.Preview)), domain.PreviewLength)

	saved := reports.content(domain.FormatMarkdown)
	assert.True(t, strings.HasPrefix(saved, "Body citing [1].\n\nReferences\n[1] tavily.example. (n.d.). "))
	gen.AssertExpectations(t)
}

func TestResearch_MalformedPlanUsesLines(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).
		Return("  first question \nsecond question\n   third question  ", nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)

	src := &mockSearchSource{name: "tavily", respond: func(q string) ([]domain.SearchResult, error) {
		return resultsFor("t.example", q, 1), nil
	}}

	result, events, err := newTestPipeline(gen, newMockReportStore(), []*mockSearchSource{src}).
		Run(context.Background(), domain.ResearchRequest{Task: "t", IncludeLocal: noLocal()})

	require.NoError(t, err)
	assert.Equal(t, []string{"first question", "second question", "third question"}, result.SubQuestions)
	require.NotNil(t, events[1].Payload)
	assert.Equal(t, result.SubQuestions, events[1].Payload.SubQuestions)
}

func TestResearch_AllSourcesFailStillCompletes(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a","b"]}`, nil)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Writer") && strings.Contains(p, "(no sources)")
	}), mock.Anything).Return("Nothing found.", nil)

	reports := newMockReportStore()
	result, events, err := newTestPipeline(gen, reports,
		[]*mockSearchSource{failingSource("langsearch"), failingSource("tavily"), {name: "duckduckgo"}}).
		Run(context.Background(), domain.ResearchRequest{Task: "obscure", IncludeLocal: noLocal()})

	require.NoError(t, err)
	assert.Zero(t, result.SourcesUsed)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventCompleted, last.Type)
	assert.Zero(t, last.Sources)
	assert.Equal(t, "Nothing found.\n\nReferences\n(No references)", reports.content(domain.FormatMarkdown))
	gen.AssertExpectations(t)
}

func TestResearch_PlanningFailure(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return("", errors.New("401 unauthorized"))
	runs := newMockRunStore()
	src := &mockSearchSource{name: "a"}

	result, events, err := newTestPipeline(gen, newMockReportStore(), []*mockSearchSource{src}, WithRunStore(runs)).
		Run(context.Background(), domain.ResearchRequest{Task: "t"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Equal(t, []string{"status:planning", "error:"}, eventKinds(events))
	assert.Contains(t, events[1].Message, "401 unauthorized")
	assert.Zero(t, src.callCount())

	run := runs.only()
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "401")
	assert.False(t, run.FinishedAt.IsZero())
	assert.Equal(t, []int{RunRetention}, runs.pruneCalls(), "failed runs prune history once")
}

func TestResearch_WritingFailure(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a"]}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("", errors.New("context length"))
	reports := newMockReportStore()

	_, events, err := newTestPipeline(gen, reports, []*mockSearchSource{{name: "a"}}).
		Run(context.Background(), domain.ResearchRequest{Task: "t", IncludeLocal: noLocal()})

	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Equal(t, "error:", eventKinds(events)[len(events)-1])
	assert.Equal(t, "status:writing", eventKinds(events)[len(events)-2])
	assert.Empty(t, reports.content(domain.FormatMarkdown))
}

func TestResearch_StreamMatchesRun(t *testing.T) {
	newGen := func() *mockTextGenerator {
		gen := &mockTextGenerator{}
		gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a","b"]}`, nil)
		gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)
		return gen
	}
	src := func() *mockSearchSource {
		return &mockSearchSource{name: "s", respond: func(q string) ([]domain.SearchResult, error) {
			return resultsFor("s.example", q, 2), nil
		}}
	}
	req := domain.ResearchRequest{Task: "same", IncludeLocal: noLocal()}

	_, runEvents, err := newTestPipeline(newGen(), newMockReportStore(), []*mockSearchSource{src()}).
		Run(context.Background(), req)
	require.NoError(t, err)

	var streamed []domain.Event
	for e := range newTestPipeline(newGen(), newMockReportStore(), []*mockSearchSource{src()}).
		Stream(context.Background(), req) {
		streamed = append(streamed, e)
	}

	assert.Equal(t, eventKinds(runEvents), eventKinds(streamed))
	require.NotEmpty(t, streamed)
	assert.True(t, streamed[len(streamed)-1].IsTerminal())
	require.NotNil(t, streamed[len(streamed)-1].Result)
}

func TestResearch_LocalEvidence(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a"]}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)

	index := NewVectorIndexService(&mockVectorStore{}, &mockEmbeddingService{})
	_, err := index.AddDocuments(context.Background(), []domain.IndexDocument{
		{ID: "abc-0", Text: "notes", Meta: map[string]any{"path": "/docs/notes.md", "chunk": 0}},
		{ID: "def-0", Text: "loose chunk"},
	})
	require.NoError(t, err)

	web := &mockSearchSource{name: "w", results: []domain.SearchResult{{Title: "Web", URL: "https://w.example/"}}}
	result, _, err := newTestPipeline(gen, newMockReportStore(), []*mockSearchSource{web}, WithLocalIndex(index)).
		Run(context.Background(), domain.ResearchRequest{Task: "t", RAGTopK: 5})

	require.NoError(t, err)
	assert.Equal(t, 1, result.SourcesUsed)
	assert.Equal(t, 2, result.LocalUsed)
	require.Len(t, result.Sources, 3)
	assert.Equal(t, "https://w.example/", result.Sources[0].URL, "web evidence comes first")

	urls := []string{result.Sources[1].URL, result.Sources[2].URL}
	assert.Contains(t, urls, "file:///docs/notes.md")
	assert.Contains(t, urls, "local://chunk-def-0")
}

func TestResearch_LocalSkippedWithoutEmbedder(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a"]}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)

	store := &mockVectorStore{doc: &domain.VectorDocument{Items: []domain.VectorItem{{ID: "x", Text: "t", Embedding: []float32{1}}}}}
	index := NewVectorIndexService(store, nil)

	result, _, err := newTestPipeline(gen, newMockReportStore(), []*mockSearchSource{{name: "a"}}, WithLocalIndex(index)).
		Run(context.Background(), domain.ResearchRequest{Task: "t"})

	require.NoError(t, err)
	assert.Zero(t, result.LocalUsed)
}

func TestResearch_ExportFailuresAreCaptured(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a"]}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)
	reports := newMockReportStore()
	runs := newMockRunStore()

	result, _, err := newTestPipeline(gen, reports, []*mockSearchSource{{name: "a"}},
		WithRunStore(runs),
		WithExporters(
			&mockExporter{format: domain.FormatHTML},
			&mockExporter{format: domain.FormatText, err: errors.New("render failed")},
		)).
		Run(context.Background(), domain.ResearchRequest{
			Task:         "t",
			IncludeLocal: noLocal(),
			Formats:      []domain.ExportFormat{domain.FormatMarkdown, domain.FormatHTML, domain.FormatText, domain.FormatPDF},
		})

	require.NoError(t, err)
	assert.Contains(t, result.Outputs, "md")
	assert.Contains(t, result.Outputs, "html")
	assert.NotContains(t, result.Outputs, "txt")
	assert.NotContains(t, result.Outputs, "pdf")
	assert.Contains(t, result.ExportErrors["pdf"], "unsupported format")
	assert.Contains(t, result.ExportErrors["txt"], "render failed")
	assert.True(t, strings.HasPrefix(reports.content(domain.FormatHTML), "exported:Body"))

	run := runs.only()
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, result.ID, run.ReportID)
	assert.Equal(t, 1, run.SubQuestions)
	assert.Equal(t, []int{RunRetention}, runs.pruneCalls(), "only the finished record prunes")
}

func TestResearch_SaveFailure(t *testing.T) {
	gen := &mockTextGenerator{}
	gen.On("Generate", mock.Anything, planPrompt, mock.Anything).Return(`{"subQuestions":["a"]}`, nil)
	gen.On("Generate", mock.Anything, writePrompt, mock.Anything).Return("Body", nil)
	reports := newMockReportStore()
	reports.saveErr = errors.New("disk full")

	_, events, err := newTestPipeline(gen, reports, []*mockSearchSource{{name: "a"}}).
		Run(context.Background(), domain.ResearchRequest{Task: "t", IncludeLocal: noLocal()})

	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, domain.EventError, events[len(events)-1].Type)
}

func TestResearch_EmptyTask(t *testing.T) {
	gen := &mockTextGenerator{}

	_, events, err := newTestPipeline(gen, newMockReportStore(), nil).
		Run(context.Background(), domain.ResearchRequest{Task: "   "})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, []string{"error:"}, eventKinds(events))
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestResearch_ParamsClamp(t *testing.T) {
	p := NewResearchPipeline(&mockTextGenerator{}, nil, nil)

	got := p.params(domain.ResearchRequest{MaxResults: 99, TotalWords: 10, Timeout: time.Millisecond, CitationStyle: "bogus"})

	assert.Equal(t, domain.MaxResultsLimit, got.MaxResults)
	assert.Equal(t, domain.MinTotalWords, got.TotalWords)
	assert.Equal(t, domain.MinTimeout, got.Timeout)
	assert.Equal(t, domain.CitationAPA, got.CitationStyle)
	assert.True(t, got.IncludeLocal)
}

func TestLocalSources(t *testing.T) {
	got := LocalSources([]domain.VectorMatch{
		{Item: domain.VectorItem{ID: "a-1", Text: "x", Meta: map[string]any{"path": "notes/a.md"}}},
		{Item: domain.VectorItem{ID: "b-2", Text: "y"}},
	})

	assert.Equal(t, domain.AggregatedSource{Title: "notes/a.md", URL: "file://notes/a.md", Content: "x", Origin: "local"}, got[0])
	assert.Equal(t, domain.AggregatedSource{Title: "Local chunk 2", URL: "local://chunk-b-2", Content: "y", Origin: "local"}, got[1])
}
