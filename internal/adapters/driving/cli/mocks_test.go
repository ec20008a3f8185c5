package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
)

type mockResearchService struct {
	result *domain.ResearchResult
	events []domain.Event
	err    error
	req    domain.ResearchRequest
}

func (m *mockResearchService) Run(
	_ context.Context,
	req domain.ResearchRequest,
) (*domain.ResearchResult, []domain.Event, error) {
	m.req = req
	return m.result, m.events, m.err
}

func (m *mockResearchService) Stream(_ context.Context, req domain.ResearchRequest) <-chan domain.Event {
	m.req = req
	ch := make(chan domain.Event, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch
}

type mockIndexService struct {
	matches []domain.VectorMatch
	stats   domain.IndexStats
	err     error
	query   string
	topK    int
}

func (m *mockIndexService) AddDocuments(_ context.Context, docs []domain.IndexDocument) (int, error) {
	return len(docs), m.err
}

func (m *mockIndexService) Search(_ context.Context, query string, topK int) ([]domain.VectorMatch, error) {
	m.query, m.topK = query, topK
	return m.matches, m.err
}

func (m *mockIndexService) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}

type mockIngestService struct {
	result *domain.IngestResult
	err    error
	dirs   []string
	files  []string
}

func (m *mockIngestService) IngestDir(_ context.Context, dir string) (*domain.IngestResult, error) {
	m.dirs = append(m.dirs, dir)
	return m.result, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, path string) (*domain.IngestResult, error) {
	m.files = append(m.files, path)
	return m.result, m.err
}

type mockHistoryService struct {
	reports []domain.ReportInfo
	report  *domain.Report
	runs    []domain.RunRecord
	err     error
	limit   int
}

func (m *mockHistoryService) ListReports(_ context.Context) ([]domain.ReportInfo, error) {
	return m.reports, m.err
}

func (m *mockHistoryService) GetReport(_ context.Context, _ string) (*domain.Report, error) {
	return m.report, m.err
}

func (m *mockHistoryService) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.limit = limit
	return m.runs, m.err
}

type mockRuntime struct {
	research  *mockResearchService
	index     *mockIndexService
	ingest    *mockIngestService
	history   *mockHistoryService
	indexErr  error
	ephemeral bool
}

func (m *mockRuntime) Research(_ context.Context, ephemeral bool) (driving.ResearchService, error) {
	m.ephemeral = ephemeral
	return m.research, nil
}

func (m *mockRuntime) Index(_ context.Context) (driving.IndexService, driving.IngestService, error) {
	if m.indexErr != nil {
		return nil, nil, m.indexErr
	}
	return m.index, m.ingest, nil
}

func (m *mockRuntime) History(_ context.Context) (driving.HistoryService, error) {
	return m.history, nil
}

type mockSettingsService struct {
	settings    domain.AppSettings
	sets        map[string]string
	setErr      error
	validateErr error
	providers   []domain.AIProvider
	sources     []driving.SourceStatus
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets[key] = value
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) EnabledProviders() []domain.AIProvider {
	return m.providers
}

func (m *mockSettingsService) Sources() []driving.SourceStatus {
	return m.sources
}

func (m *mockSettingsService) ConfigPath() string {
	return "/home/test/.deepone/config.toml"
}

// testEnv holds the mocks installed by setupTestServices.
type testEnv struct {
	runtime  *mockRuntime
	settings *mockSettingsService
}

// setupTestServices installs mock services and restores the previous ones
// when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	prevSettings, prevBackend := settingsService, backend

	settings := domain.DefaultAppSettings()
	settings.Storage.Dir = "/home/test/.deepone"
	env := &testEnv{
		runtime: &mockRuntime{
			research: &mockResearchService{},
			index:    &mockIndexService{},
			ingest:   &mockIngestService{result: &domain.IngestResult{}},
			history:  &mockHistoryService{},
		},
		settings: &mockSettingsService{
			settings: settings,
			sets:     make(map[string]string),
		},
	}
	SetServices(env.settings, env.runtime)

	t.Cleanup(func() {
		settingsService, backend = prevSettings, prevBackend
	})
	return env
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag below cmd to its default so that tests
// sharing the package-level commands do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
