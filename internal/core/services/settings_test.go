package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/deepone/internal/core/domain"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	return NewSettingsService(store, nil).WithEnv(envMap(env)), store
}

type stubValidator struct {
	llmErr     error
	embedErr   error
	calls      int
	embedCalls int
}

func (v *stubValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	v.embedCalls++
	return v.embedErr
}

func (v *stubValidator) ValidateLLM(_ *domain.LLMSettings) error {
	v.calls++
	return v.llmErr
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newSettings(nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Research, settings.Research)
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.LLM.Model, settings.LLM.Model)
	assert.Equal(t, defaults.Embedding.Model, settings.Embedding.Model)
	assert.Equal(t, defaults.SourceOrder, settings.SourceOrder)
	assert.Equal(t, 3.0, settings.Sources[domain.SourceTavily].Rate)
	assert.Equal(t, 2, settings.Sources[domain.SourceBing].Burst)
	assert.NotEmpty(t, settings.Storage.Dir)
}

func TestSettingsService_Get_ConfigFileValues(t *testing.T) {
	service, store := newSettings(nil)
	require.NoError(t, store.Set("research.max_results", 8))
	require.NoError(t, store.Set("research.timeout_ms", 30000))
	require.NoError(t, store.Set("research.include_local", false))
	require.NoError(t, store.Set("research.citation_style", "mla"))
	require.NoError(t, store.Set("research.formats", []any{"md", "HTML"}))
	require.NoError(t, store.Set("llm.provider", "groq"))
	require.NoError(t, store.Set("llm.api_key", "file-key"))
	require.NoError(t, store.Set("sources.order", []string{"tavily", "duckduckgo"}))
	require.NoError(t, store.Set("sources.tavily.rate", 0.5))
	require.NoError(t, store.Set("sources.tavily.burst", int64(1)))
	require.NoError(t, store.Set("storage.dir", "/var/lib/deepone"))

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, 8, settings.Research.MaxResults)
	assert.Equal(t, 30*time.Second, settings.Research.Timeout)
	assert.False(t, settings.Research.IncludeLocal)
	assert.Equal(t, domain.CitationMLA, settings.Research.CitationStyle)
	assert.Equal(t, []domain.ExportFormat{domain.FormatMarkdown, domain.FormatHTML}, settings.Research.Formats)
	assert.Equal(t, domain.AIProviderGroq, settings.LLM.Provider)
	assert.Equal(t, "llama-3.1-70b-versatile", settings.LLM.Model, "provider default model")
	assert.Equal(t, "file-key", settings.LLM.APIKey)
	assert.Equal(t, []string{"tavily", "duckduckgo"}, settings.SourceOrder)
	assert.Equal(t, domain.SourceSettings{Rate: 0.5, Burst: 1}, settings.Sources[domain.SourceTavily])
	assert.Equal(t, "/var/lib/deepone", settings.Storage.Dir)
}

func TestSettingsService_Get_EnvOverridesFile(t *testing.T) {
	service, store := newSettings(map[string]string{
		"MAX_SEARCH_RESULTS_PER_QUERY": "12",
		"TOTAL_WORDS":                  "800",
		"REQUEST_TIMEOUT":              "60000",
		"DEEP_RESEARCH_CONCURRENCY":    "2",
		"EMBEDDING_MODEL":              "text-embedding-3-large",
		"OPENAI_API_KEY":               "env-key",
		"TAVILY_API_KEY":               "tv",
		"GOOGLE_API_KEY":               "g",
		"GOOGLE_CX_KEY":                "cx",
	})
	require.NoError(t, store.Set("research.max_results", 3))
	require.NoError(t, store.Set("llm.api_key", "file-key"))
	require.NoError(t, store.Set("sources.tavily.api_key", "file-tv"))

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, 12, settings.Research.MaxResults)
	assert.Equal(t, 800, settings.Research.TotalWords)
	assert.Equal(t, time.Minute, settings.Research.Timeout)
	assert.Equal(t, 2, settings.Research.Concurrency)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, "env-key", settings.LLM.APIKey)
	assert.Equal(t, "env-key", settings.Embedding.APIKey)
	assert.Equal(t, "tv", settings.Sources[domain.SourceTavily].APIKey)
	assert.Equal(t, "g", settings.Sources[domain.SourceGoogleCSE].APIKey)
	assert.Equal(t, "cx", settings.Sources[domain.SourceGoogleCSE].EngineID)
}

func TestSettingsService_Get_ClampsValues(t *testing.T) {
	service, _ := newSettings(map[string]string{
		"MAX_SEARCH_RESULTS_PER_QUERY": "50",
		"TOTAL_WORDS":                  "10",
		"REQUEST_TIMEOUT":              "500",
		"DEEP_RESEARCH_CONCURRENCY":    "not-a-number",
	})

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.MaxResultsLimit, settings.Research.MaxResults)
	assert.Equal(t, domain.MinTotalWords, settings.Research.TotalWords)
	assert.Equal(t, domain.MinTimeout, settings.Research.Timeout)
	assert.Equal(t, domain.DefaultWorkers, settings.Research.Concurrency)
}

func TestSettingsService_Get_InvalidProviderFallsBack(t *testing.T) {
	service, store := newSettings(nil)
	require.NoError(t, store.Set("llm.provider", "skynet"))

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
	}{
		{"research.max_results", "7", 7},
		{"research.include_local", "false", false},
		{"research.citation_style", "mla", "MLA"},
		{"research.formats", "md, html", []string{"md", "html"}},
		{"research.language", "german", "german"},
		{"llm.provider", "Anthropic", "anthropic"},
		{"embedding.provider", "ollama", "ollama"},
		{"sources.order", "tavily,bing", []string{"tavily", "bing"}},
		{"sources.bing.api_key", "k", "k"},
		{"sources.google_cse.engine_id", "cx", "cx"},
		{"sources.tavily.rate", "1.5", 1.5},
		{"sources.tavily.burst", "3", 3},
		{"storage.dir", "/tmp/x", "/tmp/x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			service, store := newSettings(nil)

			require.NoError(t, service.Set(tt.key, tt.value))

			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsService_Set_Invalid(t *testing.T) {
	tests := []struct{ key, value string }{
		{"research.max_results", "many"},
		{"research.total_words", "-1"},
		{"research.include_local", "maybe"},
		{"research.citation_style", "chicago"},
		{"research.formats", "md,epub"},
		{"llm.provider", "skynet"},
		{"embedding.provider", "anthropic"},
		{"sources.order", "tavily,altavista"},
		{"sources.altavista.api_key", "k"},
		{"sources.tavily.rate", "0"},
		{"sources.tavily.color", "blue"},
		{"unknown.key", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			service, _ := newSettings(nil)

			err := service.Set(tt.key, tt.value)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Set_RoundTrip(t *testing.T) {
	service, _ := newSettings(nil)
	require.NoError(t, service.Set("research.total_words", "2000"))
	require.NoError(t, service.Set("research.formats", "md,txt"))

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, 2000, settings.Research.TotalWords)
	assert.Equal(t, []domain.ExportFormat{domain.FormatMarkdown, domain.FormatText}, settings.Research.Formats)
}

func TestSettingsService_Validate(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		service, _ := newSettings(nil)

		err := service.Validate()

		assert.ErrorIs(t, err, domain.ErrMissingCredentials)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("local provider needs no key", func(t *testing.T) {
		service, store := newSettings(nil)
		require.NoError(t, store.Set("llm.provider", "ollama"))

		assert.NoError(t, service.Validate())
	})

	t.Run("validator is consulted", func(t *testing.T) {
		v := &stubValidator{llmErr: errors.New("unreachable")}
		service := NewSettingsService(memory.NewConfigStore(), v).
			WithEnv(envMap(map[string]string{"OPENAI_API_KEY": "k"}))

		err := service.Validate()

		assert.EqualError(t, err, "unreachable")
		assert.Equal(t, 1, v.calls)
		assert.Zero(t, v.embedCalls)
	})

	t.Run("configured embedding is checked", func(t *testing.T) {
		v := &stubValidator{embedErr: errors.New("connection refused")}
		store := memory.NewConfigStore()
		service := NewSettingsService(store, v).WithEnv(envMap(nil))
		require.NoError(t, store.Set("llm.provider", "ollama"))
		require.NoError(t, store.Set("embedding.provider", "ollama"))

		err := service.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding provider ollama")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 1, v.embedCalls)
	})

	t.Run("unconfigured embedding is not checked", func(t *testing.T) {
		v := &stubValidator{}
		store := memory.NewConfigStore()
		service := NewSettingsService(store, v).WithEnv(envMap(nil))
		require.NoError(t, store.Set("llm.provider", "ollama"))

		assert.NoError(t, service.Validate())
		assert.Zero(t, v.embedCalls, "openai embeddings without a key are skipped")
	})
}

func TestSettingsService_EnabledProviders(t *testing.T) {
	service, store := newSettings(map[string]string{
		"OPENAI_API_KEY": "o",
		"GROQ_API_KEY":   "g",
	})
	require.NoError(t, store.Set("llm.provider", "deepseek"))
	require.NoError(t, store.Set("llm.api_key", "d"))

	got := service.EnabledProviders()

	assert.Equal(t, []domain.AIProvider{
		domain.AIProviderGroq,
		domain.AIProviderDeepSeek,
		domain.AIProviderOpenAI,
	}, got)
}

func TestSettingsService_Sources(t *testing.T) {
	service, _ := newSettings(map[string]string{
		"TAVILY_API_KEY": "t",
		"GOOGLE_API_KEY": "g",
	})

	got := service.Sources()

	require.Len(t, got, 5)
	names := make([]string, len(got))
	configured := make(map[string]bool)
	for i, s := range got {
		names[i] = s.Name
		configured[s.Name] = s.Configured
	}
	assert.Equal(t, domain.DefaultSourceOrder(), names)
	assert.True(t, configured[domain.SourceTavily])
	assert.True(t, configured[domain.SourceDuckDuckGo])
	assert.False(t, configured[domain.SourceGoogleCSE], "engine id missing")
	assert.False(t, configured[domain.SourceLangSearch])
	assert.Equal(t, 3.0, got[0].Rate)
	assert.Equal(t, 6, got[0].Burst)
}

func TestSettingsService_ConfigPath(t *testing.T) {
	service, store := newSettings(nil)

	assert.Equal(t, store.Path(), service.ConfigPath())
}
