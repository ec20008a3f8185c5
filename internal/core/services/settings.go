package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyMaxResults    = "research.max_results"
	keyTotalWords    = "research.total_words"
	keyTimeoutMS     = "research.timeout_ms"
	keyConcurrency   = "research.concurrency"
	keyIncludeLocal  = "research.include_local"
	keyRAGTopK       = "research.rag_top_k"
	keyLanguage      = "research.language"
	keyReportType    = "research.report_type"
	keyCitationStyle = "research.citation_style"
	keyFormats       = "research.formats"
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"
	keySourceOrder   = "sources.order"
	keyStorageDir    = "storage.dir"
)

// Environment variables read on top of the config file.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	envMaxResults     = "MAX_SEARCH_RESULTS_PER_QUERY"
	envTotalWords     = "TOTAL_WORDS"
	envTimeout        = "REQUEST_TIMEOUT"
	envConcurrency    = "DEEP_RESEARCH_CONCURRENCY"
	envEmbeddingModel = "EMBEDDING_MODEL"
	envGoogleCX       = "GOOGLE_CX_KEY"
)

// sourceKeyEnv maps each search source to the variable holding its key.
var sourceKeyEnv = map[string]string{
	domain.SourceLangSearch: "LANGSEARCH_API_KEY",
	domain.SourceTavily:     "TAVILY_API_KEY",
	domain.SourceGoogleCSE:  "GOOGLE_API_KEY",
	domain.SourceBing:       "BING_API_KEY",
}

// SettingsService resolves settings from the environment, the config file
// and built-in defaults, in that order of precedence. Command-line flags are
// applied on top by the caller.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// WithEnv replaces the environment lookup. Used by tests.
func (s *SettingsService) WithEnv(getenv func(string) string) *SettingsService {
	s.getenv = getenv
	return s
}

// Get resolves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	s.resolveResearch(&settings.Research)

	settings.LLM.Provider = s.getProvider(keyLLMProvider, settings.LLM.Provider)
	settings.LLM.Model = s.modelFor(keyLLMModel, "", settings.LLM.Provider, settings.LLM.Model, domain.DefaultLLMModels())
	settings.LLM.BaseURL = s.configStore.GetString(keyLLMBaseURL)
	settings.LLM.APIKey = s.apiKey(settings.LLM.Provider, keyLLMAPIKey)

	settings.Embedding.Provider = s.getProvider(keyEmbedProvider, settings.Embedding.Provider)
	settings.Embedding.Model = s.modelFor(keyEmbedModel, envEmbeddingModel,
		settings.Embedding.Provider, settings.Embedding.Model, domain.DefaultEmbeddingModels())
	settings.Embedding.BaseURL = s.configStore.GetString(keyEmbedBaseURL)
	settings.Embedding.APIKey = s.apiKey(settings.Embedding.Provider, keyEmbedAPIKey)

	if order := s.configStore.GetStringSlice(keySourceOrder); len(order) > 0 {
		settings.SourceOrder = order
	}
	for name, src := range settings.Sources {
		settings.Sources[name] = s.resolveSource(name, src)
	}

	settings.Storage.Dir = s.configStore.GetString(keyStorageDir)
	if settings.Storage.Dir == "" {
		settings.Storage.Dir = filepath.Dir(s.configStore.Path())
	}

	return &settings, nil
}

func (s *SettingsService) resolveResearch(r *domain.ResearchSettings) {
	r.MaxResults = s.getInt(keyMaxResults, envMaxResults, r.MaxResults)
	r.TotalWords = s.getInt(keyTotalWords, envTotalWords, r.TotalWords)
	if ms := s.getInt(keyTimeoutMS, envTimeout, 0); ms > 0 {
		r.Timeout = time.Duration(ms) * time.Millisecond
	}
	r.Concurrency = s.getInt(keyConcurrency, envConcurrency, r.Concurrency)
	r.IncludeLocal = s.getBool(keyIncludeLocal, r.IncludeLocal)
	r.RAGTopK = s.getInt(keyRAGTopK, "", r.RAGTopK)
	r.Language = s.getString(keyLanguage, r.Language)
	r.ReportType = s.getString(keyReportType, r.ReportType)
	if style := s.configStore.GetString(keyCitationStyle); style != "" {
		r.CitationStyle = domain.ParseCitationStyle(style)
	}
	if formats := s.configStore.GetStringSlice(keyFormats); len(formats) > 0 {
		r.Formats = make([]domain.ExportFormat, len(formats))
		for i, f := range formats {
			r.Formats[i] = domain.ExportFormat(strings.ToLower(f))
		}
	}
	*r = r.Clamp()
}

func (s *SettingsService) resolveSource(name string, src domain.SourceSettings) domain.SourceSettings {
	prefix := "sources." + name + "."
	src.APIKey = s.getString(prefix+"api_key", "")
	if env := sourceKeyEnv[name]; env != "" {
		if v := s.getenv(env); v != "" {
			src.APIKey = v
		}
	}
	if name == domain.SourceGoogleCSE {
		src.EngineID = s.getString(prefix+"engine_id", "")
		if v := s.getenv(envGoogleCX); v != "" {
			src.EngineID = v
		}
	}
	if v, ok := s.configStore.Get(prefix + "rate"); ok {
		if rate, ok := toFloat(v); ok && rate > 0 {
			src.Rate = rate
		}
	}
	if burst := s.configStore.GetInt(prefix + "burst"); burst > 0 {
		src.Burst = burst
	}
	return src
}

// Set validates and stores a single config key.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	parsed, err := parseSetting(key, value)
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	logger.Debug("Set %s", key)
	return nil
}

// parseSetting converts value to the type stored for key.
func parseSetting(key, value string) (any, error) {
	invalid := func(reason string) error {
		return fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, key, reason)
	}

	switch key {
	case keyMaxResults, keyTotalWords, keyTimeoutMS, keyConcurrency, keyRAGTopK:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return nil, invalid("expected a positive integer")
		}
		return n, nil
	case keyIncludeLocal:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, invalid("expected true or false")
		}
		return b, nil
	case keyCitationStyle:
		style := domain.CitationStyle(strings.ToUpper(value))
		if !style.IsValid() {
			return nil, invalid("expected APA or MLA")
		}
		return string(style), nil
	case keyFormats:
		formats := splitList(value)
		for _, f := range formats {
			switch domain.ExportFormat(strings.ToLower(f)) {
			case domain.FormatMarkdown, domain.FormatHTML, domain.FormatText, domain.FormatPDF, domain.FormatDOCX:
			default:
				return nil, invalid("unknown format " + f)
			}
		}
		return formats, nil
	case keyLLMProvider, keyEmbedProvider:
		p := domain.AIProvider(strings.ToLower(value))
		if !p.IsValid() {
			return nil, invalid("unknown provider " + value)
		}
		if key == keyEmbedProvider && p != domain.AIProviderOpenAI && p != domain.AIProviderOllama {
			return nil, invalid("provider " + value + " does not support embeddings")
		}
		return string(p), nil
	case keySourceOrder:
		order := splitList(value)
		known := domain.DefaultSourceSettings()
		for _, name := range order {
			if _, ok := known[name]; !ok {
				return nil, invalid("unknown source " + name)
			}
		}
		return order, nil
	case keyLanguage, keyReportType, keyLLMModel, keyLLMBaseURL, keyLLMAPIKey,
		keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, keyStorageDir:
		return value, nil
	}

	if rest, ok := strings.CutPrefix(key, "sources."); ok {
		name, field, _ := strings.Cut(rest, ".")
		if _, known := domain.DefaultSourceSettings()[name]; !known {
			return nil, invalid("unknown source " + name)
		}
		switch field {
		case "api_key", "engine_id":
			return value, nil
		case "rate":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f <= 0 {
				return nil, invalid("expected a positive number")
			}
			return f, nil
		case "burst":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, invalid("expected a positive integer")
			}
			return n, nil
		}
	}
	return nil, invalid("unknown key")
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Validate checks that the configured text generator has credentials and,
// when a validator is set, that it responds. A configured embedding
// provider is checked the same way.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidInput, settings.LLM.Provider)
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %s needs %s or %s",
			domain.ErrMissingCredentials, settings.LLM.Provider, settings.LLM.Provider.APIKeyEnv(), keyLLMAPIKey)
	}
	if s.aiValidator == nil {
		return nil
	}
	if err := s.aiValidator.ValidateLLM(&settings.LLM); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return nil
	}
	if err := s.aiValidator.ValidateEmbedding(&settings.Embedding); err != nil {
		return fmt.Errorf("embedding provider %s: %w", settings.Embedding.Provider, err)
	}
	return nil
}

// EnabledProviders returns LLM providers that have credentials, in priority order.
func (s *SettingsService) EnabledProviders() []domain.AIProvider {
	configured := domain.AIProvider(s.configStore.GetString(keyLLMProvider))
	var out []domain.AIProvider
	for _, p := range domain.LLMProviderPriority() {
		if s.getenv(p.APIKeyEnv()) != "" || (p == configured && s.configStore.GetString(keyLLMAPIKey) != "") {
			out = append(out, p)
		}
	}
	return out
}

// Sources reports the configured search sources in fallback order.
func (s *SettingsService) Sources() []driving.SourceStatus {
	settings, err := s.Get()
	if err != nil {
		return nil
	}
	out := make([]driving.SourceStatus, 0, len(settings.SourceOrder))
	for _, name := range settings.SourceOrder {
		src, ok := settings.Sources[name]
		if !ok {
			continue
		}
		out = append(out, driving.SourceStatus{
			Name:       name,
			Configured: SourceConfigured(name, src),
			Rate:       src.Rate,
			Burst:      src.Burst,
		})
	}
	return out
}

// SourceConfigured reports whether a source has the credentials it needs.
func SourceConfigured(name string, src domain.SourceSettings) bool {
	switch name {
	case domain.SourceDuckDuckGo:
		return true
	case domain.SourceGoogleCSE:
		return src.APIKey != "" && src.EngineID != ""
	default:
		return src.APIKey != ""
	}
}

// ConfigPath returns the configuration file path.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getInt prefers env over the config file. Unparseable env values are
// ignored with a warning.
func (s *SettingsService) getInt(key, env string, defaultVal int) int {
	if env != "" {
		if raw := s.getenv(env); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err == nil {
				return n
			}
			logger.Warn("Ignoring %s=%q: not an integer", env, raw)
		}
	}
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		logger.Warn("Ignoring unknown provider %q in %s", val, key)
		return defaultVal
	}
	return provider
}

// modelFor resolves a model name: env, then config, then the provider's
// default when the provider was changed, then defaultVal.
func (s *SettingsService) modelFor(
	key, env string, provider domain.AIProvider, defaultVal string, defaults map[domain.AIProvider]string,
) string {
	if env != "" {
		if v := s.getenv(env); v != "" {
			return v
		}
	}
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	if m, ok := defaults[provider]; ok {
		return m
	}
	return defaultVal
}

// apiKey prefers the provider's environment variable over the config file.
func (s *SettingsService) apiKey(provider domain.AIProvider, key string) string {
	if env := provider.APIKeyEnv(); env != "" {
		if v := s.getenv(env); v != "" {
			return v
		}
	}
	return s.configStore.GetString(key)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
