package domain

import (
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or text generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// OpenAI-compatible cloud APIs reached through the OpenAI adapter.
	AIProviderGoogle     AIProvider = "google"
	AIProviderGroq       AIProvider = "groq"
	AIProviderMistral    AIProvider = "mistral"
	AIProviderPerplexity AIProvider = "perplexity"
	AIProviderDeepSeek   AIProvider = "deepseek"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic,
		AIProviderGoogle, AIProviderGroq, AIProviderMistral,
		AIProviderPerplexity, AIProviderDeepSeek:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p.IsValid() && p != AIProviderOllama
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// IsOpenAICompatible returns true if the provider speaks the OpenAI chat API.
func (p AIProvider) IsOpenAICompatible() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGoogle, AIProviderGroq, AIProviderMistral,
		AIProviderPerplexity, AIProviderDeepSeek:
		return true
	default:
		return false
	}
}

// APIKeyEnv returns the environment variable holding the provider's key.
func (p AIProvider) APIKeyEnv() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case AIProviderGoogle:
		return "GOOGLE_GENERATIVE_AI_API_KEY"
	case AIProviderGroq:
		return "GROQ_API_KEY"
	case AIProviderMistral:
		return "MISTRAL_API_KEY"
	case AIProviderPerplexity:
		return "PPLX_API_KEY"
	case AIProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return ""
	}
}

// DefaultBaseURL returns the API root for OpenAI-compatible presets.
// Empty means the adapter's own default.
func (p AIProvider) DefaultBaseURL() string {
	switch p {
	case AIProviderGoogle:
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	case AIProviderGroq:
		return "https://api.groq.com/openai/v1"
	case AIProviderMistral:
		return "https://api.mistral.ai/v1"
	case AIProviderPerplexity:
		return "https://api.perplexity.ai"
	case AIProviderDeepSeek:
		return "https://api.deepseek.com/v1"
	default:
		return ""
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGoogle:
		return "Google Gemini (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	case AIProviderMistral:
		return "Mistral (cloud)"
	case AIProviderPerplexity:
		return "Perplexity (cloud)"
	case AIProviderDeepSeek:
		return "DeepSeek (cloud)"
	default:
		return unknownDescription
	}
}

// LLMProviderPriority is the order in which configured providers are listed.
func LLMProviderPriority() []AIProvider {
	return []AIProvider{
		AIProviderGoogle,
		AIProviderGroq,
		AIProviderMistral,
		AIProviderPerplexity,
		AIProviderDeepSeek,
		AIProviderAnthropic,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support text generation.
func AllLLMProviders() []AIProvider {
	return append([]AIProvider{AIProviderOllama}, LLMProviderPriority()...)
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:     "llama3.2",
		AIProviderOpenAI:     "gpt-4o-mini",
		AIProviderAnthropic:  "claude-3-5-sonnet-latest",
		AIProviderGoogle:     "gemini-1.5-flash",
		AIProviderGroq:       "llama-3.1-70b-versatile",
		AIProviderMistral:    "mistral-large-latest",
		AIProviderPerplexity: "llama-3.1-sonar-large-128k-online",
		AIProviderDeepSeek:   "deepseek-chat",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds text generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// Research parameter bounds.
const (
	MinTotalWords     = 300
	MinTimeout        = 3 * time.Second
	DefaultTotalWords = 1200
	DefaultTimeout    = 120 * time.Second
	DefaultWorkers    = 4
	DefaultLanguage   = "english"
)

// ResearchSettings holds the default parameters of a research run.
type ResearchSettings struct {
	MaxResults    int
	TotalWords    int
	Timeout       time.Duration
	Concurrency   int
	IncludeLocal  bool
	RAGTopK       int
	Language      string
	ReportType    string
	CitationStyle CitationStyle
	Formats       []ExportFormat
}

// Clamp returns a copy with every parameter inside its allowed range.
func (r ResearchSettings) Clamp() ResearchSettings {
	if r.MaxResults == 0 {
		r.MaxResults = DefaultMaxResults
	}
	r.MaxResults = max(1, min(MaxResultsLimit, r.MaxResults))
	if r.TotalWords == 0 {
		r.TotalWords = DefaultTotalWords
	}
	r.TotalWords = max(MinTotalWords, r.TotalWords)
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	r.Timeout = max(MinTimeout, r.Timeout)
	r.Concurrency = max(1, r.Concurrency)
	if r.RAGTopK <= 0 {
		r.RAGTopK = DefaultTopK
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.ReportType == "" {
		r.ReportType = DefaultReportType
	}
	if !r.CitationStyle.IsValid() {
		r.CitationStyle = CitationAPA
	}
	return r
}

// Search source names in default fallback priority.
const (
	SourceLangSearch = "langsearch"
	SourceTavily     = "tavily"
	SourceGoogleCSE  = "google_cse"
	SourceBing       = "bing"
	SourceDuckDuckGo = "duckduckgo"
)

// DefaultSourceOrder returns the fallback priority of the built-in sources.
func DefaultSourceOrder() []string {
	return []string{SourceLangSearch, SourceTavily, SourceGoogleCSE, SourceBing, SourceDuckDuckGo}
}

// SourceSettings configures one external search source.
type SourceSettings struct {
	// APIKey authenticates requests. DuckDuckGo needs none.
	APIKey string

	// EngineID is the Google Programmable Search engine ID (cx).
	EngineID string

	// Rate is the sustained request rate in requests per second.
	Rate float64

	// Burst is the token bucket capacity.
	Burst int
}

// DefaultSourceSettings returns the built-in per-source rate limits.
func DefaultSourceSettings() map[string]SourceSettings {
	return map[string]SourceSettings{
		SourceLangSearch: {Rate: 3, Burst: 6},
		SourceTavily:     {Rate: 3, Burst: 6},
		SourceGoogleCSE:  {Rate: 1, Burst: 2},
		SourceBing:       {Rate: 1, Burst: 2},
		SourceDuckDuckGo: {Rate: 2, Burst: 4},
	}
}

// StorageSettings locates persisted state.
type StorageSettings struct {
	// Dir is the root for the index, reports and run history.
	Dir string
}

// IndexPath is the vector index document location.
func (s StorageSettings) IndexPath() string {
	return filepath.Join(s.Dir, "index.json")
}

// ReportsDir is where report artifacts are written.
func (s StorageSettings) ReportsDir() string {
	return filepath.Join(s.Dir, "reports")
}

// RunsPath is the run history database location.
func (s StorageSettings) RunsPath() string {
	return filepath.Join(s.Dir, "runs.db")
}

// PromptsDir holds the editable planning and writing prompts.
func (s StorageSettings) PromptsDir() string {
	return filepath.Join(s.Dir, "prompts")
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Research holds default run parameters.
	Research ResearchSettings

	// LLM holds text generation provider settings.
	LLM LLMSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// SourceOrder is the fallback priority of search sources.
	SourceOrder []string

	// Sources holds per-source credentials and limits keyed by name.
	Sources map[string]SourceSettings

	// Storage locates persisted state.
	Storage StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty and come from the environment or config file.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Research: ResearchSettings{
			MaxResults:    DefaultMaxResults,
			TotalWords:    DefaultTotalWords,
			Timeout:       DefaultTimeout,
			Concurrency:   DefaultWorkers,
			IncludeLocal:  true,
			RAGTopK:       DefaultTopK,
			Language:      DefaultLanguage,
			ReportType:    DefaultReportType,
			CitationStyle: CitationAPA,
			Formats:       []ExportFormat{FormatMarkdown},
		},
		LLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    "gpt-4o-mini",
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		SourceOrder: DefaultSourceOrder(),
		Sources:     DefaultSourceSettings(),
	}
}
