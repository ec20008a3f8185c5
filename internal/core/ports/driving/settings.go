package driving

import "github.com/custodia-labs/deepone/internal/core/domain"

// SourceStatus reports whether a search source can be called.
type SourceStatus struct {
	Name       string
	Configured bool
	Rate       float64
	Burst      int
}

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves current settings from env, config file and defaults.
	Get() (*domain.AppSettings, error)

	// Set stores a single dotted config key (e.g. "research.max_results").
	Set(key, value string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// Validate checks that a text generator can be built from current settings.
	Validate() error

	// EnabledProviders returns LLM providers with credentials, in priority order.
	EnabledProviders() []domain.AIProvider

	// Sources reports the configured search sources in fallback order.
	Sources() []SourceStatus

	// ConfigPath returns the configuration file path.
	ConfigPath() string
}
