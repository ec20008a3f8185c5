// Package registry builds the ordered search source bindings from settings.
package registry

import (
	"fmt"

	"github.com/custodia-labs/deepone/internal/adapters/driven/search/bing"
	"github.com/custodia-labs/deepone/internal/adapters/driven/search/duckduckgo"
	"github.com/custodia-labs/deepone/internal/adapters/driven/search/googlecse"
	"github.com/custodia-labs/deepone/internal/adapters/driven/search/langsearch"
	"github.com/custodia-labs/deepone/internal/adapters/driven/search/tavily"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/core/services"
	"github.com/custodia-labs/deepone/internal/logger"
)

// NewSource creates the adapter for a named source.
func NewSource(name string, src domain.SourceSettings) (driven.SearchSource, error) {
	switch name {
	case domain.SourceLangSearch:
		return langsearch.New(langsearch.Config{APIKey: src.APIKey}), nil
	case domain.SourceTavily:
		return tavily.New(tavily.Config{APIKey: src.APIKey}), nil
	case domain.SourceGoogleCSE:
		return googlecse.New(googlecse.Config{APIKey: src.APIKey, EngineID: src.EngineID}), nil
	case domain.SourceBing:
		return bing.New(bing.Config{APIKey: src.APIKey}), nil
	case domain.SourceDuckDuckGo:
		return duckduckgo.New(duckduckgo.Config{}), nil
	default:
		return nil, fmt.Errorf("%w: search source %q", domain.ErrUnsupportedType, name)
	}
}

// Bindings returns one binding per configured source in fallback order.
// Sources without credentials are left out so the resolver never wastes a
// rate limit token on a call that cannot succeed.
func Bindings(settings *domain.AppSettings) []services.SourceBinding {
	var out []services.SourceBinding
	for _, name := range settings.SourceOrder {
		src := settings.Sources[name]
		if !services.SourceConfigured(name, src) {
			logger.Debug("source %s: not configured, skipped", name)
			continue
		}
		source, err := NewSource(name, src)
		if err != nil {
			logger.Warn("source %s: %v", name, err)
			continue
		}
		out = append(out, services.SourceBinding{
			Source: source,
			Limit: services.RateLimitConfig{
				RequestsPerSecond: src.Rate,
				BurstSize:         src.Burst,
			},
		})
	}
	return out
}
