// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/deepone/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/deepone/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/deepone/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/deepone/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/deepone/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the AI services built for a research session.
type InitResult struct {
	Generator driven.TextGenerator
	Embedder  driven.EmbeddingService // nil disables local evidence
	Warnings  []string                // Non-fatal issues, such as an unreachable embedder.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedder != nil {
		r.Embedder.Close()
	}
	if r.Generator != nil {
		r.Generator.Close()
	}
}

// Init builds the text generator and, when configured, the embedder.
// A missing generator is an error; a missing embedder is a warning.
func Init(settings *domain.AppSettings) (*InitResult, error) {
	gen, err := CreateTextGenerator(&settings.LLM)
	if err != nil {
		return nil, err
	}
	result := &InitResult{Generator: gen}

	embedder, err := CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("local index disabled: %v", err))
	case embedder == nil:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("local index disabled: embedding provider %s is not configured", settings.Embedding.Provider))
	default:
		result.Embedder = embedder
	}
	return result, nil
}

// CreateAndValidateTextGenerator creates a text generator and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateTextGenerator(settings *domain.LLMSettings) (driven.TextGenerator, error) {
	gen, err := CreateTextGenerator(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := gen.Ping(ctx); err != nil {
		gen.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'deepone settings' to fix",
			domain.ErrLLMUnavailable, err)
	}
	return gen, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a generator and pinging it.
// Unconfigured settings have nothing to validate.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	gen, err := CreateTextGenerator(settings)
	if err != nil {
		return err
	}
	defer gen.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return gen.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: %s does not support embeddings, use ollama or openai",
			domain.ErrEmbeddingUnavailable, settings.Provider)
	}
}

// CreateTextGenerator creates the generator for the configured provider.
// A provider without credentials fails with domain.ErrMissingCredentials
// naming the variable to set, so the run can stop before any work.
func CreateTextGenerator(settings *domain.LLMSettings) (driven.TextGenerator, error) {
	if settings == nil || !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: no LLM provider configured", domain.ErrLLMUnavailable)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s requires %s to be set",
			domain.ErrMissingCredentials, settings.Provider.Description(), settings.Provider.APIKeyEnv())
	}

	switch {
	case settings.Provider == domain.AIProviderOllama:
		return ollamallm.NewGenerator(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case settings.Provider == domain.AIProviderAnthropic:
		return anthropicllm.NewGenerator(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case settings.Provider.IsOpenAICompatible():
		baseURL := settings.BaseURL
		if baseURL == "" {
			baseURL = settings.Provider.DefaultBaseURL()
		}
		return openaillm.NewGenerator(openaillm.LLMConfig{
			Provider: settings.Provider.String(),
			APIKey:   settings.APIKey,
			BaseURL:  baseURL,
			Model:    settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrLLMUnavailable, settings.Provider)
	}
}
