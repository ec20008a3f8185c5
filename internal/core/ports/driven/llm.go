package driven

import "context"

// TextGenerator produces text from a prompt.
// The research pipeline uses it to plan sub-questions and write the report.
//
// Implementations may include:
//   - OpenAI and OpenAI-compatible APIs (Groq, DeepSeek, Perplexity, Mistral, Gemini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type TextGenerator interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
