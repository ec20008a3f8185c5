package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change research defaults, AI providers, and search source keys.

Values resolve in this order: command-line flags, environment variables
(including a .env file in the working directory), the config file, then
built-in defaults.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting in the config file",
	Long: `Store a single setting. Keys use dotted names, for example:

  research.max_results     1-20
  research.total_words     300 or more
  research.timeout_ms      3000 or more
  research.citation_style  APA or MLA
  research.formats         md,html,txt
  llm.provider             openai, anthropic, ollama, groq, ...
  embedding.provider       openai or ollama
  sources.order            langsearch,tavily,google_cse,bing,duckduckgo
  sources.tavily.rate      requests per second`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeyCmd = &cobra.Command{
	Use:   "key [llm|embedding|source]",
	Short: "Store an API key without echoing it",
	Long: `Prompts for an API key and stores it in the config file.
The target is "llm", "embedding", or a search source name such as "tavily".`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsKey,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Choose the LLM provider",
	Long:  `Choose the provider and model used to plan sub-questions and write reports.`,
	RunE:  runSettingsLLM,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Choose the embedding provider",
	Long:  `Choose the provider and model used to embed the local index.`,
	RunE:  runSettingsEmbedding,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errors.New("settings service not configured")
		}
		cmd.Println(settingsService.ConfigPath())
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeyCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	r := settings.Research
	cmd.Println("[Research]")
	cmd.Printf("  Max results: %d\n", r.MaxResults)
	cmd.Printf("  Total words: %d\n", r.TotalWords)
	cmd.Printf("  Timeout: %s\n", r.Timeout)
	cmd.Printf("  Concurrency: %d\n", r.Concurrency)
	cmd.Printf("  Include local: %t (top %d)\n", r.IncludeLocal, r.RAGTopK)
	cmd.Printf("  Language: %s\n", r.Language)
	cmd.Printf("  Report type: %s\n", r.ReportType)
	cmd.Printf("  Citation style: %s\n", r.CitationStyle)
	cmd.Printf("  Formats: %s\n", joinFormats(r.Formats))
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model, settings.LLM.BaseURL, settings.LLM.APIKey)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[Sources]")
	for _, name := range settings.SourceOrder {
		src := settings.Sources[name]
		key := "(not set)"
		if src.APIKey != "" {
			key = maskAPIKey(src.APIKey)
		}
		if name == domain.SourceDuckDuckGo {
			key = "(none needed)"
		}
		cmd.Printf("  %-12s key %-14s %.1f req/s, burst %d\n", name, key, src.Rate, src.Burst)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Directory: %s\n", settings.Storage.Dir)
	cmd.Printf("  Config: %s\n", settingsService.ConfigPath())
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'deepone settings key llm' or set an API key in the environment.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printProvider(cmd *cobra.Command, p domain.AIProvider, model, baseURL, apiKey string) {
	cmd.Printf("  Provider: %s\n", p.Description())
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if p.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func joinFormats(formats []domain.ExportFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	value := args[1]
	if strings.HasSuffix(args[0], "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", args[0], value)
	return nil
}

// apiKeySetting maps a key target to its config key.
func apiKeySetting(target string) (string, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	switch target {
	case "llm", "embedding":
		return target + ".api_key", nil
	case domain.SourceDuckDuckGo:
		return "", fmt.Errorf("%w: %s does not use an API key", domain.ErrInvalidInput, target)
	}
	if _, ok := domain.DefaultSourceSettings()[target]; ok {
		return "sources." + target + ".api_key", nil
	}
	return "", fmt.Errorf("%w: unknown key target %q", domain.ErrInvalidInput, target)
}

func runSettingsKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	key, err := apiKeySetting(args[0])
	if err != nil {
		return err
	}

	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd.InOrStdin(), bufio.NewReader(cmd.InOrStdin()))
	cmd.Println()
	if apiKey == "" {
		return errors.New("API key is required")
	}

	if err := settingsService.Set(key, apiKey); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	cmd.Printf("Saved %s (%s)\n", key, maskAPIKey(apiKey))
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, "llm", domain.AllLLMProviders(), domain.DefaultLLMModels())
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, "embedding", domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
}

// configureProvider prompts for a provider, model and API key and stores
// them under the given section.
func configureProvider(
	cmd *cobra.Command,
	section string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Provider")
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Printf("Enter API key (blank to use %s): ", selected.APIKeyEnv())
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	values := [][2]string{
		{section + ".provider", string(selected)},
		{section + ".model", model},
	}
	if apiKey != "" {
		values = append(values, [2]string{section + ".api_key", apiKey})
	}
	for _, kv := range values {
		if err := settingsService.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", kv[0], err)
		}
	}

	cmd.Printf("%s provider configured: %s (%s)\n", section, selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a line without echo when in is a terminal, and from
// reader otherwise.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
