package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List usable LLM providers and search sources",
	Long: `Shows the LLM providers that have an API key, in priority order, and
the search sources in fallback order with their rate limits.`,
	Args: cobra.NoArgs,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("[LLM providers]")
	providers := settingsService.EnabledProviders()
	if len(providers) == 0 {
		cmd.Println("  (none with an API key)")
	}
	for _, p := range providers {
		cmd.Printf("  %-12s %s\n", p, p.Description())
	}
	cmd.Println()

	cmd.Println("[Search sources]")
	for _, src := range settingsService.Sources() {
		status := "ready"
		if !src.Configured {
			status = "missing credentials"
		}
		cmd.Printf("  %-12s %-20s %.1f req/s, burst %d\n", src.Name, status, src.Rate, src.Burst)
	}
	return nil
}
