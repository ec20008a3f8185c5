// Package cli implements the deepone command line with cobra.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/core/ports/driving"
	"github.com/custodia-labs/deepone/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Runtime builds the services behind each command on first use, so that
// commands which do not need an LLM or index never construct one.
type Runtime interface {
	// Research returns the research pipeline. Ephemeral runs keep
	// reports and run history in memory.
	Research(ctx context.Context, ephemeral bool) (driving.ResearchService, error)

	// Index returns the local vector index and the ingestion service on top of it.
	Index(ctx context.Context) (driving.IndexService, driving.IngestService, error)

	// History returns stored reports and runs.
	History(ctx context.Context) (driving.HistoryService, error)
}

var (
	settingsService driving.SettingsService
	backend         Runtime
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "deepone",
	Short: "Multi-source research reports from the terminal",
	Long: `deepone plans a research task into sub-questions, gathers evidence from
web search sources and a local document index, and writes a cited report.

Run 'deepone research "<task>"' to start, or 'deepone mcp serve' to expose
the same pipeline to AI assistants.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.SetVersionTemplate("deepone version {{.Version}}\n")
	rootCmd.Version = version
}

// SetServices installs the settings service and the lazy runtime used by commands.
func SetServices(settings driving.SettingsService, rt Runtime) {
	settingsService = settings
	backend = rt
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func requireRuntime() error {
	if backend == nil {
		return errors.New("runtime not configured")
	}
	return nil
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
