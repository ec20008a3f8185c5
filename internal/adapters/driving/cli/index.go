package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/adapters/driving/watch"
	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/services"
)

var (
	indexTopK     int
	indexJSON     bool
	indexDebounce time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local document index",
	Long: `The local index holds embedded chunks of your own documents. Research runs
search it alongside the web sources when research.include_local is true.

Supported files: .md, .txt, .csv, .html and .htm.`,
}

var indexAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Add a file or directory to the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexAdd,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the local index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexSearch,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexWatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files as they change",
	Long: `Watches a directory tree and adds new or modified documents to the index.
Chunks that are already indexed are kept as they are. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexWatch,
}

func init() {
	indexSearchCmd.Flags().IntVarP(&indexTopK, "top-k", "k", domain.DefaultTopK, "maximum number of matches")
	indexSearchCmd.Flags().BoolVar(&indexJSON, "json", false, "output matches as JSON")
	indexStatsCmd.Flags().BoolVar(&indexJSON, "json", false, "output stats as JSON")
	indexWatchCmd.Flags().DurationVar(&indexDebounce, "debounce", watch.DefaultDebounce, "quiet period before ingesting changes")

	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexSearchCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexWatchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	ctx := commandContext(cmd)
	_, ingest, err := backend.Index(ctx)
	if err != nil {
		return err
	}

	var result *domain.IngestResult
	if info.IsDir() {
		result, err = ingest.IngestDir(ctx, path)
	} else {
		result, err = ingest.IngestFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks from %d files", result.Chunks, result.Files)
	if result.Skipped > 0 {
		cmd.Printf(" (%d already indexed)", result.Skipped)
	}
	cmd.Println()
	return nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	index, _, err := backend.Index(ctx)
	if err != nil {
		return err
	}

	matches, err := index.Search(ctx, strings.Join(args, " "), indexTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if indexJSON {
		return writeJSON(cmd.OutOrStdout(), matches)
	}
	if len(matches) == 0 {
		cmd.Println("No matches found.")
		return nil
	}

	for i, m := range matches {
		title := m.Item.Path()
		if title == "" {
			title = m.Item.ID
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, m.Score)
		cmd.Printf("      %s\n", snippet(m.Item.Text, 160))
		cmd.Println()
	}
	return nil
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	index, _, err := backend.Index(ctx)
	if err != nil {
		return err
	}

	stats, err := index.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	if indexJSON {
		return writeJSON(cmd.OutOrStdout(), stats)
	}
	if !stats.Exists {
		cmd.Println("Index is empty. Run 'deepone index add <path>' to add documents.")
		return nil
	}
	cmd.Printf("Items: %d\n", stats.Items)
	cmd.Printf("Updated: %s\n", stats.UpdatedAt.Local().Format(time.RFC1123))
	return nil
}

func runIndexWatch(cmd *cobra.Command, args []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	_, ingest, err := backend.Index(ctx)
	if err != nil {
		return err
	}

	w := watch.New(ingest,
		watch.WithDebounce(indexDebounce),
		watch.WithFilter(services.Supported),
		watch.WithReporter(func(path string, result *domain.IngestResult, err error) {
			if err != nil {
				cmd.PrintErrf("%s: %v\n", path, err)
				return
			}
			cmd.Printf("%s: %d new chunks\n", path, result.Chunks)
		}),
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-w.Ready():
			cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
		case <-stop:
		}
	}()
	return w.Run(ctx, args[0])
}

// snippet collapses whitespace and truncates s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
