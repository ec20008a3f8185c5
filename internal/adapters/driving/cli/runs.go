package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/services"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent research runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", services.DefaultRunLimit, "maximum number of runs")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	history, err := backend.History(ctx)
	if err != nil {
		return err
	}

	runs, err := history.ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		cmd.Printf("%s  %-9s %6s  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Status, r.Duration().Round(time.Second), r.Task)
		switch r.Status {
		case domain.RunCompleted:
			cmd.Printf("    %d sub-questions, %d web + %d local sources -> %s\n",
				r.SubQuestions, r.WebSources, r.LocalSources, r.ReportID)
		case domain.RunFailed:
			cmd.Printf("    error: %s\n", r.Error)
		}
	}
	return nil
}
