package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/styles"
)

var reportsJSON bool

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored reports",
	Args:  cobra.NoArgs,
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

func init() {
	reportsCmd.Flags().BoolVar(&reportsJSON, "json", false, "output as JSON")
	reportsCmd.AddCommand(reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	history, err := backend.History(ctx)
	if err != nil {
		return err
	}

	reports, err := history.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if reportsJSON {
		return writeJSON(cmd.OutOrStdout(), reports)
	}
	if len(reports) == 0 {
		cmd.Println("No reports yet.")
		return nil
	}

	s := styles.DefaultStyles()
	cmd.Println(s.Title.Render("Reports"))
	for _, r := range reports {
		cmd.Printf("  %s  %s  %s\n", r.Modified.Local().Format(time.DateTime), humanSize(r.Size), r.ID)
	}
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	history, err := backend.History(ctx)
	if err != nil {
		return err
	}

	report, err := history.GetReport(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	cmd.Println(report.Content)
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%5d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%5.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
