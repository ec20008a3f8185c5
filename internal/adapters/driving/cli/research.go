package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/adapters/driving/tui"
	"github.com/custodia-labs/deepone/internal/core/domain"
)

var (
	researchMaxResults  int
	researchWords       int
	researchTimeout     time.Duration
	researchConcurrency int
	researchTopK        int
	researchLanguage    string
	researchType        string
	researchStyle       string
	researchFormats     []string
	researchLocal       bool
	researchJSON        bool
	researchStream      bool
	researchTUI         bool
	researchEphemeral   bool
	researchPrint       bool
)

var researchCmd = &cobra.Command{
	Use:   "research [task]",
	Short: "Research a topic and write a cited report",
	Long: `Plans the task into sub-questions, searches the configured web sources
and the local index for each one, and writes a report with references.

Flags override the configured defaults for this run only.

Examples:
  deepone research "impact of WebAssembly on serverless"
  deepone research --words 2000 --format html,txt "rust async runtimes"
  deepone research --stream --json "history of the fediverse"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	f := researchCmd.Flags()
	f.IntVarP(&researchMaxResults, "max-results", "n", 0, "search results per sub-question (1-20)")
	f.IntVarP(&researchWords, "words", "w", 0, "target report length in words (min 300)")
	f.DurationVar(&researchTimeout, "timeout", 0, "per-request timeout (min 3s)")
	f.IntVar(&researchConcurrency, "concurrency", 0, "sub-questions retrieved in parallel")
	f.IntVar(&researchTopK, "top-k", 0, "local index matches for the task")
	f.StringVar(&researchLanguage, "language", "", "report language")
	f.StringVar(&researchType, "type", "", "report type, e.g. research_report")
	f.StringVar(&researchStyle, "style", "", "citation style: APA or MLA")
	f.StringSliceVarP(&researchFormats, "format", "f", nil, "extra export formats: html, txt")
	f.BoolVar(&researchLocal, "local", true, "include local index matches")
	f.BoolVar(&researchJSON, "json", false, "print JSON instead of text")
	f.BoolVar(&researchStream, "stream", false, "print progress events as they happen")
	f.BoolVar(&researchTUI, "tui", false, "show an interactive progress view")
	f.BoolVar(&researchEphemeral, "ephemeral", false, "keep the report and run history in memory")
	f.BoolVarP(&researchPrint, "print", "p", false, "print the full report when done")
	researchCmd.MarkFlagsMutuallyExclusive("stream", "tui")
	rootCmd.AddCommand(researchCmd)
}

// researchRequest builds a request from the task and any flags the user set.
// Unset flags are left zero so the pipeline applies configured defaults.
func researchRequest(cmd *cobra.Command, args []string) (domain.ResearchRequest, error) {
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return domain.ResearchRequest{}, fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
	}

	req := domain.ResearchRequest{
		Task:        task,
		MaxResults:  researchMaxResults,
		TotalWords:  researchWords,
		Timeout:     researchTimeout,
		Concurrency: researchConcurrency,
		RAGTopK:     researchTopK,
		Language:    researchLanguage,
		ReportType:  researchType,
	}
	if researchStyle != "" {
		style := domain.CitationStyle(strings.ToUpper(researchStyle))
		if !style.IsValid() {
			return domain.ResearchRequest{}, fmt.Errorf("%w: citation style %q", domain.ErrInvalidInput, researchStyle)
		}
		req.CitationStyle = style
	}
	for _, f := range researchFormats {
		req.Formats = append(req.Formats, domain.ExportFormat(strings.ToLower(strings.TrimSpace(f))))
	}
	if cmd.Flags().Changed("local") {
		local := researchLocal
		req.IncludeLocal = &local
	}
	return req, nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	if err := requireRuntime(); err != nil {
		return err
	}
	req, err := researchRequest(cmd, args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	svc, err := backend.Research(ctx, researchEphemeral)
	if err != nil {
		return err
	}

	var result *domain.ResearchResult
	switch {
	case researchTUI:
		result, err = tui.Run(ctx, req.Task, func(ctx context.Context) <-chan domain.Event {
			return svc.Stream(ctx, req)
		})
	case researchStream:
		result, err = streamEvents(cmd.OutOrStdout(), svc.Stream(ctx, req), researchJSON)
		if err == nil && researchJSON {
			return nil
		}
	default:
		result, _, err = svc.Run(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if researchJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printSummary(cmd.OutOrStdout(), result)
	if researchPrint {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	}
	return nil
}

// streamEvents prints events until the channel closes and returns the outcome
// carried by the terminal event. With asJSON each event is one line of JSON.
func streamEvents(w io.Writer, events <-chan domain.Event, asJSON bool) (*domain.ResearchResult, error) {
	enc := json.NewEncoder(w)
	var (
		result   *domain.ResearchResult
		failure  error
		terminal bool
	)
	for ev := range events {
		if asJSON {
			if err := enc.Encode(ev); err != nil {
				return nil, fmt.Errorf("encode event: %w", err)
			}
		} else if line := formatEvent(ev); line != "" {
			fmt.Fprintln(w, line)
		}
		switch ev.Type {
		case domain.EventCompleted:
			result, terminal = ev.Result, true
		case domain.EventError:
			failure, terminal = errors.New(ev.Message), true
		}
	}
	if failure != nil {
		return nil, failure
	}
	if !terminal || result == nil {
		return nil, errors.New("event stream closed before the run finished")
	}
	return result, nil
}

// formatEvent renders an event as one human-readable line.
func formatEvent(ev domain.Event) string {
	switch ev.Type {
	case domain.EventStatus:
		return fmt.Sprintf("[%s] %s", ev.Phase, ev.Message)
	case domain.EventPhase:
		if ev.Payload == nil {
			return fmt.Sprintf("[%s] done", ev.Phase)
		}
		switch ev.Phase {
		case domain.PhasePlanning:
			return fmt.Sprintf("[%s] done: %d sub-questions", ev.Phase, len(ev.Payload.SubQuestions))
		case domain.PhaseRetrieving:
			return fmt.Sprintf("[%s] done: %d sources", ev.Phase, len(ev.Payload.Sources))
		}
		return fmt.Sprintf("[%s] done", ev.Phase)
	case domain.EventProgress:
		return fmt.Sprintf("[%s] %d/%d", ev.Phase, ev.Completed, ev.Total)
	case domain.EventCompleted:
		return fmt.Sprintf("%s (%d sources, target %d words)", ev.Message, ev.Sources, ev.WordsTarget)
	case domain.EventError:
		return "Error: " + ev.Message
	}
	return ""
}

func printSummary(w io.Writer, r *domain.ResearchResult) {
	fmt.Fprintf(w, "Report: %s\n", r.Path)
	if r.Provider != "" {
		fmt.Fprintf(w, "Model: %s (%s)\n", r.Model, r.Provider)
	}
	fmt.Fprintf(w, "Sub-questions: %d\n", len(r.SubQuestions))
	for _, q := range r.SubQuestions {
		fmt.Fprintf(w, "  - %s\n", q)
	}
	fmt.Fprintf(w, "Sources: %d web, %d local\n", r.SourcesUsed, r.LocalUsed)

	formats := make([]string, 0, len(r.Outputs))
	for f := range r.Outputs {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	for _, f := range formats {
		if f == string(domain.FormatMarkdown) {
			continue
		}
		fmt.Fprintf(w, "Export %s: %s\n", f, r.Outputs[f])
	}

	failed := make([]string, 0, len(r.ExportErrors))
	for f := range r.ExportErrors {
		failed = append(failed, f)
	}
	sort.Strings(failed)
	for _, f := range failed {
		fmt.Fprintf(w, "Export %s failed: %s\n", f, r.ExportErrors[f])
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
