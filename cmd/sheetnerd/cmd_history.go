package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/history"
	"sheetnerd/internal/logging"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived validation runs",
	Long: `History reads the run archive written by validate --save and
watch --save.

Subcommands:
  list    - List recent runs (default)
  show    - Show one run with its findings
  stats   - Summarize the archive`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its findings",
	Long:  `Show accepts a full run id or any unique prefix of at least four characters.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the archive",
	RunE:  runHistoryStats,
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd)
}

func openHistory() (*history.Store, error) {
	store, err := history.Open(cfg.HistoryPath(), logging.Named(logger, "history"))
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("no archived runs; validate with --save to record one"))
		return nil
	}

	tbl := ui.NewSimpleTable(fmt.Sprintf("Runs (%d)", len(runs)),
		"ID", "When", "Operation", "File", "Format", "Result", "Issues")
	for _, run := range runs {
		verdict := "FAIL"
		if run.Passed {
			verdict = "PASS"
		}
		tbl.AddRow(
			shortID(run.ID),
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.Operation,
			run.Path,
			run.Format,
			verdict,
			fmt.Sprintf("%d err, %d warn", run.Errors, run.Warnings),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tbl.View(styles))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(args[0])
	if err != nil {
		return err
	}

	verdict := "FAIL"
	if run.Passed {
		verdict = "PASS"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", shortID(run.ID))
	fmt.Fprintf(&sb, "- **File:** %s\n", run.Path)
	fmt.Fprintf(&sb, "- **Format:** %s\n", run.Format)
	fmt.Fprintf(&sb, "- **Operation:** %s\n", run.Operation)
	fmt.Fprintf(&sb, "- **When:** %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- **Verdict:** %s (%d errors, %d warnings)\n", verdict, run.Errors, run.Warnings)
	if len(run.Findings) > 0 {
		sb.WriteString("\n## Findings\n\n")
		for _, f := range run.Findings {
			fmt.Fprintf(&sb, "- **[%s] %s**: %s\n", f.Severity, f.Code, f.Message)
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(sb.String(), noColor))
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, styles.Title.Render("Run archive"))
	fmt.Fprintf(w, "%s %s\n", styles.Bold.Render("Database:"), store.Path())
	fmt.Fprintf(w, "%s %d (%s passed, %s failed)\n",
		styles.Bold.Render("Runs:"), stats.Runs,
		styles.Success.Render(fmt.Sprintf("%d", stats.Passed)),
		styles.Error.Render(fmt.Sprintf("%d", stats.Failed)))
	fmt.Fprintf(w, "%s %d\n", styles.Bold.Render("Findings:"), stats.Findings)

	if len(stats.ByOperation) > 0 {
		ops := make([]string, 0, len(stats.ByOperation))
		for op := range stats.ByOperation {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		fmt.Fprintln(w, styles.Bold.Render("By operation:"))
		for _, op := range ops {
			fmt.Fprintf(w, "  %-10s %d\n", op, stats.ByOperation[op])
		}
	}
	return nil
}
