package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/history"
	"sheetnerd/internal/logging"
	"sheetnerd/internal/validate"
	"sheetnerd/internal/watch"
)

var (
	watchPlain bool
	watchSave  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and re-validate sheets as they change",
	Long: `Watch monitors a directory for sheet changes and re-validates each
file after its events settle. Rapid saves collapse into one check.

The default view is a live dashboard; press q to quit. With --plain
each check is logged as a single line instead, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Log events as plain lines instead of the dashboard")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "Archive each validation run in the history")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	validator := validate.New(cfg.ValidateOptions())

	var store *history.Store
	if watchSave {
		store, err = history.Open(cfg.HistoryPath(), logging.Named(logger, "history"))
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
	}

	// check re-validates one settled file. It runs on the watcher
	// goroutine; results flow to exactly one consumer per mode.
	check := func(path string, op watch.Op) ui.WatchResult {
		res := ui.WatchResult{Path: path, Op: string(op), When: time.Now()}
		if op == watch.OpRemove {
			res.Verdict = "REMOVED"
			return res
		}
		m, err := loadModel(path)
		if err != nil {
			res.Verdict = "ERROR"
			res.Detail = err.Error()
			return res
		}
		report := validator.Validate(m)
		res.Format = m.Format().String()
		res.Errors = len(report.Errors)
		res.Warnings = len(report.Warnings)
		res.Verdict = "FAIL"
		if report.Passed() {
			res.Verdict = "PASS"
		}
		if store != nil {
			if _, err := store.SaveRun(history.NewRun(path, res.Format, history.OpWatch, report)); err != nil {
				logger.Warn("failed to archive watch run", zap.String("file", path), zap.Error(err))
			}
		}
		return res
	}

	opts := watch.Options{
		Debounce:   cfg.DebounceInterval(),
		Extensions: cfg.WatchExtensions(),
	}

	if watchPlain {
		return runWatchPlain(cmd, dir, opts, check)
	}
	return runWatchDashboard(cmd, dir, opts, check)
}

func runWatchPlain(cmd *cobra.Command, dir string, opts watch.Options, check func(string, watch.Op) ui.WatchResult) error {
	w := cmd.OutOrStdout()

	watcher, err := watch.New(dir, opts, logging.Named(logger, "watch"), func(path string, op watch.Op) {
		printWatchLine(w, check(path, op))
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Watching %s %s\n", styles.Info.Render(dir), styles.Muted.Render("(ctrl+c to stop)"))
	<-ctx.Done()

	stats := watcher.Stats()
	fmt.Fprintf(w, "\n%d event(s) seen, %d check(s) run\n", stats.Created+stats.Modified+stats.Removed, stats.Triggered)
	return nil
}

func runWatchDashboard(cmd *cobra.Command, dir string, opts watch.Options, check func(string, watch.Op) ui.WatchResult) error {
	program := tea.NewProgram(ui.NewWatchModel(dir, styles), tea.WithAltScreen())

	watcher, err := watch.New(dir, opts, logging.Named(logger, "watch"), func(path string, op watch.Op) {
		program.Send(check(path, op))
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Start(cmd.Context()); err != nil {
		return err
	}
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func printWatchLine(w io.Writer, res ui.WatchResult) {
	stamp := styles.Muted.Render(res.When.Format("15:04:05"))
	op := strings.ToUpper(res.Op)
	switch res.Verdict {
	case "REMOVED":
		fmt.Fprintf(w, "%s %s %s\n", stamp, op, res.Path)
	case "ERROR":
		fmt.Fprintf(w, "%s %s %s: %s\n", stamp, op, res.Path, styles.Error.Render(res.Detail))
	default:
		fmt.Fprintf(w, "%s %s %s: %s %s\n", stamp, op, res.Path,
			styles.Verdict(res.Verdict == "PASS"),
			styles.Muted.Render(fmt.Sprintf("(%s, %d errors, %d warnings)", res.Format, res.Errors, res.Warnings)))
	}
}
