package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/history"
	"sheetnerd/internal/logging"
	"sheetnerd/internal/schema"
	"sheetnerd/internal/validate"
)

var (
	validateFormat      string
	validateRender      bool
	validateMinDistance int
	validateSave        bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate one or more sample sheets",
	Long: `Validate runs the full check battery against each sheet: index
characters, lengths, duplicates, missing Index2, adapter whitelist and
pairwise index distances. Warnings never fail a sheet; errors do.

Multiple files are validated concurrently. The exit code is 2 when any
sheet fails, 1 when a file cannot be read or parsed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFormat, "format", "", "Output format: table, json or markdown (default from config)")
	validateCmd.Flags().BoolVar(&validateRender, "render", false, "Render markdown output for the terminal")
	validateCmd.Flags().IntVar(&validateMinDistance, "min-distance", 0, "Minimum pairwise index Hamming distance (overrides config)")
	validateCmd.Flags().BoolVar(&validateSave, "save", false, "Archive results in the run history")
}

// fileResult is one file's validation outcome. Exactly one of Err or
// Report is set.
type fileResult struct {
	Path   string
	Model  schema.Model
	Report *validate.Report
	Err    error
}

func runValidate(cmd *cobra.Command, args []string) error {
	format := validateFormat
	if format == "" {
		format = cfg.Output.Format
	}
	if validateRender {
		if validateFormat != "" && validateFormat != "markdown" {
			return fmt.Errorf("--render requires --format markdown")
		}
		format = "markdown"
	}
	switch format {
	case "table", "json", "markdown":
	default:
		return fmt.Errorf("invalid output format: %s (valid: table, json, markdown)", format)
	}

	opts := cfg.ValidateOptions()
	if validateMinDistance > 0 {
		opts.MinIndexDistance = validateMinDistance
	}
	validator := validate.New(opts)

	results := make([]fileResult, len(args))
	var g errgroup.Group
	for i, path := range args {
		g.Go(func() error {
			res := fileResult{Path: path}
			if m, err := loadModel(path); err != nil {
				res.Err = err
			} else {
				res.Model = m
				res.Report = validator.Validate(m)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	switch format {
	case "json":
		if err := printValidateJSON(cmd, results); err != nil {
			return err
		}
	case "markdown":
		printValidateMarkdown(cmd, results)
	default:
		printValidateTable(cmd, results)
	}

	if validateSave {
		if err := archiveResults(results); err != nil {
			return err
		}
	}

	var firstErr error
	anyFailed := false
	for _, res := range results {
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
		if res.Report != nil && !res.Report.Passed() {
			anyFailed = true
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if anyFailed {
		return errCheckFailed
	}
	return nil
}

// archiveResults saves every parsed result to the run history and prunes
// the archive to the configured size.
func archiveResults(results []fileResult) error {
	store, err := history.Open(cfg.HistoryPath(), logging.Named(logger, "history"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	for _, res := range results {
		if res.Report == nil {
			continue
		}
		id, err := store.SaveRun(history.NewRun(res.Path, res.Model.Format().String(), history.OpValidate, res.Report))
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", res.Path, err)
		}
		logger.Debug("archived validation run", zap.String("file", res.Path), zap.String("id", id))
	}

	if cfg.History.Keep > 0 {
		if _, err := store.Prune(cfg.History.Keep); err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}
	return nil
}

type validateOutput struct {
	File     string        `json:"file"`
	Format   string        `json:"format,omitempty"`
	Passed   bool          `json:"passed"`
	Summary  string        `json:"summary,omitempty"`
	Error    string        `json:"error,omitempty"`
	Errors   []issueOutput `json:"errors,omitempty"`
	Warnings []issueOutput `json:"warnings,omitempty"`
}

type issueOutput struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func issueOutputs(issues []validate.Issue) []issueOutput {
	out := make([]issueOutput, 0, len(issues))
	for _, iss := range issues {
		out = append(out, issueOutput{Code: iss.Code, Message: iss.Message, Context: iss.Context})
	}
	return out
}

func printValidateJSON(cmd *cobra.Command, results []fileResult) error {
	outputs := make([]validateOutput, 0, len(results))
	for _, res := range results {
		out := validateOutput{File: res.Path}
		if res.Err != nil {
			out.Error = res.Err.Error()
			outputs = append(outputs, out)
			continue
		}
		out.Format = res.Model.Format().String()
		out.Passed = res.Report.Passed()
		out.Summary = res.Report.Summary()
		out.Errors = issueOutputs(res.Report.Errors)
		out.Warnings = issueOutputs(res.Report.Warnings)
		outputs = append(outputs, out)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}

func printValidateMarkdown(cmd *cobra.Command, results []fileResult) {
	docs := make([]string, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			docs = append(docs, fmt.Sprintf("# Validation: %s\n\n- **Error:** %s\n", res.Path, res.Err))
			continue
		}
		docs = append(docs, ui.ValidationMarkdown(res.Path, res.Model, res.Report))
	}
	md := strings.Join(docs, "\n---\n\n")
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(md, !validateRender || noColor))
}

func printValidateTable(cmd *cobra.Command, results []fileResult) {
	w := cmd.OutOrStdout()
	passed := 0

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if res.Err != nil {
			fmt.Fprintf(w, "%s: %s\n", res.Path, styles.Error.Render(res.Err.Error()))
			continue
		}

		report := res.Report
		if report.Passed() {
			passed++
		}
		fmt.Fprintf(w, "%s: %s %s\n",
			styles.Bold.Render(res.Path),
			styles.Verdict(report.Passed()),
			styles.Muted.Render(fmt.Sprintf("(%s, %d samples)", res.Model.Format(), len(res.Model.Samples()))))

		for _, iss := range report.Errors {
			fmt.Fprintf(w, "  %s\n", styles.Error.Render(iss.String()))
		}
		for _, iss := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", styles.Warning.Render(iss.String()))
		}
	}

	if len(results) > 1 {
		fmt.Fprintf(w, "\n%s\n", styles.Bold.Render(fmt.Sprintf("%d of %d sheets passed", passed, len(results))))
	}
}
