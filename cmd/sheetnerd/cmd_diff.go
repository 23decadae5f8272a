package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/diff"
)

var (
	diffFormat string
	diffRender bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two sample sheets",
	Long: `Diff compares two sheets semantically: header, reads and settings keys
plus the per-sample fields, keyed by lane and sample ID. Sheets in
different dialects are compared on the fields both dialects share.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffFormat, "format", "", "Output format: table, json or markdown (default from config)")
	diffCmd.Flags().BoolVar(&diffRender, "render", false, "Render markdown output for the terminal")
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldM, err := loadModel(args[0])
	if err != nil {
		return err
	}
	newM, err := loadModel(args[1])
	if err != nil {
		return err
	}

	result := diff.Compare(oldM, newM)

	format := diffFormat
	if format == "" {
		format = cfg.Output.Format
	}
	if diffRender {
		if diffFormat != "" && diffFormat != "markdown" {
			return fmt.Errorf("--render requires --format markdown")
		}
		format = "markdown"
	}

	switch format {
	case "json":
		return printDiffJSON(cmd, args[0], args[1], result)
	case "markdown":
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(ui.DiffMarkdown(result), !diffRender || noColor))
		return nil
	case "table":
		printDiffTable(cmd, result)
		return nil
	}
	return fmt.Errorf("invalid output format: %s (valid: table, json, markdown)", format)
}

type diffOutput struct {
	OldFile    string            `json:"old_file"`
	NewFile    string            `json:"new_file"`
	OldFormat  string            `json:"old_format"`
	NewFormat  string            `json:"new_format"`
	HasChanges bool              `json:"has_changes"`
	Header     []fieldChangeOut  `json:"header_changes,omitempty"`
	Added      []sampleRefOut    `json:"samples_added,omitempty"`
	Removed    []sampleRefOut    `json:"samples_removed,omitempty"`
	Changed    []sampleChangeOut `json:"sample_changes,omitempty"`
}

type fieldChangeOut struct {
	Section string  `json:"section,omitempty"`
	Field   string  `json:"field"`
	Old     *string `json:"old"`
	New     *string `json:"new"`
}

type sampleRefOut struct {
	Lane     string `json:"lane"`
	SampleID string `json:"sample_id"`
}

type sampleChangeOut struct {
	Lane     string           `json:"lane"`
	SampleID string           `json:"sample_id"`
	Fields   []fieldChangeOut `json:"fields"`
}

func printDiffJSON(cmd *cobra.Command, oldPath, newPath string, result *diff.Result) error {
	out := diffOutput{
		OldFile:    oldPath,
		NewFile:    newPath,
		OldFormat:  result.OldFormat.String(),
		NewFormat:  result.NewFormat.String(),
		HasChanges: result.HasChanges(),
	}
	for _, c := range result.HeaderChanges {
		out.Header = append(out.Header, fieldChangeOut{Section: c.Section, Field: c.Field, Old: c.Old, New: c.New})
	}
	for _, ref := range result.SamplesAdded {
		out.Added = append(out.Added, sampleRefOut{Lane: ref.Lane, SampleID: ref.SampleID})
	}
	for _, ref := range result.SamplesRemoved {
		out.Removed = append(out.Removed, sampleRefOut{Lane: ref.Lane, SampleID: ref.SampleID})
	}
	for _, sc := range result.SampleChanges {
		changed := sampleChangeOut{Lane: sc.Lane, SampleID: sc.SampleID}
		for _, f := range sc.Fields {
			changed.Fields = append(changed.Fields, fieldChangeOut{Field: f.Field, Old: f.Old, New: f.New})
		}
		out.Changed = append(out.Changed, changed)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printDiffTable(cmd *cobra.Command, result *diff.Result) {
	w := cmd.OutOrStdout()
	if !result.HasChanges() {
		fmt.Fprintln(w, styles.Success.Render(result.Summary()))
		return
	}
	fmt.Fprintln(w, styles.Bold.Render(result.Summary()))

	if len(result.HeaderChanges) > 0 {
		fmt.Fprintf(w, "\n%s\n", styles.Subtitle.Render("Header / Settings"))
		for _, c := range result.HeaderChanges {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	if len(result.SamplesAdded) > 0 {
		fmt.Fprintf(w, "\n%s\n", styles.Subtitle.Render("Added samples"))
		for _, ref := range result.SamplesAdded {
			fmt.Fprintln(w, styles.Success.Render(fmt.Sprintf("  + %s (lane %s)", ref.SampleID, ref.Lane)))
		}
	}
	if len(result.SamplesRemoved) > 0 {
		fmt.Fprintf(w, "\n%s\n", styles.Subtitle.Render("Removed samples"))
		for _, ref := range result.SamplesRemoved {
			fmt.Fprintln(w, styles.Error.Render(fmt.Sprintf("  - %s (lane %s)", ref.SampleID, ref.Lane)))
		}
	}
	if len(result.SampleChanges) > 0 {
		fmt.Fprintf(w, "\n%s\n", styles.Subtitle.Render("Changed samples"))
		for _, sc := range result.SampleChanges {
			fmt.Fprintf(w, "  %s %s\n", styles.Bold.Render(sc.SampleID), styles.Muted.Render("(lane "+sc.Lane+")"))
			for _, f := range sc.Fields {
				fmt.Fprintf(w, "    %s: %s -> %s\n", f.Field, diffValue(f.Old), diffValue(f.New))
			}
		}
	}
}

func diffValue(v *string) string {
	if v == nil {
		return styles.Muted.Render("(absent)")
	}
	return *v
}
