package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"

	"sheetnerd/internal/diff"
	"sheetnerd/internal/schema"
	"sheetnerd/internal/validate"
)

// RenderMarkdown pipes a markdown report through the terminal renderer.
// Plain mode, and any renderer failure, returns the markdown unchanged.
func RenderMarkdown(md string, plain bool) string {
	if plain {
		return md
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// ValidationMarkdown builds the markdown report for one validated sheet.
// A nil model means the file never parsed; only the report is rendered.
func ValidationMarkdown(path string, m schema.Model, report *validate.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Validation: %s\n\n", filepath.Base(path))
	fmt.Fprintf(&sb, "- **File:** %s\n", path)
	if m != nil {
		fmt.Fprintf(&sb, "- **Format:** %s\n", m.Format())
		fmt.Fprintf(&sb, "- **Index type:** %s\n", m.IndexType())
		fmt.Fprintf(&sb, "- **Samples:** %d\n", len(m.Samples()))
	}
	fmt.Fprintf(&sb, "- **Verdict:** %s\n", report.Summary())

	if len(report.Errors) > 0 {
		sb.WriteString("\n## Errors\n\n")
		for _, iss := range report.Errors {
			fmt.Fprintf(&sb, "- **%s**: %s\n", iss.Code, iss.Message)
		}
	}
	if len(report.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, iss := range report.Warnings {
			fmt.Fprintf(&sb, "- **%s**: %s\n", iss.Code, iss.Message)
		}
	}

	return sb.String()
}

// DiffMarkdown builds the markdown report for a sheet comparison.
func DiffMarkdown(result *diff.Result) string {
	var sb strings.Builder

	sb.WriteString("# Sheet Comparison\n\n")
	fmt.Fprintf(&sb, "- **Formats:** %s to %s\n", result.OldFormat, result.NewFormat)

	if !result.HasChanges() {
		sb.WriteString("- **Verdict:** no differences detected\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "- **Header/settings changes:** %d\n", len(result.HeaderChanges))
	fmt.Fprintf(&sb, "- **Samples added:** %d\n", len(result.SamplesAdded))
	fmt.Fprintf(&sb, "- **Samples removed:** %d\n", len(result.SamplesRemoved))
	fmt.Fprintf(&sb, "- **Samples changed:** %d\n", len(result.SampleChanges))

	if len(result.HeaderChanges) > 0 {
		sb.WriteString("\n## Header and settings\n\n")
		for _, c := range result.HeaderChanges {
			fmt.Fprintf(&sb, "- `%s`\n", c.String())
		}
	}
	if len(result.SamplesAdded) > 0 {
		sb.WriteString("\n## Added samples\n\n")
		for _, ref := range result.SamplesAdded {
			fmt.Fprintf(&sb, "- **%s** (lane %s)\n", ref.SampleID, ref.Lane)
		}
	}
	if len(result.SamplesRemoved) > 0 {
		sb.WriteString("\n## Removed samples\n\n")
		for _, ref := range result.SamplesRemoved {
			fmt.Fprintf(&sb, "- **%s** (lane %s)\n", ref.SampleID, ref.Lane)
		}
	}
	if len(result.SampleChanges) > 0 {
		sb.WriteString("\n## Changed samples\n\n")
		for _, c := range result.SampleChanges {
			fmt.Fprintf(&sb, "- **%s** (lane %s)\n", c.SampleID, c.Lane)
			for _, f := range c.Fields {
				fmt.Fprintf(&sb, "  - `%s`\n", fieldChangeLine(f))
			}
		}
	}

	return sb.String()
}

func fieldChangeLine(f diff.FieldChange) string {
	return fmt.Sprintf("%s: %s -> %s", f.Field, mdValue(f.Old), mdValue(f.New))
}

func mdValue(p *string) string {
	if p == nil {
		return "(absent)"
	}
	return "'" + *p + "'"
}
