package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/schema"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a sample sheet and show its contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Machine-readable output")
}

// parseOutput is the --json shape. Field names are part of the CLI
// contract; downstream pipeline scripts key off them.
type parseOutput struct {
	File             string         `json:"file"`
	Format           string         `json:"format"`
	Experiment       string         `json:"experiment,omitempty"`
	Reads            []int          `json:"reads"`
	IndexType        string         `json:"index_type"`
	Adapters         []string       `json:"adapters,omitempty"`
	UMILength        int            `json:"umi_length,omitempty"`
	Columns          []string       `json:"columns"`
	Samples          []sampleOutput `json:"samples"`
	StructuralErrors []string       `json:"structural_errors,omitempty"`
}

type sampleOutput struct {
	Lane     string `json:"lane"`
	SampleID string `json:"sample_id"`
	Index    string `json:"index,omitempty"`
	Index2   string `json:"index2,omitempty"`
	Project  string `json:"project,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	path := args[0]
	m, err := loadModel(path)
	if err != nil {
		return err
	}
	logger.Debug("parsed sheet",
		zap.String("file", path),
		zap.String("format", m.Format().String()),
		zap.Int("samples", len(m.Samples())))

	if parseJSON {
		return printParseJSON(cmd, path, m)
	}
	printParseReport(cmd, m)
	return nil
}

func printParseJSON(cmd *cobra.Command, path string, m schema.Model) error {
	out := parseOutput{
		File:       path,
		Format:     m.Format().String(),
		Experiment: m.ExperimentName(),
		Reads:      m.ReadLengths(),
		IndexType:  string(m.IndexType()),
		Adapters:   m.Adapters(),
		UMILength:  schema.UMILength(m),
		Columns:    m.Columns(),
	}
	for _, s := range m.Samples() {
		out.Samples = append(out.Samples, sampleOutput{
			Lane:     s.LaneOrDefault(),
			SampleID: s.SampleID,
			Index:    s.Index,
			Index2:   s.Index2,
			Project:  s.Project,
		})
	}
	for _, se := range m.Structural() {
		out.StructuralErrors = append(out.StructuralErrors, se.String())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printParseReport(cmd *cobra.Command, m schema.Model) {
	w := cmd.OutOrStdout()

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s %s\n", styles.Bold.Render(name+":"), value)
		}
	}

	field("Format", m.Format().String())
	field("Experiment", m.ExperimentName())
	field("Reads", joinInts(m.ReadLengths()))
	field("Index type", string(m.IndexType()))
	field("Adapters", strings.Join(m.Adapters(), ", "))
	if umi := schema.UMILength(m); umi > 0 {
		field("UMI length", strconv.Itoa(umi))
	}

	if structural := m.Structural(); len(structural) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Warning.Render(fmt.Sprintf("%d structural issue(s):", len(structural))))
		for _, se := range structural {
			fmt.Fprintf(w, "  %s\n", se.String())
		}
	}

	samples := m.Samples()
	fmt.Fprintln(w)
	tbl := ui.NewSimpleTable(fmt.Sprintf("Samples (%d)", len(samples)),
		"Lane", "Sample_ID", "Index", "Index2", "Project")
	for _, s := range samples {
		tbl.AddRow(s.LaneOrDefault(), s.SampleID, s.Index, s.Index2, s.Project)
	}
	if view := tbl.View(styles); view != "" {
		fmt.Fprint(w, view)
	} else {
		fmt.Fprintln(w, styles.Muted.Render("no samples"))
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
