package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetnerd/internal/sheet"
)

var cleanExperimentID string

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Scrub a sheet in place, keeping a .backup of the original",
	Long: `Clean scrubs stray quotes, carriage returns and tabs, strips whitespace
inside data rows, and standardizes V2 section names to their BCLConvert
labels. The original file is kept next to the cleaned one as <file>.backup.

With --experiment-id the sheet's experiment name value is replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanExperimentID, "experiment-id", "", "Replace the experiment name with this value")
}

func runClean(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	text := string(data)
	format := sheet.DetectFormat(text)
	cleaned := sheet.Clean(text, cleanExperimentID)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(cleaned), 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	backup := path + ".backup"
	if err := os.Rename(path, backup); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	logger.Debug("cleaned sheet", zap.String("file", path), zap.String("format", format.String()))

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
		styles.Success.Render("Cleaned"),
		path,
		styles.Muted.Render(fmt.Sprintf("(%s, original at %s)", format, backup)))
	return nil
}
