// Package main provides the sheetnerd CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetnerd/cmd/sheetnerd/ui"
	"sheetnerd/internal/config"
	"sheetnerd/internal/logging"
	"sheetnerd/internal/schema"
)

var (
	// Global flags
	verbose    bool
	configPath string
	noColor    bool

	// Shared command state, built in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
	styles ui.Styles
)

// errCheckFailed marks a semantic FAIL: the tools ran fine but the sheet
// did not pass. main exits 2 for it instead of 1.
var errCheckFailed = errors.New("validation failed")

var rootCmd = &cobra.Command{
	Use:   "sheetnerd",
	Short: "Parse, validate, convert and diff Illumina sample sheets",
	Long: `sheetnerd reads both Illumina sample sheet dialects: the classic IEM
layout (V1) and the BCLConvert layout (V2).

It validates index integrity before a run wastes a flow cell, converts
between the dialects, compares sheets semantically, watches run folders
for changes, and keeps an archive of past results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.Init(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		path := configPath
		if path == "" {
			if p, perr := config.DefaultPath(); perr == nil {
				path = p
			}
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		styles = ui.DefaultStyles()
		if noColor {
			styles = ui.PlainStyles()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.sheetnerd/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errCheckFailed) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadModel reads and parses one sheet file.
func loadModel(path string) (schema.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	m, err := schema.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}
