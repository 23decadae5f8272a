package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sheetnerd/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the configuration",
	Long: `Config without a subcommand prints the effective configuration,
defaults merged with the loaded file and environment overrides.

Subcommands:
  init    - Write the default YAML config`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default YAML config",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Destination file (default: the standard config path)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}

func effectiveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := effectiveConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n\n", styles.Bold.Render("Config:"), path)
	fmt.Fprint(w, string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		var err error
		path, err = effectiveConfigPath()
		if err != nil {
			return err
		}
	}

	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styles.Success.Render("Wrote"), path)
	return nil
}
