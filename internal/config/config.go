// Package config loads and saves the sheetnerd YAML configuration. A
// missing config file is not an error; every command works out of the box
// on DefaultConfig. A malformed file is an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sheetnerd/internal/validate"
)

// Config holds all sheetnerd configuration.
type Config struct {
	// Validation thresholds and adapter whitelist extensions
	Validation ValidationConfig `yaml:"validation"`

	// Directory watcher settings
	Watch WatchConfig `yaml:"watch"`

	// Run history archive settings
	History HistoryConfig `yaml:"history"`

	// Output rendering
	Output OutputConfig `yaml:"output"`
}

// ValidationConfig overrides the validator thresholds. Zero values mean
// "use the stock default", so a partial config file only changes what it
// names.
type ValidationConfig struct {
	MinIndexLength   int      `yaml:"min_index_length"`
	MaxIndexLength   int      `yaml:"max_index_length"`
	MinIndexDistance int      `yaml:"min_index_distance"`
	ExtraAdapters    []string `yaml:"extra_adapters"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	DebounceMS int      `yaml:"debounce_ms"`
	Extensions []string `yaml:"extensions"`
}

// HistoryConfig configures the run history archive.
type HistoryConfig struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"`
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format string `yaml:"format"` // table, json, markdown
}

// DefaultConfig returns the stock configuration. Validation thresholds
// mirror validate.DefaultOptions so there is a single source of truth.
func DefaultConfig() *Config {
	opts := validate.DefaultOptions()
	return &Config{
		Validation: ValidationConfig{
			MinIndexLength:   opts.MinIndexLength,
			MaxIndexLength:   opts.MaxIndexLength,
			MinIndexDistance: opts.MinIndexDistance,
			ExtraAdapters:    []string{},
		},
		Watch: WatchConfig{
			DebounceMS: 500,
			Extensions: []string{".csv"},
		},
		History: HistoryConfig{
			Path: "~/.sheetnerd/history.db",
			Keep: 500,
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

// DefaultPath returns the standard config location under the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sheetnerd", "config.yaml"), nil
}

// Load reads the config at path and overlays it onto the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// missing file means stock defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides folds SHEETNERD_* variables over the file values.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SHEETNERD_DB"); path != "" {
		c.History.Path = path
	}
	if format := os.Getenv("SHEETNERD_FORMAT"); format != "" {
		c.Output.Format = format
	}
}

// ValidateOptions translates the validation section into validator options.
// Zero thresholds fall back to the stock defaults; extra_adapters extends
// the known adapter set rather than replacing it.
func (c *Config) ValidateOptions() validate.Options {
	opts := validate.DefaultOptions()
	if c.Validation.MinIndexLength > 0 {
		opts.MinIndexLength = c.Validation.MinIndexLength
	}
	if c.Validation.MaxIndexLength > 0 {
		opts.MaxIndexLength = c.Validation.MaxIndexLength
	}
	if c.Validation.MinIndexDistance > 0 {
		opts.MinIndexDistance = c.Validation.MinIndexDistance
	}
	for _, a := range c.Validation.ExtraAdapters {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			opts.KnownAdapters = append(opts.KnownAdapters, a)
		}
	}
	return opts
}

// DebounceInterval returns the watch debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	if c.Watch.DebounceMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// WatchExtensions returns the file extensions the watcher reacts to,
// lowercased with the leading dot guaranteed.
func (c *Config) WatchExtensions() []string {
	if len(c.Watch.Extensions) == 0 {
		return []string{".csv"}
	}
	out := make([]string, 0, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return []string{".csv"}
	}
	return out
}

// HistoryPath returns the history database location with a leading ~
// expanded to the user's home directory.
func (c *Config) HistoryPath() string {
	return expandHome(c.History.Path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ValidFormats lists all supported output formats.
var ValidFormats = []string{"table", "json", "markdown"}

// Validate rejects threshold and format values outside their valid ranges.
func (c *Config) Validate() error {
	if c.Validation.MinIndexLength < 0 || c.Validation.MaxIndexLength < 0 {
		return fmt.Errorf("index length thresholds must not be negative")
	}
	if c.Validation.MaxIndexLength > 0 && c.Validation.MinIndexLength > c.Validation.MaxIndexLength {
		return fmt.Errorf("min_index_length %d exceeds max_index_length %d",
			c.Validation.MinIndexLength, c.Validation.MaxIndexLength)
	}
	if c.Validation.MinIndexDistance < 0 {
		return fmt.Errorf("min_index_distance must not be negative")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history keep must not be negative")
	}

	validFormat := false
	for _, f := range ValidFormats {
		if c.Output.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, ValidFormats)
	}

	return nil
}
