// Package config provides configuration loading and management for semarch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the complete semarch configuration
type Config struct {
	Source SourceConfig `yaml:"source"`
	Rules  RulesConfig  `yaml:"rules"`
	Report ReportConfig `yaml:"report"`
	Watch  WatchConfig  `yaml:"watch"`
}

// SourceConfig selects the files that make up the type hierarchy
type SourceConfig struct {
	// Root is the repository root (auto-detected from git if empty)
	Root string `yaml:"root"`
	// Include lists doublestar patterns relative to Root
	Include []string `yaml:"include"`
	// Exclude lists doublestar patterns that win over Include
	Exclude []string `yaml:"exclude"`
}

// RulesConfig locates the rule file
type RulesConfig struct {
	// Path is the rule file, relative to the source root unless absolute
	Path string `yaml:"path"`
}

// ReportConfig configures check output
type ReportConfig struct {
	// Format is "text" or "json"
	Format string `yaml:"format"`
	// Color enables ANSI colors in text output when writing to a terminal
	Color *bool `yaml:"color,omitempty"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is how long to wait for more changes before re-checking
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	color := true
	return &Config{
		Source: SourceConfig{
			Root:    "", // Auto-detect
			Include: []string{"**/*.java"},
			Exclude: []string{"**/target/**", "**/build/**", "**/out/**", "**/node_modules/**"},
		},
		Rules: RulesConfig{
			Path: "semarch-rules.yaml",
		},
		Report: ReportConfig{
			Format: "text",
			Color:  &color,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Source.Include) == 0 {
		return fmt.Errorf("source.include must not be empty")
	}
	for _, pattern := range append(append([]string(nil), c.Source.Include...), c.Source.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("source: invalid pattern %q", pattern)
		}
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	switch c.Report.Format {
	case "text", "json":
	default:
		return fmt.Errorf("report.format must be text or json, got %q", c.Report.Format)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// ColorEnabled reports whether text output may use colors
func (c *Config) ColorEnabled() bool {
	return c.Report.Color == nil || *c.Report.Color
}

// RulesPath returns the rule file path resolved against the source root
func (c *Config) RulesPath() string {
	if filepath.IsAbs(c.Rules.Path) || c.Source.Root == "" {
		return c.Rules.Path
	}
	return filepath.Join(c.Source.Root, c.Rules.Path)
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLayer loads a YAML file without defaults, so that only the values it
// sets take part in a Merge
func loadLayer(path string) (*Config, error) {
	config := &Config{}
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Source
	if other.Source.Root != "" {
		c.Source.Root = other.Source.Root
	}
	if len(other.Source.Include) > 0 {
		c.Source.Include = other.Source.Include
	}
	if len(other.Source.Exclude) > 0 {
		c.Source.Exclude = other.Source.Exclude
	}

	// Rules
	if other.Rules.Path != "" {
		c.Rules.Path = other.Rules.Path
	}

	// Report
	if other.Report.Format != "" {
		c.Report.Format = other.Report.Format
	}
	if other.Report.Color != nil {
		color := *other.Report.Color
		c.Report.Color = &color
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}
