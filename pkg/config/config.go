// Package config handles configuration for keyword-runner.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Step status rollup modes.
const (
	RollupLastWrite = "last-write" // a step takes the status of its latest sub-step
	RollupWorstOf   = "worst-of"   // a step fails if any sub-step failed
)

// Defaults applied by Normalize.
const (
	DefaultBrowser     = "chrome"
	DefaultWaitTimeout = 10 * time.Second
	DefaultMaxPages    = 240
	DefaultMinYear     = 2000
	DefaultMaxYear     = 2099
	DefaultLogSizeMB   = 10
	DefaultLogBackups  = 3
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Evidence and reporting
	Screenshots      core.ScreenshotStrategy `yaml:"screenshots"`      // always | on-error | never
	Highlight        bool                    `yaml:"highlight"`        // Outline elements before acting on them
	StepStatusRollup string                  `yaml:"stepStatusRollup"` // last-write | worst-of
	Output           string                  `yaml:"output"`           // Reports directory

	// Execution settings
	MaxRetries  int           `yaml:"maxRetries"`
	Parallel    int           `yaml:"parallel"` // Scripts run at once
	Locators    string        `yaml:"locators"` // Locator map file
	WaitTimeout time.Duration `yaml:"waitTimeout"`

	// Browser settings
	Browser  string `yaml:"browser"`
	Headless *bool  `yaml:"headless"`
	Grid     Grid   `yaml:"grid"`

	Calendar Calendar `yaml:"calendar"`
	Log      Log      `yaml:"log"`

	warnings []string
}

// Grid configures remote browser execution.
type Grid struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"` // DevTools websocket or http endpoint
}

// Calendar bounds calendar navigation.
type Calendar struct {
	MaxPages int `yaml:"maxPages"`
	MinYear  int `yaml:"minYear"`
	MaxYear  int `yaml:"maxYear"`
}

// Log configures the run log file.
type Log struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Warnings returns the problems Normalize corrected instead of rejecting.
// Normalize runs before the run log exists, so callers log them.
func (c *Config) Warnings() []string {
	return c.warnings
}

// IsHeadless reports whether the browser runs headless (default true).
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Relative locator paths are relative to the config file.
	if cfg.Locators != "" && !filepath.IsAbs(cfg.Locators) {
		cfg.Locators = filepath.Join(filepath.Dir(path), cfg.Locators)
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Normalize applies defaults and validates the configuration.
//
// The screenshot strategy "never" becomes "on-error" so failure evidence
// is always kept. An unrecognised strategy falls back to "always" and is
// reported through Warnings. Every other problem is returned, joined.
func (c *Config) Normalize() error {
	var errs []error
	c.warnings = nil

	switch {
	case c.Screenshots == "":
		c.Screenshots = core.ScreenshotAlways
	default:
		s, err := core.ParseScreenshotStrategy(string(c.Screenshots))
		if err != nil {
			c.warnings = append(c.warnings, fmt.Sprintf("unknown screenshot strategy %q, using %q", c.Screenshots, core.ScreenshotAlways))
			s = core.ScreenshotAlways
		}
		c.Screenshots = s.Normalize()
	}

	switch strings.ToLower(strings.TrimSpace(c.StepStatusRollup)) {
	case "", RollupLastWrite, "lastwrite":
		c.StepStatusRollup = RollupLastWrite
	case RollupWorstOf, "worstof":
		c.StepStatusRollup = RollupWorstOf
	default:
		errs = append(errs, invalid("stepStatusRollup", "unknown mode %q", c.StepStatusRollup))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, invalid("maxRetries", "must be >= 0, got %d", c.MaxRetries))
	}
	if c.Parallel < 0 {
		errs = append(errs, invalid("parallel", "must be >= 0, got %d", c.Parallel))
	}
	if c.Parallel == 0 {
		c.Parallel = 1
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, invalid("waitTimeout", "must be >= 0, got %s", c.WaitTimeout))
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.Browser == "" {
		c.Browser = DefaultBrowser
	}
	if c.Output == "" {
		c.Output = GetReportsDir()
	}

	if c.Grid.Enabled && c.Grid.URL == "" {
		errs = append(errs, core.ErrMissingRequired.WithMessage("grid.url is required when grid.enabled is true"))
	}

	if c.Calendar.MaxPages == 0 {
		c.Calendar.MaxPages = DefaultMaxPages
	}
	if c.Calendar.MinYear == 0 {
		c.Calendar.MinYear = DefaultMinYear
	}
	if c.Calendar.MaxYear == 0 {
		c.Calendar.MaxYear = DefaultMaxYear
	}
	if c.Calendar.MaxPages < 0 {
		errs = append(errs, invalid("calendar.maxPages", "must be > 0, got %d", c.Calendar.MaxPages))
	}
	if c.Calendar.MinYear > c.Calendar.MaxYear {
		errs = append(errs, invalid("calendar", "minYear %d is after maxYear %d", c.Calendar.MinYear, c.Calendar.MaxYear))
	}

	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = DefaultLogSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = DefaultLogBackups
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return errors.Join(errs...)
}

func invalid(field, format string, args ...interface{}) error {
	return core.ErrInvalidConfig.WithMessage(field + ": " + fmt.Sprintf(format, args...))
}
