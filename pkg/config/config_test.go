package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
screenshots: on_error
highlight: true
maxRetries: 2
stepStatusRollup: worst-of
browser: chromium
headless: false
waitTimeout: 15s
parallel: 4
output: out
locators: locators.yaml
grid:
  enabled: true
  url: ws://grid:9222
calendar:
  maxPages: 60
  minYear: 2010
  maxYear: 2030
log:
  file: run.log
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, core.ScreenshotOnError, cfg.Screenshots)
	assert.True(t, cfg.Highlight)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, RollupWorstOf, cfg.StepStatusRollup)
	assert.Equal(t, "chromium", cfg.Browser)
	assert.False(t, cfg.IsHeadless())
	assert.Equal(t, 15*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, filepath.Join(dir, "locators.yaml"), cfg.Locators)
	assert.Equal(t, Grid{Enabled: true, URL: "ws://grid:9222"}, cfg.Grid)
	assert.Equal(t, Calendar{MaxPages: 60, MinYear: 2010, MaxYear: 2030}, cfg.Calendar)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxRetries: [1"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("maxRetries: 3\n"), 0644))
	cfg, err = LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestNormalize_Defaults(t *testing.T) {
	ResetHome()
	t.Setenv("KEYWORD_RUNNER_HOME", "/home/kr")

	cfg := &Config{}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, core.ScreenshotAlways, cfg.Screenshots)
	assert.Equal(t, RollupLastWrite, cfg.StepStatusRollup)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, DefaultWaitTimeout, cfg.WaitTimeout)
	assert.Equal(t, DefaultBrowser, cfg.Browser)
	assert.True(t, cfg.IsHeadless())
	assert.Equal(t, filepath.Join("/home/kr", "reports"), cfg.Output)
	assert.Equal(t, Calendar{MaxPages: DefaultMaxPages, MinYear: DefaultMinYear, MaxYear: DefaultMaxYear}, cfg.Calendar)
}

func TestNormalize_ScreenshotStrategy(t *testing.T) {
	tests := []struct {
		in   core.ScreenshotStrategy
		want core.ScreenshotStrategy
		warn bool
	}{
		{"always", core.ScreenshotAlways, false},
		{"ALWAYS", core.ScreenshotAlways, false},
		{"on-error", core.ScreenshotOnError, false},
		{"never", core.ScreenshotOnError, false},
		{"sometimes", core.ScreenshotAlways, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			cfg := &Config{Screenshots: tt.in, Output: "out"}
			require.NoError(t, cfg.Normalize())
			assert.Equal(t, tt.want, cfg.Screenshots)
			if tt.warn {
				require.Len(t, cfg.Warnings(), 1)
				assert.Contains(t, cfg.Warnings()[0], `"sometimes"`)
			} else {
				assert.Empty(t, cfg.Warnings())
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	cfg := &Config{
		Output:           "out",
		MaxRetries:       -1,
		StepStatusRollup: "best-of",
		Grid:             Grid{Enabled: true},
		Calendar:         Calendar{MinYear: 2050, MaxYear: 2040},
	}
	err := cfg.Normalize()
	require.Error(t, err)

	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.ErrorIs(t, err, core.ErrMissingRequired)
	for _, field := range []string{"maxRetries", "stepStatusRollup", "grid.url", "minYear"} {
		assert.Contains(t, err.Error(), field)
	}
}
