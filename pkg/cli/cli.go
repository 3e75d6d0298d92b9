// Package cli provides the command-line interface for keyword-runner.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"KEYWORD_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "locators",
		Aliases: []string{"l"},
		Usage:   "Locator map file (overrides config locators)",
		EnvVars: []string{"KEYWORD_RUNNER_LOCATORS"},
	},
	&cli.StringSliceFlag{
		Name:  "include",
		Usage: "Only run test cases whose ID matches (glob, repeatable)",
	},
	&cli.StringSliceFlag{
		Name:  "exclude",
		Usage: "Skip test cases whose ID matches (glob, repeatable)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"KEYWORD_RUNNER_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Run log file (default: <home>/logs/keyword-runner.log)",
		EnvVars: []string{"KEYWORD_RUNNER_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	app := &cli.App{
		Name:    "keyword-runner",
		Usage:   "Keyword-driven browser test runner",
		Version: Version,
		Description: `Keyword Runner executes spreadsheet or YAML test scripts against
Chromium-family browsers and writes an HTML report per test case.

Examples:
  keyword-runner run scripts/login.xlsx
  keyword-runner run --parallel 4 --retries 1 scripts/
  keyword-runner validate scripts/`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				color.NoColor = true
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads KEY=value pairs from path into the process environment
// so flag EnvVars can see them. Variables already set win. A missing file
// is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
