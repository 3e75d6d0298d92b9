package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/keyword-runner/pkg/calendar"
	"github.com/devicelab-dev/keyword-runner/pkg/config"
	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/driver/browser"
	"github.com/devicelab-dev/keyword-runner/pkg/executor"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
	"github.com/devicelab-dev/keyword-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run test scripts",
	ArgsUsage: "<script-file or folder>...",
	Description: `Run keyword scripts from workbooks (.xlsx, .xlsm) or YAML files.

Every file is validated before any browser starts. Each test case gets
its own report under <output>/<run-id>/<test-case-id>/ and one row in
<output>/<run-id>/summary.xlsx.

Examples:
  keyword-runner run login.xlsx
  keyword-runner run --browser edge --headless=false scripts/
  keyword-runner --include 'LOGIN-*' run --screenshots on-error scripts/`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Reports directory",
			EnvVars: []string{"KEYWORD_RUNNER_OUTPUT"},
		},
		&cli.IntFlag{
			Name:    "parallel",
			Aliases: []string{"p"},
			Usage:   "Number of scripts to run at once",
		},
		&cli.IntFlag{
			Name:    "retries",
			Aliases: []string{"r"},
			Usage:   "Re-run a failed script up to N more times",
		},
		&cli.StringFlag{
			Name:    "browser",
			Aliases: []string{"b"},
			Usage:   "Browser to use (chrome, edge); overrides the scripts' choice",
			EnvVars: []string{"KEYWORD_RUNNER_BROWSER"},
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the browser without a window",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "screenshots",
			Usage: "Screenshot strategy (always, on-error, never)",
		},
		&cli.BoolFlag{
			Name:  "highlight",
			Usage: "Outline elements before acting on them",
		},
		&cli.StringFlag{
			Name:    "grid-url",
			Usage:   "DevTools endpoint of a remote browser",
			EnvVars: []string{"KEYWORD_RUNNER_GRID_URL"},
		},
		&cli.StringFlag{
			Name:    "edge-path",
			Usage:   "Microsoft Edge executable",
			EnvVars: []string{"KEYWORD_RUNNER_EDGE_PATH"},
		},
		&cli.StringSliceFlag{
			Name:  "browser-arg",
			Usage: "Extra browser command-line flag, name or name=value (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "embed-assets",
			Usage: "Inline screenshots into report.html",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write Allure results to <output>/<run-id>/allure-results",
		},
	},
	Action: runScripts,
}

// runOptions holds command-line overrides. Pointer fields are nil when the
// flag was not given, so config.yaml values survive.
type runOptions struct {
	ConfigPath   string
	LocatorsPath string
	Include      []string
	Exclude      []string
	Verbose      bool
	LogFile      string

	Output      string
	Parallel    *int
	Retries     *int
	Browser     string
	Headless    *bool
	Screenshots string
	Highlight   *bool
	GridURL     string
	EdgePath    string
	BrowserArgs []string
	EmbedAssets bool
	Allure      bool
}

func runOptionsFrom(c *cli.Context) runOptions {
	o := runOptions{
		ConfigPath:   c.String("config"),
		LocatorsPath: c.String("locators"),
		Include:      c.StringSlice("include"),
		Exclude:      c.StringSlice("exclude"),
		Verbose:      c.Bool("verbose"),
		LogFile:      c.String("log-file"),
		Output:       c.String("output"),
		Browser:      c.String("browser"),
		Screenshots:  c.String("screenshots"),
		GridURL:      c.String("grid-url"),
		EdgePath:     c.String("edge-path"),
		BrowserArgs:  c.StringSlice("browser-arg"),
		EmbedAssets:  c.Bool("embed-assets"),
		Allure:       c.Bool("allure"),
	}
	if c.IsSet("parallel") {
		v := c.Int("parallel")
		o.Parallel = &v
	}
	if c.IsSet("retries") {
		v := c.Int("retries")
		o.Retries = &v
	}
	if c.IsSet("headless") {
		v := c.Bool("headless")
		o.Headless = &v
	}
	if c.IsSet("highlight") {
		v := c.Bool("highlight")
		o.Highlight = &v
	}
	return o
}

// apply layers the overrides on top of cfg. It runs before Normalize.
func (o runOptions) apply(cfg *config.Config) {
	if o.LocatorsPath != "" {
		cfg.Locators = o.LocatorsPath
	}
	if o.Output != "" {
		cfg.Output = o.Output
	}
	if o.Parallel != nil {
		cfg.Parallel = *o.Parallel
	}
	if o.Retries != nil {
		cfg.MaxRetries = *o.Retries
	}
	if o.Headless != nil {
		cfg.Headless = o.Headless
	}
	if o.Screenshots != "" {
		cfg.Screenshots = core.ScreenshotStrategy(o.Screenshots)
	}
	if o.Highlight != nil {
		cfg.Highlight = *o.Highlight
	}
	if o.GridURL != "" {
		cfg.Grid.Enabled = true
		cfg.Grid.URL = o.GridURL
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
}

// loadConfig reads config.yaml, applies the overrides and normalizes it.
func loadConfig(o runOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o.apply(cfg)
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(config.GetLogsDir(), "keyword-runner.log")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// initLogging opens the run log and replays the warnings collected while
// the config was normalized.
func initLogging(cfg *config.Config) {
	err := logger.Init(logger.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logger: %v\n", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config: %s", w)
	}
}

// loadScripts compiles every script under paths. The locator map and the
// config file are never treated as scripts.
func loadScripts(cfg *config.Config, o runOptions, paths []string) (*validator.Result, error) {
	locators := script.LocatorMap{}
	if cfg.Locators != "" {
		var err error
		locators, err = script.LoadLocators(cfg.Locators)
		if err != nil {
			return nil, fmt.Errorf("failed to load locators: %w", err)
		}
	}

	opts := script.Options{Years: calendar.Years{Min: cfg.Calendar.MinYear, Max: cfg.Calendar.MaxYear}}
	v := validator.New(locators, opts, o.Include, o.Exclude)
	if cfg.Locators != "" {
		v.Skip(cfg.Locators)
	}
	if o.ConfigPath != "" {
		v.Skip(o.ConfigPath)
	} else {
		v.Skip("config.yaml", "config.yml")
	}
	return v.Validate(paths...), nil
}

// newDriverFactory returns a factory creating one browser driver per script.
func newDriverFactory(cfg *config.Config, o runOptions) executor.DriverFactory {
	return func(screenshotDir string) (core.Driver, error) {
		bc := browser.Config{
			Headless:      cfg.IsHeadless(),
			ScreenshotDir: screenshotDir,
			FindTimeout:   cfg.WaitTimeout,
			EdgePath:      o.EdgePath,
			Args:          o.BrowserArgs,
		}
		if cfg.Grid.Enabled {
			bc.RemoteURL = cfg.Grid.URL
		}
		return browser.NewDriver(bc), nil
	}
}

func runScripts(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script file or folder is required")
	}

	o := runOptionsFrom(c)
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logger.Close()

	out := newConsole(os.Stdout, cfg.Parallel > 1)
	out.configWarnings(cfg.Warnings())

	result, err := loadScripts(cfg, o, c.Args().Slice())
	if err != nil {
		return err
	}
	if !result.IsValid() {
		out.validationErrors(result.Errors)
		return cli.Exit(fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)), 1)
	}
	if len(result.Scripts) == 0 {
		return cli.Exit("no test cases matched", 1)
	}

	out.banner()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := executor.OptionsFromConfig(cfg, o.Browser)
	opts.OnSubStep = out.onSubStep

	runner := executor.New(newDriverFactory(cfg, o), executor.RunnerConfig{
		OutputDir:     cfg.Output,
		Parallelism:   cfg.Parallel,
		MaxRetries:    cfg.MaxRetries,
		EmbedAssets:   o.EmbedAssets,
		Allure:        o.Allure,
		Interpreter:   opts,
		OnScriptStart: out.onScriptStart,
		OnAttemptEnd:  out.onAttemptEnd,
		OnScriptEnd:   out.onScriptEnd,
	})

	logger.Info("=== Run %s started ===", runner.RunID())
	logger.Info("Output directory: %s", cfg.Output)
	logger.Info("Browser: %s (headless=%v, grid=%v)", cfg.Browser, cfg.IsHeadless(), cfg.Grid.Enabled)

	res, runErr := runner.Run(ctx, result.Scripts)
	out.summary(res)
	if runErr != nil {
		logger.Error("run %s: %v", res.RunID, runErr)
		out.warn(runErr)
	}
	logger.Info("=== Run %s finished: %s ===", res.RunID, res.Status.RunLabel())

	return exitStatus(res, ctx.Err())
}

// exitStatus maps the run outcome to the process exit code.
func exitStatus(res *executor.RunResult, ctxErr error) error {
	if ctxErr != nil {
		return cli.Exit("run interrupted", 130)
	}
	if res.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d test case(s) failed", res.Failed, res.Total), 1)
	}
	return nil
}
