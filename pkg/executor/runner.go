// Package executor runs compiled scripts against browser drivers and
// writes their reports.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
	"github.com/devicelab-dev/keyword-runner/pkg/report"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
)

// DriverFactory creates the driver for one script. Screenshots are
// written to screenshotDir.
type DriverFactory func(screenshotDir string) (core.Driver, error)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir   string // Reports root; each run gets <OutputDir>/<RunID>
	RunID       string // Generated when empty
	Parallelism int    // Max concurrent scripts (<= 1 = sequential)
	MaxRetries  int
	EmbedAssets bool // Inline screenshots into report.html
	Allure      bool // Also export <OutputDir>/<RunID>/allure-results

	Interpreter Options

	// Live progress callbacks
	OnScriptStart func(idx, total int, s *script.Script)
	OnAttemptEnd  func(s *script.Script, res *AttemptResult, willRetry bool)
	OnScriptEnd   func(res *ScriptResult)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	RunID       string
	Dir         string // <OutputDir>/<RunID>
	SummaryPath string
	Status      core.Status
	Total       int
	Passed      int
	Failed      int
	Duration    time.Duration
	Scripts     []*ScriptResult
}

// Runner orchestrates script execution.
type Runner struct {
	config  RunnerConfig
	factory DriverFactory
}

// New creates a new Runner.
func New(factory DriverFactory, cfg RunnerConfig) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = NewRunID()
	}
	return &Runner{config: cfg, factory: factory}
}

// NewRunID returns a sortable run identifier: start time plus a short
// random suffix.
func NewRunID() string {
	return time.Now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.config.RunID
}

// Run executes all scripts and writes one report per script plus the run
// summary. The returned error joins report-writing and driver failures;
// test failures are reported through RunResult only.
func (r *Runner) Run(ctx context.Context, scripts []*script.Script) (*RunResult, error) {
	start := time.Now()
	runDir := filepath.Join(r.config.OutputDir, r.config.RunID)
	summary := report.NewSummaryStore(filepath.Join(runDir, "summary.xlsx"))
	dirs := scriptDirs(runDir, scripts)

	logger.Info("run %s started: %d script(s), parallelism %d", r.config.RunID, len(scripts), r.config.Parallelism)

	results := make([]*ScriptResult, len(scripts))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	limit := r.config.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, s := range scripts {
		if gctx.Err() != nil {
			break
		}
		i, s := i, s
		g.Go(func() error {
			// Script failures never cancel siblings; only ctx does.
			res, err := r.runScript(ctx, i, len(scripts), s, dirs[i], summary)
			results[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := r.buildRunResult(results)
	out.Dir = runDir
	out.SummaryPath = summary.Path()
	out.Duration = time.Since(start)
	logger.Info("run %s finished: %d passed, %d failed", r.config.RunID, out.Passed, out.Failed)
	return out, errors.Join(errs...)
}

// runScript executes one script with retries, renders its last attempt
// and appends its summary row.
func (r *Runner) runScript(ctx context.Context, idx, total int, s *script.Script, dir string, summary *report.SummaryStore) (*ScriptResult, error) {
	if r.config.OnScriptStart != nil {
		r.config.OnScriptStart(idx, total, s)
	}
	executedAt := time.Now()

	var (
		res  *ScriptResult
		errs []error
	)
	driver, err := r.factory(filepath.Join(dir, "screenshots"))
	if err != nil {
		logger.Error("%s: create driver: %v", s.TestCaseID, err)
		errs = append(errs, fmt.Errorf("%s: create driver: %w", s.Name(), err))
		res = driverFailure(s, err)
	} else {
		orch := &RetryOrchestrator{
			Runner:       NewInterpreter(driver, r.config.Interpreter),
			Sessions:     driver,
			MaxRetries:   r.config.MaxRetries,
			OnAttemptEnd: r.config.OnAttemptEnd,
		}
		res = orch.Run(ctx, s)
	}

	browser := res.Final.Session.Browser
	if browser == "" {
		browser = res.Final.Context.Browser
	}

	doc := report.NewDocument(res.Final.Tree, report.Metadata{
		RunID:          r.config.RunID,
		TestCaseID:     s.TestCaseID,
		Description:    s.Description,
		Source:         s.Name(),
		Browser:        browser,
		BrowserVersion: res.Final.Session.Version,
		ExecutedAt:     executedAt,
		DurationMs:     res.Duration.Milliseconds(),
		MaxAttempts:    r.config.MaxRetries + 1,
	})
	html := report.HTMLRenderer{BaseDir: dir, EmbedAssets: r.config.EmbedAssets}
	if err := report.Write(dir, doc, html, report.JSONRenderer{}); err != nil {
		errs = append(errs, fmt.Errorf("%s: write report: %w", s.Name(), err))
	}
	if r.config.Allure {
		if _, err := report.WriteAllure(filepath.Join(filepath.Dir(dir), "allure-results"), doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: write allure result: %w", s.Name(), err))
		}
	}

	if err := summary.Append(report.SummaryRow{
		RunID:       r.config.RunID,
		TestCaseID:  s.TestCaseID,
		Description: s.Description,
		Status:      doc.Status,
		Browser:     browser,
		Attempts:    res.Attempts,
		Source:      s.Name(),
		ExecutedAt:  executedAt,
	}); err != nil {
		errs = append(errs, fmt.Errorf("%s: append summary: %w", s.Name(), err))
	}

	if r.config.OnScriptEnd != nil {
		r.config.OnScriptEnd(res)
	}
	return res, errors.Join(errs...)
}

// driverFailure builds a failed result for a script that never ran.
func driverFailure(s *script.Script, err error) *ScriptResult {
	tree := report.NewTree(1)
	_ = tree.Record(report.KindStep, "Start driver", err.Error(), core.StatusFail, "")
	tree.Freeze()
	return &ScriptResult{
		Script:   s,
		Status:   core.StatusFail,
		Attempts: 1,
		Error:    err.Error(),
		Final: &AttemptResult{
			Attempt: 1,
			Tree:    tree,
			Context: NewExecutionContext(s.TestCaseID, core.ScreenshotNever, 1),
			Err:     err,
		},
	}
}

// scriptDirs assigns each script its report directory. Scripts sharing a
// test-case ID get a numeric suffix.
func scriptDirs(runDir string, scripts []*script.Script) []string {
	dirs := make([]string, len(scripts))
	seen := make(map[string]int)
	for i, s := range scripts {
		name := SafeName(s.TestCaseID)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		dirs[i] = filepath.Join(runDir, name)
	}
	return dirs
}

// buildRunResult aggregates script results into a run result.
func (r *Runner) buildRunResult(results []*ScriptResult) *RunResult {
	out := &RunResult{RunID: r.config.RunID, Status: core.StatusPass}
	for _, res := range results {
		if res == nil {
			// Not started: the run was cancelled first.
			continue
		}
		out.Scripts = append(out.Scripts, res)
		out.Total++
		if res.Status == core.StatusPass {
			out.Passed++
		} else {
			out.Failed++
		}
	}
	if out.Failed > 0 {
		out.Status = core.StatusFail
	}
	return out
}
