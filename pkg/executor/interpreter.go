package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/calendar"
	"github.com/devicelab-dev/keyword-runner/pkg/config"
	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
	"github.com/devicelab-dev/keyword-runner/pkg/report"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
)

// Options configures keyword execution.
type Options struct {
	Screenshots    core.ScreenshotStrategy
	Highlight      bool
	WaitTimeout    time.Duration // Interactability wait per element
	BrowserHint    string        // Command-line browser; overrides the script
	DefaultBrowser string        // Used when neither hint nor script names one
	MaxPages       int           // Calendar paging bound
	Rollup         report.Rollup
	StrictSteps    bool // Reject sub-steps before the first step marker

	// Sleep implements the wait keyword. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Live progress
	OnSubStep func(ec *ExecutionContext, desc string, passed bool, durationMs int64, err string)
	OnStep    func(ec *ExecutionContext, desc string)
}

// OptionsFromConfig maps a normalized config to interpreter options.
func OptionsFromConfig(cfg *config.Config, browserHint string) Options {
	return Options{
		Screenshots:    cfg.Screenshots.Normalize(),
		Highlight:      cfg.Highlight,
		WaitTimeout:    cfg.WaitTimeout,
		BrowserHint:    browserHint,
		DefaultBrowser: cfg.Browser,
		MaxPages:       cfg.Calendar.MaxPages,
		Rollup:         report.ParseRollup(cfg.StepStatusRollup),
	}
}

// AttemptResult is the outcome of one pass over a script.
type AttemptResult struct {
	Attempt  int
	Tree     *report.Tree // frozen
	Context  *ExecutionContext
	Session  core.SessionInfo
	Err      error // first failure, nil when the attempt passed
	Duration time.Duration
}

// Category classifies the attempt's failure; ErrCategoryNone when it passed.
func (r *AttemptResult) Category() core.ErrorCategory {
	return core.CategoryOf(r.Err)
}

// Passed reports whether the attempt passed.
func (r *AttemptResult) Passed() bool {
	return r.Err == nil && r.Tree.RunStatus() == core.StatusPass
}

// Interpreter walks a compiled script step by step against a Driver.
type Interpreter struct {
	driver    core.Driver
	opts      Options
	navigator *calendar.Navigator
	session   core.SessionInfo // set by open-browser during an attempt
}

// NewInterpreter creates an interpreter bound to driver.
func NewInterpreter(driver core.Driver, opts Options) *Interpreter {
	if opts.DefaultBrowser == "" {
		opts.DefaultBrowser = config.DefaultBrowser
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = config.DefaultWaitTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	opts.Screenshots = opts.Screenshots.Normalize()
	return &Interpreter{
		driver:    driver,
		opts:      opts,
		navigator: calendar.NewNavigator(driver, opts.MaxPages),
	}
}

// RunAttempt executes every step of s into a fresh report tree. The first
// failing step ends the attempt; the session is left open for the caller
// to close.
func (in *Interpreter) RunAttempt(ctx context.Context, s *script.Script, attempt int) *AttemptResult {
	start := time.Now()

	var treeOpts []report.Option
	treeOpts = append(treeOpts, report.WithRollup(in.opts.Rollup))
	if in.opts.StrictSteps {
		treeOpts = append(treeOpts, report.WithStrictSteps())
	}
	tree := report.NewTree(attempt, treeOpts...)
	ec := NewExecutionContext(s.TestCaseID, in.opts.Screenshots, attempt)
	res := &AttemptResult{Attempt: attempt, Tree: tree, Context: ec}
	in.session = core.SessionInfo{}

	logger.Info("attempt %d of %s (%s) started", attempt, s.TestCaseID, s.Name())

	for _, step := range s.Steps {
		kw := step.Keyword()

		if marker, ok := step.(*script.StepMarkerStep); ok {
			ec.beginStep()
			if err := tree.Record(report.KindStep, marker.Description, marker.ExpectedResult, core.StatusPass, ""); err != nil {
				res.Err = err
				break
			}
			if in.opts.OnStep != nil {
				in.opts.OnStep(ec, marker.Description)
			}
			continue
		}

		var result *core.CommandResult
		if ctx.Err() != nil {
			result = core.Failed(ctx.Err(), "execution cancelled")
		} else {
			result = in.execute(ctx, ec, s, step)
		}

		if !kw.RecordsSubStep() {
			if !result.Success {
				res.Err = result.Error
				break
			}
			continue
		}

		status := result.Status()
		message := result.Message
		if status.IsFailure() {
			message = result.ErrorMessage()
		}
		shot := in.capture(ctx, ec, status)

		if err := tree.Record(report.KindSubStep, step.Describe(), message, status, shot); err != nil {
			// Strict trees refuse sub-steps before the first marker.
			logger.Error("%s:%d: %v", s.Name(), step.Line(), err)
			res.Err = err
			break
		}
		ec.SubStepOrdinal++

		if in.opts.OnSubStep != nil {
			in.opts.OnSubStep(ec, step.Describe(), status == core.StatusPass, result.Duration.Milliseconds(), result.ErrorMessage())
		}

		if status.IsFailure() {
			logger.Warn("%s:%d: %s failed (%s): %s", s.Name(), step.Line(), kw, core.CategoryOf(result.Error), message)
			res.Err = result.Error
			break
		}
		logger.Debug("%s:%d: %s passed", s.Name(), step.Line(), kw)
	}

	if res.Err != nil && tree.RunStatus() == core.StatusPass {
		// A failure that never reached a sub-step still fails the attempt.
		_ = tree.Record(report.KindStep, "Execution aborted", res.Err.Error(), core.StatusFail, "")
	}
	tree.Freeze()
	res.Session = in.session
	res.Duration = time.Since(start)
	logger.Info("attempt %d of %s finished: %s", attempt, s.TestCaseID, tree.RunStatus().RunLabel())
	return res
}

// capture takes a screenshot when the strategy calls for one. Capture
// errors are logged and never change the sub-step outcome.
func (in *Interpreter) capture(ctx context.Context, ec *ExecutionContext, status core.Status) string {
	if !core.Decide(ec.Strategy, status) {
		return ""
	}
	name := ec.nextScreenshotName()
	handle, err := in.driver.CaptureScreenshot(ctx, name)
	if err != nil {
		logger.Warn("screenshot %s not captured: %v", name, err)
		return ""
	}
	return handle
}

// execute runs one step and converts driver errors into a CommandResult.
func (in *Interpreter) execute(ctx context.Context, ec *ExecutionContext, s *script.Script, step script.Step) *core.CommandResult {
	start := time.Now()
	result := in.dispatch(ctx, ec, s, step)
	result.Duration = time.Since(start)
	return result
}

func (in *Interpreter) dispatch(ctx context.Context, ec *ExecutionContext, s *script.Script, step script.Step) *core.CommandResult {
	switch st := step.(type) {
	// Header
	case *script.IdentifyStep, *script.DescribeStep:
		return core.Passed("")
	case *script.OpenBrowserStep:
		return in.openBrowser(ctx, ec, st)
	case *script.NavigateStep:
		return in.navigate(ctx, st)

	// Interaction
	case *script.TypeTextStep:
		return in.typeText(ctx, st.Element, st.Text)
	case *script.ClickStep:
		return in.click(ctx, st.Element)
	case *script.SelectFileStep:
		return in.selectFile(ctx, s, st)
	case *script.PickDateStep:
		return in.pickDate(ctx, st)
	case *script.WaitStep:
		return in.wait(ctx, st)
	case *script.LoginStep:
		return in.login(ctx, st)
	case *script.SwitchFrameStep:
		return in.switchFrame(ctx, st)
	case *script.DefaultFrameStep:
		return in.defaultFrame(ctx)

	// Assertions
	case *script.VerifyTextStep:
		return in.verifyText(ctx, st)
	case *script.CheckEnabledStep:
		return in.checkEnabled(ctx, st.Element, true)
	case *script.CheckDisabledStep:
		return in.checkEnabled(ctx, st.Element, false)
	case *script.CheckDisplayedStep:
		return in.checkDisplayed(ctx, st.Element)

	default:
		return core.Failed(core.ErrUnknownKeyword.WithMessage(
			fmt.Sprintf("no handler for keyword %q", step.Keyword())), "")
	}
}

// ResolveBrowser picks the session browser: command line, then script,
// then the configured default.
func ResolveBrowser(hint, fromScript, fallback string) string {
	for _, b := range []string{hint, fromScript, fallback} {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			return b
		}
	}
	return config.DefaultBrowser
}

func (in *Interpreter) openBrowser(ctx context.Context, ec *ExecutionContext, st *script.OpenBrowserStep) *core.CommandResult {
	browser := ResolveBrowser(in.opts.BrowserHint, st.Browser, in.opts.DefaultBrowser)
	ec.Browser = browser
	info, err := in.driver.OpenSession(ctx, browser)
	if err != nil {
		return core.Failed(err, "")
	}
	if info.Browser == "" {
		info.Browser = browser
	}
	in.session = info
	ec.Browser = info.Browser
	msg := "Opened " + ec.Browser
	if info.Version != "" {
		msg += " " + info.Version
	}
	return core.Passed(msg)
}

func (in *Interpreter) navigate(ctx context.Context, st *script.NavigateStep) *core.CommandResult {
	if err := in.driver.Navigate(ctx, st.URL); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

// interactable waits for an element to accept input and outlines it when
// highlighting is on.
func (in *Interpreter) interactable(ctx context.Context, el script.Element) (core.Element, error) {
	found, err := in.driver.WaitUntilInteractable(ctx, el.Locator, in.opts.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", el, err)
	}
	in.highlight(ctx, found)
	return found, nil
}

// present finds an element without waiting for it to be interactable.
func (in *Interpreter) present(ctx context.Context, el script.Element) (core.Element, error) {
	found, err := in.driver.Find(ctx, el.Locator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", el, err)
	}
	in.highlight(ctx, found)
	return found, nil
}

func (in *Interpreter) highlight(ctx context.Context, el core.Element) {
	if !in.opts.Highlight {
		return
	}
	if err := in.driver.Highlight(ctx, el); err != nil {
		logger.Debug("highlight %s: %v", el.Locator(), err)
	}
}

func (in *Interpreter) typeText(ctx context.Context, el script.Element, text string) *core.CommandResult {
	found, err := in.interactable(ctx, el)
	if err != nil {
		return core.Failed(err, "")
	}
	if err := in.driver.TypeText(ctx, found, text); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

func (in *Interpreter) click(ctx context.Context, el script.Element) *core.CommandResult {
	found, err := in.interactable(ctx, el)
	if err != nil {
		return core.Failed(err, "")
	}
	if err := in.driver.Click(ctx, found); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

func (in *Interpreter) selectFile(ctx context.Context, s *script.Script, st *script.SelectFileStep) *core.CommandResult {
	path := st.Path
	if !filepath.IsAbs(path) && s.SourcePath != "" {
		path = filepath.Join(filepath.Dir(s.SourcePath), path)
	}
	// File inputs are commonly hidden behind a styled button.
	found, err := in.present(ctx, st.Element)
	if err != nil {
		return core.Failed(err, "")
	}
	if err := in.driver.SetFile(ctx, found, path); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed(filepath.Base(path))
}

func (in *Interpreter) pickDate(ctx context.Context, st *script.PickDateStep) *core.CommandResult {
	var err error
	if st.Target.IsRange() {
		err = in.navigator.SelectRange(ctx, st.RangeStart, st.RangeEnd, st.Target)
	} else {
		err = in.navigator.Select(ctx, st.Widget, st.Target.Start)
	}
	if err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("Selected " + st.Target.String())
}

func (in *Interpreter) wait(ctx context.Context, st *script.WaitStep) *core.CommandResult {
	if err := in.opts.Sleep(ctx, st.Duration); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *Interpreter) login(ctx context.Context, st *script.LoginStep) *core.CommandResult {
	if r := in.typeText(ctx, st.Username, st.User); !r.Success {
		return r
	}
	if r := in.typeText(ctx, st.Password, st.Secret); !r.Success {
		return r
	}
	if r := in.click(ctx, st.Submit); !r.Success {
		return r
	}
	return core.Passed("Logged in as " + st.User)
}

func (in *Interpreter) switchFrame(ctx context.Context, st *script.SwitchFrameStep) *core.CommandResult {
	found, err := in.present(ctx, st.Element)
	if err != nil {
		return core.Failed(err, "")
	}
	if err := in.driver.SwitchToFrame(ctx, found); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

func (in *Interpreter) defaultFrame(ctx context.Context) *core.CommandResult {
	if err := in.driver.SwitchToDefaultFrame(ctx); err != nil {
		return core.Failed(err, "")
	}
	return core.Passed("")
}

func (in *Interpreter) verifyText(ctx context.Context, st *script.VerifyTextStep) *core.CommandResult {
	found, err := in.present(ctx, st.Element)
	if err != nil {
		return core.Failed(err, "")
	}
	actual, err := in.driver.ReadText(ctx, found)
	if err != nil {
		return core.Failed(err, "")
	}
	if strings.TrimSpace(actual) != strings.TrimSpace(st.Expected) {
		return core.Failed(core.ErrTextMismatch.
			WithMessage(fmt.Sprintf("%s: expected %q, got %q", st.Element, st.Expected, actual)).
			WithDetails(map[string]interface{}{"expected": st.Expected, "actual": actual}), "")
	}
	return core.Passed(fmt.Sprintf("Text is %q", actual))
}

func (in *Interpreter) checkEnabled(ctx context.Context, el script.Element, want bool) *core.CommandResult {
	found, err := in.present(ctx, el)
	if err != nil {
		return core.Failed(err, "")
	}
	enabled, err := in.driver.IsEnabled(ctx, found)
	if err != nil {
		return core.Failed(err, "")
	}
	if enabled != want {
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return core.Failed(core.ErrConditionNotMet.WithMessage(fmt.Sprintf("%s is %s", el, state)), "")
	}
	return core.Passed("")
}

func (in *Interpreter) checkDisplayed(ctx context.Context, el script.Element) *core.CommandResult {
	found, err := in.present(ctx, el)
	if err != nil {
		return core.Failed(err, "")
	}
	shown, err := in.driver.IsDisplayed(ctx, found)
	if err != nil {
		return core.Failed(err, "")
	}
	if !shown {
		return core.Failed(core.ErrConditionNotMet.WithMessage(fmt.Sprintf("%s is not displayed", el)), "")
	}
	return core.Passed("")
}
