package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/executor"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
	"github.com/devicelab-dev/keyword-runner/pkg/validator"
)

// Slow sub-step threshold (in milliseconds) for warning indicator.
const slowThresholdMs = 5000

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)
)

// console prints live progress. Callbacks arrive from parallel scripts,
// so every write holds mu; with prefix set each line carries its test
// case ID.
type console struct {
	mu     sync.Mutex
	w      io.Writer
	prefix bool
}

func newConsole(w io.Writer, prefix bool) *console {
	return &console{w: w, prefix: prefix}
}

func (c *console) banner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	bold.Fprintf(c.w, "  keyword-runner %s\n", Version)
	gray.Fprintln(c.w, "  Keyword-driven browser test runner")
	fmt.Fprintln(c.w)
}

func (c *console) tag(id string) string {
	if !c.prefix {
		return ""
	}
	return gray.Sprintf("[%s] ", id)
}

func (c *console) onScriptStart(idx, total int, s *script.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n  %s %s (%s)\n",
		cyan.Sprintf("[%d/%d]", idx+1, total), bold.Sprint(s.TestCaseID), s.Name())
	if s.Description != "" {
		gray.Fprintf(c.w, "  %s\n", s.Description)
	}
	if !c.prefix {
		fmt.Fprintln(c.w, strings.Repeat("─", 60))
	}
}

func (c *console) onSubStep(ec *executor.ExecutionContext, desc string, passed bool, durationMs int64, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	durStr := formatDuration(durationMs)
	tag := c.tag(ec.TestCaseID)

	if !passed {
		fmt.Fprintf(c.w, "    %s%s %s (%s)\n", tag, red.Sprint("✗"), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(c.w, "      %s %s\n", gray.Sprint("╰─"), errMsg)
		}
		return
	}
	if durationMs >= slowThresholdMs {
		fmt.Fprintf(c.w, "    %s%s %s %s\n", tag, yellow.Sprint("⚠"), desc, yellow.Sprintf("(%s)", durStr))
		return
	}
	fmt.Fprintf(c.w, "    %s%s %s (%s)\n", tag, green.Sprint("✓"), desc, durStr)
}

func (c *console) onAttemptEnd(s *script.Script, res *executor.AttemptResult, willRetry bool) {
	if !willRetry {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "  %s%s attempt %d failed (%s), retrying\n", c.tag(s.TestCaseID), yellow.Sprint("↻"), res.Attempt, res.Category())
}

func (c *console) onScriptEnd(res *executor.ScriptResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dur := gray.Sprint(formatDuration(res.Duration.Milliseconds()))
	if res.Status == core.StatusPass {
		fmt.Fprintf(c.w, "%s %s %s\n", green.Sprint("✓"), res.Script.TestCaseID, dur)
		return
	}
	fmt.Fprintf(c.w, "%s %s %s\n", red.Sprint("✗"), res.Script.TestCaseID, dur)
}

func (c *console) warn(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	yellow.Fprintf(c.w, "\n  Warning: %v\n", err)
}

func (c *console) configWarnings(warnings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range warnings {
		yellow.Fprintf(c.w, "  Warning: %s\n", w)
	}
}

func (c *console) validationErrors(errs []error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	red.Fprintf(c.w, "  %d validation error(s):\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(c.w, "    %s %v\n", red.Sprint("✗"), err)
	}
	fmt.Fprintln(c.w)
}

// validated prints the outcome of the validate command.
func (c *console) validated(result *validator.Result) {
	c.mu.Lock()
	for _, file := range result.Files {
		fmt.Fprintf(c.w, "  %s %s\n", green.Sprint("✓"), file)
	}
	c.mu.Unlock()

	if !result.IsValid() {
		c.validationErrors(result.Errors)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n  %d file(s), %d test case(s) valid\n", len(result.Files), len(result.Scripts))
}

func (c *console) summary(result *executor.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tableWidth := 80
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(c.w, "  %-44s %8s %9s %12s\n", "Test case", "Status", "Attempts", "Duration")
	fmt.Fprintln(c.w, strings.Repeat("─", tableWidth))

	for _, sr := range result.Scripts {
		name := sr.Script.TestCaseID
		if sr.Script.Description != "" {
			name += " " + sr.Script.Description
		}
		if len(name) > 44 {
			name = name[:41] + "..."
		}
		status := green.Sprintf("%8s", "✓ PASS")
		if sr.Status != core.StatusPass {
			status = red.Sprintf("%8s", "✗ FAIL")
		}
		fmt.Fprintf(c.w, "  %-44s %s %9d %12s\n", name, status, sr.Attempts, formatDuration(sr.Duration.Milliseconds()))
	}

	fmt.Fprintln(c.w, strings.Repeat("─", tableWidth))
	totals := green.Sprintf("%8s", fmt.Sprintf("%d/%d", result.Passed, result.Total))
	if result.Failed > 0 {
		totals = red.Sprintf("%8s", fmt.Sprintf("%d/%d", result.Passed, result.Total))
	}
	fmt.Fprintf(c.w, "  %s %s %9s %12s\n", bold.Sprintf("%-44s", "TOTAL"), totals, "", formatDuration(result.Duration.Milliseconds()))
	fmt.Fprintln(c.w, strings.Repeat("═", tableWidth))

	if result.Dir != "" {
		fmt.Fprintf(c.w, "\n  Reports: %s\n", result.Dir)
		fmt.Fprintf(c.w, "  Summary: %s\n", result.SummaryPath)
	}
	fmt.Fprintln(c.w)
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
