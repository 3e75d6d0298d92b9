package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// ExecutionContext holds the counters of one attempt. A retry starts
// from a fresh context; only Attempt carries over.
type ExecutionContext struct {
	TestCaseID     string
	Browser        string // resolved when the browser opens
	StepOrdinal    int    // explicit steps started so far
	SubStepOrdinal int    // sub-steps recorded in the current step
	ScreenshotSeq  int    // screenshots captured so far in this attempt
	Strategy       core.ScreenshotStrategy
	Attempt        int // 1-based
}

// NewExecutionContext creates the context for one attempt.
func NewExecutionContext(testCaseID string, strategy core.ScreenshotStrategy, attempt int) *ExecutionContext {
	return &ExecutionContext{
		TestCaseID: testCaseID,
		Strategy:   strategy,
		Attempt:    attempt,
	}
}

// beginStep advances the step ordinal and clears the sub-step counter.
func (c *ExecutionContext) beginStep() {
	c.StepOrdinal++
	c.SubStepOrdinal = 0
}

// nextScreenshotName advances the sequence and returns the file-safe
// name for the capture.
func (c *ExecutionContext) nextScreenshotName() string {
	c.ScreenshotSeq++
	browser := c.Browser
	if browser == "" {
		browser = "browser"
	}
	return ScreenshotName(c.TestCaseID, browser, c.ScreenshotSeq)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName replaces characters that are unsafe in file names with '_'.
func SafeName(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// ScreenshotName returns "<test-case>_<browser>_<seq>" with the sequence
// zero-padded to three digits, e.g. "TC-001_chrome_007".
func ScreenshotName(testCaseID, browser string, seq int) string {
	return fmt.Sprintf("%s_%s_%03d", SafeName(testCaseID), SafeName(browser), seq)
}
