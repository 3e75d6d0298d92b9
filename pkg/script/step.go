package script

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/calendar"
	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Script is a compiled, validated test script.
type Script struct {
	SourcePath  string // File the script was loaded from
	Sheet       string // Worksheet name or "document N"
	TestCaseID  string
	Description string
	Steps       []Step
}

// Name returns "path[sheet]" for messages.
func (s *Script) Name() string {
	if s.Sheet == "" {
		return s.SourcePath
	}
	return s.SourcePath + "[" + s.Sheet + "]"
}

// Step is one executable row of a script. Steps are immutable once compiled.
type Step interface {
	Keyword() Keyword
	Line() int
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepKeyword Keyword
	Row         int    // 1-based row or line in the source
	Label       string // Element Name column
}

// Keyword returns the step keyword.
func (b *BaseStep) Keyword() Keyword { return b.StepKeyword }

// Line returns the source row of the step.
func (b *BaseStep) Line() int { return b.Row }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepKeyword) }

// Element is a resolved element reference.
type Element struct {
	Name    string // display name
	Key     string // locator map key
	Locator core.Locator
}

// String returns the display name, or the key when no name is given.
func (e Element) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Key
}

// ============================================
// Script header
// ============================================

// IdentifyStep names the test case.
type IdentifyStep struct {
	BaseStep
	TestCaseID string
}

// DescribeStep describes the test case.
type DescribeStep struct {
	BaseStep
	Description string
}

// OpenBrowserStep opens a browser session. Browser may be empty.
type OpenBrowserStep struct {
	BaseStep
	Browser string
}

// NavigateStep loads a URL.
type NavigateStep struct {
	BaseStep
	URL string
}

// ============================================
// Interaction
// ============================================

// TypeTextStep types text into an element.
type TypeTextStep struct {
	BaseStep
	Element Element
	Text    string
}

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep
	Element Element
}

// SelectFileStep sets a file input's path.
type SelectFileStep struct {
	BaseStep
	Element Element
	Path    string
}

// PickDateStep drives a calendar to a date or range.
// Widget is used for single dates; RangeStart and RangeEnd for ranges.
type PickDateStep struct {
	BaseStep
	Key        string
	Target     calendar.Target
	Widget     calendar.Widget
	RangeStart calendar.Widget
	RangeEnd   calendar.Widget
}

// WaitStep sleeps for a fixed duration.
type WaitStep struct {
	BaseStep
	Duration time.Duration
}

// LoginStep fills a username/password form and submits it.
type LoginStep struct {
	BaseStep
	Username Element
	Password Element
	Submit   Element
	User     string
	Secret   string
}

// SwitchFrameStep switches into an iframe.
type SwitchFrameStep struct {
	BaseStep
	Element Element
}

// DefaultFrameStep switches back to the top-level document.
type DefaultFrameStep struct {
	BaseStep
}

// ============================================
// Assertions
// ============================================

// VerifyTextStep asserts an element's text.
type VerifyTextStep struct {
	BaseStep
	Element  Element
	Expected string
}

// CheckEnabledStep asserts an element is enabled.
type CheckEnabledStep struct {
	BaseStep
	Element Element
}

// CheckDisabledStep asserts an element is disabled.
type CheckDisabledStep struct {
	BaseStep
	Element Element
}

// CheckDisplayedStep asserts an element is displayed.
type CheckDisplayedStep struct {
	BaseStep
	Element Element
}

// ============================================
// Report structure
// ============================================

// StepMarkerStep starts a new report step.
type StepMarkerStep struct {
	BaseStep
	Description    string
	ExpectedResult string
}

// ============================================
// Describe() implementations for report output
// ============================================

// Describe returns a human-readable description of the open browser step.
func (s *OpenBrowserStep) Describe() string {
	if s.Browser == "" {
		return "Open browser"
	}
	return "Open browser " + s.Browser
}

// Describe returns a human-readable description of the navigate step.
func (s *NavigateStep) Describe() string {
	return "Navigate to " + s.URL
}

// Describe returns a human-readable description of the type text step.
func (s *TypeTextStep) Describe() string {
	return fmt.Sprintf("Type %q into %s", s.Text, s.Element)
}

// Describe returns a human-readable description of the click step.
func (s *ClickStep) Describe() string {
	return "Click " + s.Element.String()
}

// Describe returns a human-readable description of the select file step.
func (s *SelectFileStep) Describe() string {
	return fmt.Sprintf("Select file %s in %s", s.Path, s.Element)
}

// Describe returns a human-readable description of the pick date step.
func (s *PickDateStep) Describe() string {
	name := s.Label
	if name == "" {
		name = s.Key
	}
	return fmt.Sprintf("Pick %s in %s", s.Target, name)
}

// Describe returns a human-readable description of the wait step.
func (s *WaitStep) Describe() string {
	return "Wait " + s.Duration.String()
}

// Describe returns a human-readable description of the login step.
// The password is never included.
func (s *LoginStep) Describe() string {
	return "Log in as " + s.User
}

// Describe returns a human-readable description of the switch frame step.
func (s *SwitchFrameStep) Describe() string {
	return "Switch to frame " + s.Element.String()
}

// Describe returns a human-readable description of the default frame step.
func (s *DefaultFrameStep) Describe() string {
	return "Switch to default frame"
}

// Describe returns a human-readable description of the verify text step.
func (s *VerifyTextStep) Describe() string {
	return fmt.Sprintf("Verify %s text is %q", s.Element, s.Expected)
}

// Describe returns a human-readable description of the check enabled step.
func (s *CheckEnabledStep) Describe() string {
	return "Check " + s.Element.String() + " is enabled"
}

// Describe returns a human-readable description of the check disabled step.
func (s *CheckDisabledStep) Describe() string {
	return "Check " + s.Element.String() + " is disabled"
}

// Describe returns a human-readable description of the check displayed step.
func (s *CheckDisplayedStep) Describe() string {
	return "Check " + s.Element.String() + " is displayed"
}

// Describe returns the step description.
func (s *StepMarkerStep) Describe() string {
	return s.Description
}
