// Package core provides the execution model types for keyword-runner.
package core

// Status is the outcome of a recorded action. There is no pending or
// skipped state: a script aborts on the first failure, so every recorded
// outcome is either a pass or a fail.
type Status int

const (
	StatusPass Status = iota // Action completed as expected
	StatusFail               // Action failed or an assertion did not hold
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "Pass"
	case StatusFail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// IsFailure returns true for StatusFail
func (s Status) IsFailure() bool {
	return s == StatusFail
}

// RunLabel returns the report wording for an overall run status
func (s Status) RunLabel() string {
	if s == StatusFail {
		return "FAILED"
	}
	return "PASSED"
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryValidation                      // Malformed script, unknown keyword, bad literal
	ErrCategoryAssertion                       // Element not found, text mismatch, state check failed
	ErrCategoryTimeout                         // Wait for an element timed out
	ErrCategoryConnection                      // Browser session missing or lost
	ErrCategoryNavigation                      // Calendar target never reached or day not matched
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryValidation:
		return "validation"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryNavigation:
		return "navigation"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
