package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, navigation_failed, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code, so a copy made with
// WithCause or WithMessage still matches its sentinel.
func (e *ExecutionError) Is(target error) bool {
	var other *ExecutionError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code != "" && other.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	if err == nil {
		return ErrCategoryNone
	}
	return ErrCategoryAssertion
}

// Predefined errors
var (
	// Validation errors
	ErrInvalidScript = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_script",
		Message:  "invalid test script",
	}
	ErrUnknownKeyword = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "unknown_keyword",
		Message:  "unknown keyword",
	}
	ErrInvalidDate = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_date",
		Message:  "malformed calendar date",
	}
	ErrUnknownLocator = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "unknown_locator",
		Message:  "locator key not found in locator map",
	}

	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "element did not become interactable",
	}

	// Connection errors
	ErrNoSession = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "no_session",
		Message:  "no browser session is open",
	}
	ErrUnsupportedBrowser = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "unsupported_browser",
		Message:  "browser is not supported",
	}

	// Navigation errors
	ErrNavigationFailed = &ExecutionError{
		Category: ErrCategoryNavigation,
		Code:     "navigation_failed",
		Message:  "calendar did not reach the target month",
	}
	ErrDaySelectionFailed = &ExecutionError{
		Category: ErrCategoryNavigation,
		Code:     "day_selection_failed",
		Message:  "no calendar day cell matched the target day",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
