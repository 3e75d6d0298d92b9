package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{Message: "element not found"}
	if got := err.Error(); got != "element not found" {
		t.Errorf("Error() = %q, want %q", got, "element not found")
	}

	withCause := err.WithCause(fmt.Errorf("xpath //button"))
	if got := withCause.Error(); got != "element not found: xpath //button" {
		t.Errorf("Error() = %q", got)
	}
}

func TestExecutionError_IsMatchesCopies(t *testing.T) {
	err := ErrElementNotFound.WithCause(fmt.Errorf("deadline exceeded")).WithMessage("login button not found")
	if !errors.Is(err, ErrElementNotFound) {
		t.Error("copy made with WithCause/WithMessage should match its sentinel")
	}
	if errors.Is(err, ErrTextMismatch) {
		t.Error("different codes must not match")
	}

	wrapped := fmt.Errorf("step 3: %w", err)
	if !errors.Is(wrapped, ErrElementNotFound) {
		t.Error("wrapped error should still match")
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := ErrNoSession.WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	base := ErrInvalidDate.WithDetails(map[string]interface{}{"literal": "31 February 2024"})
	merged := base.WithDetails(map[string]interface{}{"row": 7})

	if len(merged.Details) != 2 {
		t.Fatalf("Details length = %d, want 2", len(merged.Details))
	}
	if len(base.Details) != 1 {
		t.Error("WithDetails must not mutate the receiver")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ErrCategoryNone},
		{"navigation", ErrNavigationFailed, ErrCategoryNavigation},
		{"wrapped", fmt.Errorf("x: %w", ErrWaitTimeout), ErrCategoryTimeout},
		{"plain", errors.New("boom"), ErrCategoryAssertion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %s, want %s", got, tt.want)
			}
		})
	}
}
