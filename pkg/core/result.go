package core

import (
	"time"
)

// CommandResult is the outcome of one keyword handler. Handlers never
// panic or return bare errors to the interpreter; a failure is a result
// with Success false and Error set.
type CommandResult struct {
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output, used as the sub-step message
	Message string `json:"message,omitempty"`
}

// Status converts the result to a report status.
func (r *CommandResult) Status() Status {
	if r == nil || !r.Success {
		return StatusFail
	}
	return StatusPass
}

// ErrorMessage returns the text recorded for a failed result.
func (r *CommandResult) ErrorMessage() string {
	if r == nil {
		return "no result"
	}
	if r.Error != nil {
		return r.Error.Error()
	}
	return r.Message
}

// Passed builds a successful result.
func Passed(message string) *CommandResult {
	return &CommandResult{Success: true, Message: message}
}

// Failed builds a failed result carrying err.
func Failed(err error, message string) *CommandResult {
	return &CommandResult{Success: false, Error: err, Message: message}
}
