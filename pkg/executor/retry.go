package executor

import (
	"context"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
)

// AttemptRunner runs one attempt of a script. *Interpreter implements it.
type AttemptRunner interface {
	RunAttempt(ctx context.Context, s *script.Script, attempt int) *AttemptResult
}

// SessionCloser ends the browser session left open by an attempt.
type SessionCloser interface {
	CloseSession(ctx context.Context) error
}

// RetryOrchestrator reruns a failed script from its first step, up to
// MaxRetries extra times. Attempts never overlap.
type RetryOrchestrator struct {
	Runner     AttemptRunner
	Sessions   SessionCloser
	MaxRetries int

	// OnAttemptEnd is called after each attempt, once its session is closed.
	OnAttemptEnd func(s *script.Script, res *AttemptResult, willRetry bool)
}

// ScriptResult is the outcome of a script across all attempts.
type ScriptResult struct {
	Script   *script.Script
	Status   core.Status
	Attempts int
	Final    *AttemptResult // only the last attempt is reported
	Duration time.Duration
	Error    string
}

// Run executes s until an attempt passes or the retry budget is spent.
func (o *RetryOrchestrator) Run(ctx context.Context, s *script.Script) *ScriptResult {
	start := time.Now()
	maxAttempts := o.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var final *AttemptResult
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		final = o.Runner.RunAttempt(ctx, s, attempt)
		o.closeSession(ctx, s)

		willRetry := !final.Passed() && attempt < maxAttempts && ctx.Err() == nil
		if o.OnAttemptEnd != nil {
			o.OnAttemptEnd(s, final, willRetry)
		}
		if !willRetry {
			break
		}
		logger.Warn("%s failed on attempt %d of %d, retrying", s.TestCaseID, attempt, maxAttempts)
	}

	result := &ScriptResult{
		Script:   s,
		Status:   core.StatusPass,
		Attempts: attempt,
		Final:    final,
		Duration: time.Since(start),
	}
	if !final.Passed() {
		result.Status = core.StatusFail
		if final.Err != nil {
			result.Error = final.Err.Error()
		}
	}
	return result
}

func (o *RetryOrchestrator) closeSession(ctx context.Context, s *script.Script) {
	if o.Sessions == nil {
		return
	}
	// The session is closed even when the run was cancelled.
	if err := o.Sessions.CloseSession(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("%s: close session: %v", s.TestCaseID, err)
	}
}
