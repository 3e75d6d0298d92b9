// Package report builds the per-attempt report tree and renders it.
package report

import (
	"errors"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Errors returned by Tree.Record.
var (
	ErrFrozen        = errors.New("report tree is frozen")
	ErrNoCurrentStep = errors.New("sub-step recorded before any step")
)

// PreconditionsDescription names the implicit step that holds sub-steps
// recorded before the first explicit step.
const PreconditionsDescription = "Preconditions"

// Kind selects what a Record call appends.
type Kind int

const (
	KindStep    Kind = iota // start a new step
	KindSubStep             // append to the current step
)

// Rollup controls how a step's status follows its sub-steps.
type Rollup int

const (
	// RollupLastWrite gives a step the status of its most recent sub-step,
	// so a failure followed by a pass reads as Pass.
	RollupLastWrite Rollup = iota
	// RollupWorstOf fails a step once any of its sub-steps failed.
	RollupWorstOf
)

// ParseRollup maps the config names "last-write" and "worst-of".
func ParseRollup(s string) Rollup {
	if s == "worst-of" {
		return RollupWorstOf
	}
	return RollupLastWrite
}

// SubStepNode is one recorded action outcome.
type SubStepNode struct {
	Description string
	Message     string
	Status      core.Status
	Screenshot  string
}

// StepNode groups sub-steps under a described step.
type StepNode struct {
	Ordinal        int // 0 only for the implicit preconditions step
	Description    string
	ExpectedResult string
	Status         core.Status
	SubSteps       []SubStepNode
}

// RowSpan returns the number of table rows the step occupies.
func (n *StepNode) RowSpan() int {
	return 1 + len(n.SubSteps)
}

// Option configures a Tree.
type Option func(*Tree)

// WithStrictSteps rejects sub-steps recorded before any step with
// ErrNoCurrentStep instead of creating the implicit preconditions step.
func WithStrictSteps() Option {
	return func(t *Tree) { t.strict = true }
}

// WithRollup sets the step status rollup mode.
func WithRollup(r Rollup) Option {
	return func(t *Tree) { t.rollup = r }
}

// Tree is the report of one execution attempt. It is append-only and is
// not safe for concurrent use; one interpreter owns it.
type Tree struct {
	attempt   int
	steps     []*StepNode
	explicit  int // explicit steps recorded so far
	runStatus core.Status
	frozen    bool
	strict    bool
	rollup    Rollup
}

// NewTree creates an empty tree for the given 1-based attempt.
func NewTree(attempt int, opts ...Option) *Tree {
	t := &Tree{attempt: attempt, runStatus: core.StatusPass}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a step or a sub-step. For KindStep, message is the
// step's expected result.
func (t *Tree) Record(kind Kind, description, message string, status core.Status, screenshot string) error {
	if t.frozen {
		return ErrFrozen
	}

	if kind == KindStep {
		t.explicit++
		t.steps = append(t.steps, &StepNode{
			Ordinal:        t.explicit,
			Description:    description,
			ExpectedResult: message,
			Status:         status,
		})
		t.latch(status)
		return nil
	}

	cur, err := t.current()
	if err != nil {
		return err
	}
	cur.SubSteps = append(cur.SubSteps, SubStepNode{
		Description: description,
		Message:     message,
		Status:      status,
		Screenshot:  screenshot,
	})
	switch t.rollup {
	case RollupWorstOf:
		if status == core.StatusFail {
			cur.Status = core.StatusFail
		}
	default:
		cur.Status = status
	}
	t.latch(status)
	return nil
}

// latch moves the run status to Fail; it never moves back.
func (t *Tree) latch(status core.Status) {
	if status == core.StatusFail {
		t.runStatus = core.StatusFail
	}
}

func (t *Tree) current() (*StepNode, error) {
	if len(t.steps) > 0 {
		return t.steps[len(t.steps)-1], nil
	}
	if t.strict {
		return nil, ErrNoCurrentStep
	}
	implicit := &StepNode{Ordinal: 0, Description: PreconditionsDescription, Status: core.StatusPass}
	t.steps = append(t.steps, implicit)
	return implicit, nil
}

// Freeze ends the attempt. Later Record calls return ErrFrozen.
func (t *Tree) Freeze() {
	t.frozen = true
}

// Frozen reports whether the tree has been frozen.
func (t *Tree) Frozen() bool {
	return t.frozen
}

// Attempt returns the 1-based attempt number the tree belongs to.
func (t *Tree) Attempt() int {
	return t.attempt
}

// RunStatus returns Fail once any failure was recorded, Pass otherwise.
func (t *Tree) RunStatus() core.Status {
	return t.runStatus
}

// Steps returns a copy of the recorded steps.
func (t *Tree) Steps() []StepNode {
	out := make([]StepNode, len(t.steps))
	for i, s := range t.steps {
		out[i] = *s
		out[i].SubSteps = append([]SubStepNode(nil), s.SubSteps...)
	}
	return out
}

// SubStepCount returns the number of sub-steps across all steps.
func (t *Tree) SubStepCount() int {
	n := 0
	for _, s := range t.steps {
		n += len(s.SubSteps)
	}
	return n
}
