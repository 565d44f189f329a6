package workflow

import (
	"context"
	"errors"

	"github.com/aristath/taskflow/internal/scheduler"
)

// StepExecutor runs one step and returns its output or a failure.
// Output and failure are opaque to the engine and stored verbatim.
//
// inputs maps the IDs of the member's dependencies (and, for task members, of the
// task's earlier steps) to their outputs.
type StepExecutor interface {
	Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error)
}

// StepExecutorFunc adapts a function to StepExecutor.
type StepExecutorFunc func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error)

// Execute calls f.
func (f StepExecutorFunc) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	return f(ctx, step, inputs)
}

// Engine errors.
var (
	ErrAlreadyRunning = errors.New("workflow is already running")
	ErrFinished       = errors.New("workflow already finished")
	ErrNoExecutor     = errors.New("no step executor configured")
	ErrExecutorPanic  = errors.New("step executor panicked")
	ErrUnknownMember  = errors.New("unknown member")
	ErrNotRetryable   = errors.New("member is not failed or skipped")
)
