package backend

import (
	"context"
	"fmt"

	"github.com/aristath/taskflow/internal/scheduler"
	"github.com/aristath/taskflow/internal/workflow"
)

// New creates a step executor based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate executor.
func New(cfg Config, pm *ProcessManager) (workflow.StepExecutor, error) {
	switch cfg.Type {
	case "", "shell":
		return NewShellExecutor(cfg, pm)
	case "echo":
		return EchoExecutor{}, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// EchoExecutor completes every step with its command text without running it.
// Used for dry runs.
type EchoExecutor struct{}

// Execute returns step.Command.
func (EchoExecutor) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return step.Command, nil
}
