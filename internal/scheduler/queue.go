package scheduler

import (
	"fmt"
	"strings"
)

// ExecutionMode selects how a workflow dispatches its members.
type ExecutionMode int

const (
	ModeSequential  ExecutionMode = iota // Strict list order, one at a time
	ModeParallel                         // Everything at once, bounded by concurrency
	ModeConditional                      // Dependency-gated, unsatisfiable members skipped
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeParallel:
		return "parallel"
	case ModeConditional:
		return "conditional"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a lowercase mode name. The empty string is conditional.
func ParseMode(s string) (ExecutionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential":
		return ModeSequential, nil
	case "parallel":
		return ModeParallel, nil
	case "", "conditional":
		return ModeConditional, nil
	default:
		return 0, fmt.Errorf("unknown execution mode %q", s)
	}
}

// FailurePolicy determines whether one member's unrecoverable failure stops dispatch.
type FailurePolicy int

const (
	FailFast          FailurePolicy = iota // Stop dispatching on first terminal failure
	ContinueOnFailure                      // Keep dispatching independent members
)

// WorkflowStatus is the lifecycle state of a whole workflow.
type WorkflowStatus int

const (
	WorkflowIdle WorkflowStatus = iota
	WorkflowRunning
	WorkflowPaused
	WorkflowCompleted
	WorkflowFailed
)

func (s WorkflowStatus) String() string {
	switch s {
	case WorkflowIdle:
		return "idle"
	case WorkflowRunning:
		return "running"
	case WorkflowPaused:
		return "paused"
	case WorkflowCompleted:
		return "completed"
	case WorkflowFailed:
		return "failed"
	default:
		return fmt.Sprintf("workflow_status(%d)", int(s))
	}
}

// IsFinished reports whether the workflow reached completed or failed.
func (s WorkflowStatus) IsFinished() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// Workflow is a collection of members run under one policy.
// A queue of tasks and an agent-style list of steps are both workflows.
type Workflow struct {
	ID            string
	Name          string
	Description   string
	Members       []Member
	Mode          ExecutionMode
	Concurrency   int // Max simultaneous in-flight members (>= 1)
	FailurePolicy FailurePolicy
	Priority      Priority // low|medium|high, used by hosts juggling several workflows
	Status        WorkflowStatus
}

// NewQueue builds a dependency-gated workflow of tasks.
func NewQueue(id, name string, concurrency int, tasks ...*Task) *Workflow {
	members := make([]Member, 0, len(tasks))
	for _, t := range tasks {
		members = append(members, t)
	}
	return &Workflow{
		ID:          id,
		Name:        name,
		Members:     members,
		Mode:        ModeConditional,
		Concurrency: concurrency,
		Priority:    PriorityMedium,
	}
}

// NewStepWorkflow builds a workflow over a flat ordered list of steps.
func NewStepWorkflow(id, name string, mode ExecutionMode, concurrency int, steps ...*Step) *Workflow {
	members := make([]Member, 0, len(steps))
	for _, s := range steps {
		members = append(members, s)
	}
	return &Workflow{
		ID:          id,
		Name:        name,
		Members:     members,
		Mode:        mode,
		Concurrency: concurrency,
		Priority:    PriorityMedium,
	}
}

// Member returns the member with the given ID.
func (w *Workflow) Member(id string) (Member, bool) {
	for _, m := range w.Members {
		if m.State().ID == id {
			return m, true
		}
	}
	return nil, false
}

// Running counts members currently in flight.
func (w *Workflow) Running() int {
	n := 0
	for _, m := range w.Members {
		if m.State().Status == StatusRunning {
			n++
		}
	}
	return n
}

// Progress is the rounded mean of member progress values.
func (w *Workflow) Progress() int {
	values := make([]int, len(w.Members))
	for i, m := range w.Members {
		values[i] = m.Progress()
	}
	return QueueProgress(values)
}
