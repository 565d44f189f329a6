package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the current state of a member (task or step).
type Status int

const (
	StatusPending   Status = iota // Waiting for dependencies or a free slot
	StatusRunning                 // Currently executing
	StatusCompleted               // Finished successfully
	StatusFailed                  // Finished with error, retries exhausted
	StatusSkipped                 // Dependencies can never be satisfied in this run
	StatusPaused                  // Was in flight when the workflow was stopped
)

var statusNames = [...]string{"pending", "running", "completed", "failed", "skipped", "paused"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// IsTerminal reports whether no further automatic transition occurs from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Priority orders eligible members. Higher values are scheduled first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// Weight returns the scheduling weight. Unset priorities weigh as medium.
func (p Priority) Weight() int {
	if p <= 0 {
		return int(PriorityMedium)
	}
	return int(p)
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium, 0:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a lowercase priority name. The empty string is medium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Unit is the scheduling state shared by steps and tasks.
// It is mutated only by the workflow engine that owns it.
type Unit struct {
	ID         string   // Unique within its workflow (or task, for nested steps)
	DependsOn  []string // Member IDs that must complete first
	Priority   Priority
	Status     Status
	RetryCount int
	MaxRetries int
	Result     any   // Opaque executor output, set on completion
	Error      error // Executor failure, set on terminal failure
	StartTime  time.Time
	EndTime    time.Time
}

// State returns the unit itself so embedding types satisfy Member.
func (u *Unit) State() *Unit { return u }

// Step is a unit of execution handed to a StepExecutor.
type Step struct {
	Unit
	Name        string
	Description string
	Command     string   // Opaque payload interpreted by the executor
	Resources   []string // Keys locked exclusively while the step runs
}

// Work returns the step itself: a step member executes exactly once per attempt.
func (s *Step) Work() []*Step { return []*Step{s} }

// Progress is 100 once the step completed and 0 otherwise.
func (s *Step) Progress() int {
	if s.Status == StatusCompleted {
		return 100
	}
	return 0
}

// Label returns a human-readable name.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Task is a titled unit composed of ordered steps.
type Task struct {
	Unit
	Title       string
	Description string
	Component   string
	Steps       []*Step
}

// Work returns the task's steps in execution order.
func (t *Task) Work() []*Step { return t.Steps }

// Progress is derived from step statuses on every call.
func (t *Task) Progress() int { return TaskProgress(t.Steps) }

// Label returns a human-readable name.
func (t *Task) Label() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

// Member is a task or step scheduled by a workflow.
type Member interface {
	State() *Unit
	Work() []*Step
	Progress() int
	Label() string
}

var (
	_ Member = (*Step)(nil)
	_ Member = (*Task)(nil)
)
