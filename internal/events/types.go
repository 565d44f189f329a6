package events

import (
	"time"

	"github.com/aristath/taskflow/internal/scheduler"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	WorkflowID() string
	MemberID() string
}

// Topic constants
const (
	TopicMember   = "member"
	TopicWorkflow = "workflow"
)

// Event type constants
const (
	EventTypeMemberStarted   = "member.started"
	EventTypeMemberCompleted = "member.completed"
	EventTypeMemberFailed    = "member.failed"
	EventTypeMemberRetrying  = "member.retrying"
	EventTypeMemberSkipped   = "member.skipped"
	EventTypeWorkflowUpdated = "workflow.updated"
)

// MemberStartedEvent is published when a member (or one of a task's steps) is dispatched.
type MemberStartedEvent struct {
	Workflow  string
	ID        string
	StepID    string
	Attempt   int
	Timestamp time.Time
}

func (e MemberStartedEvent) EventType() string  { return EventTypeMemberStarted }
func (e MemberStartedEvent) WorkflowID() string { return e.Workflow }
func (e MemberStartedEvent) MemberID() string   { return e.ID }

// MemberCompletedEvent is published when a member completes successfully.
type MemberCompletedEvent struct {
	Workflow  string
	ID        string
	Result    any
	Duration  time.Duration
	Timestamp time.Time
}

func (e MemberCompletedEvent) EventType() string  { return EventTypeMemberCompleted }
func (e MemberCompletedEvent) WorkflowID() string { return e.Workflow }
func (e MemberCompletedEvent) MemberID() string   { return e.ID }

// MemberFailedEvent is published when a member fails with no retries left.
type MemberFailedEvent struct {
	Workflow  string
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e MemberFailedEvent) EventType() string  { return EventTypeMemberFailed }
func (e MemberFailedEvent) WorkflowID() string { return e.Workflow }
func (e MemberFailedEvent) MemberID() string   { return e.ID }

// MemberRetryingEvent is published when a failure is absorbed by the retry policy.
type MemberRetryingEvent struct {
	Workflow   string
	ID         string
	StepID     string
	Err        error
	RetryCount int
	MaxRetries int
	Timestamp  time.Time
}

func (e MemberRetryingEvent) EventType() string  { return EventTypeMemberRetrying }
func (e MemberRetryingEvent) WorkflowID() string { return e.Workflow }
func (e MemberRetryingEvent) MemberID() string   { return e.ID }

// MemberSkippedEvent is published when a member's dependencies can never be satisfied.
type MemberSkippedEvent struct {
	Workflow  string
	ID        string
	BlockedBy string
	Timestamp time.Time
}

func (e MemberSkippedEvent) EventType() string  { return EventTypeMemberSkipped }
func (e MemberSkippedEvent) WorkflowID() string { return e.Workflow }
func (e MemberSkippedEvent) MemberID() string   { return e.ID }

// WorkflowUpdatedEvent carries the full workflow state after a mutation.
type WorkflowUpdatedEvent struct {
	Snapshot scheduler.Snapshot
}

func (e WorkflowUpdatedEvent) EventType() string  { return EventTypeWorkflowUpdated }
func (e WorkflowUpdatedEvent) WorkflowID() string { return e.Snapshot.WorkflowID }
func (e WorkflowUpdatedEvent) MemberID() string   { return "" }
