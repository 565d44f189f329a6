package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

func TestCollector_CountsMemberEvents(t *testing.T) {
	c := NewCollector()

	c.Observe(events.MemberStartedEvent{Workflow: "wf", ID: "a"})
	c.Observe(events.MemberStartedEvent{Workflow: "wf", ID: "b"})
	c.Observe(events.MemberRetryingEvent{Workflow: "wf", ID: "b", RetryCount: 1, MaxRetries: 2})
	c.Observe(events.MemberCompletedEvent{Workflow: "wf", ID: "a", Duration: 2 * time.Second})
	c.Observe(events.MemberFailedEvent{Workflow: "wf", ID: "b", Err: errors.New("boom")})
	c.Observe(events.MemberSkippedEvent{Workflow: "wf", ID: "c", BlockedBy: "b"})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"starts", testutil.ToFloat64(c.membersStarted.WithLabelValues("wf")), 2},
		{"retries", testutil.ToFloat64(c.memberRetries.WithLabelValues("wf")), 1},
		{"completed", testutil.ToFloat64(c.membersFinished.WithLabelValues("wf", "completed")), 1},
		{"failed", testutil.ToFloat64(c.membersFinished.WithLabelValues("wf", "failed")), 1},
		{"skipped", testutil.ToFloat64(c.membersFinished.WithLabelValues("wf", "skipped")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}

	if n := testutil.CollectAndCount(c.memberDuration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestCollector_WorkflowTransitionsCountedOnce(t *testing.T) {
	c := NewCollector()

	update := func(status scheduler.WorkflowStatus, progress, running int) {
		c.Observe(events.WorkflowUpdatedEvent{Snapshot: scheduler.Snapshot{
			WorkflowID: "wf",
			Status:     status,
			Progress:   progress,
			Running:    running,
		}})
	}

	update(scheduler.WorkflowRunning, 0, 2)
	update(scheduler.WorkflowRunning, 50, 1)

	if got := testutil.ToFloat64(c.progress.WithLabelValues("wf")); got != 50 {
		t.Errorf("expected progress 50, got %v", got)
	}
	if got := testutil.ToFloat64(c.running.WithLabelValues("wf")); got != 1 {
		t.Errorf("expected 1 running, got %v", got)
	}

	update(scheduler.WorkflowCompleted, 100, 0)
	update(scheduler.WorkflowCompleted, 100, 0) // repeated notification

	if got := testutil.ToFloat64(c.runsFinished.WithLabelValues("wf", "completed")); got != 1 {
		t.Errorf("expected 1 finished run, got %v", got)
	}

	// A retried workflow finishing again is a new run
	update(scheduler.WorkflowIdle, 50, 0)
	update(scheduler.WorkflowFailed, 50, 0)
	if got := testutil.ToFloat64(c.runsFinished.WithLabelValues("wf", "failed")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}
}

func TestCollector_RunAndHandler(t *testing.T) {
	c := NewCollector()
	bus := events.NewEventBus()
	sub := bus.SubscribeAll(16)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), sub)
		close(done)
	}()

	bus.Publish(events.TopicMember, events.MemberStartedEvent{Workflow: "nightly", ID: "a"})
	bus.Close()
	<-done

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `taskflow_member_starts_total{workflow="nightly"} 1`) {
		t.Errorf("expected start counter in exposition, got:\n%s", body)
	}
}
