package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// flushTimeout bounds the final write after the recorder's context ends.
const flushTimeout = 5 * time.Second

// Recorder persists one run from the event bus. Snapshot writes are coalesced:
// when updates arrive faster than SQLite absorbs them, only the latest is written.
type Recorder struct {
	store      Store
	runID      string
	workflowID string
	logger     *slog.Logger
}

// NewRecorder creates a recorder writing events of workflowID under runID.
// Events of other workflows on the same bus are ignored.
func NewRecorder(store Store, runID, workflowID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:      store,
		runID:      runID,
		workflowID: workflowID,
		logger:     logger.With("run_id", runID, "workflow_id", workflowID),
	}
}

// pending tracks the newest snapshot not yet written.
type pending struct {
	latest *scheduler.Snapshot
	saved  bool
}

// Run consumes sub until it is closed or ctx is done, then writes the last
// snapshot it saw. Storage errors are logged, not returned: the engine's state in
// memory stays authoritative.
func (r *Recorder) Run(ctx context.Context, sub <-chan events.Event) {
	p := &pending{}

	for {
		select {
		case <-ctx.Done():
			r.flush(p)
			return
		case ev, ok := <-sub:
			if !ok {
				r.flush(p)
				return
			}
			r.handle(ctx, p, ev)
		}

		// Coalesce whatever is already queued before touching the database
	drain:
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					r.flush(p)
					return
				}
				r.handle(ctx, p, ev)
			default:
				break drain
			}
		}

		r.save(ctx, p)
	}
}

// handle keeps workflow updates for the next write and logs member events.
func (r *Recorder) handle(ctx context.Context, p *pending, ev events.Event) {
	if ev.WorkflowID() != r.workflowID {
		return
	}
	if upd, ok := ev.(events.WorkflowUpdatedEvent); ok {
		snap := upd.Snapshot
		p.latest, p.saved = &snap, false
		return
	}

	rec, ok := runEvent(ev)
	if !ok {
		return
	}
	// The run row must exist before its events reference it
	r.save(ctx, p)
	if err := r.store.AppendEvent(ctx, r.runID, rec); err != nil {
		r.logger.Warn("failed to append event", "event", ev.EventType(), "error", err)
	}
}

func (r *Recorder) save(ctx context.Context, p *pending) {
	if p.latest == nil || p.saved {
		return
	}
	if err := r.store.SaveSnapshot(ctx, r.runID, *p.latest); err != nil {
		r.logger.Warn("failed to save snapshot", "error", err)
		return
	}
	p.saved = true
}

func (r *Recorder) flush(p *pending) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	r.save(ctx, p)
}

// runEvent converts a member event into a log entry.
func runEvent(ev events.Event) (RunEvent, bool) {
	rec := RunEvent{MemberID: ev.MemberID(), Type: ev.EventType()}

	switch e := ev.(type) {
	case events.MemberStartedEvent:
		rec.Detail = fmt.Sprintf("step %s attempt %d", e.StepID, e.Attempt)
		rec.Timestamp = e.Timestamp
	case events.MemberCompletedEvent:
		rec.Detail = fmt.Sprintf("completed in %s", e.Duration.Round(time.Millisecond))
		rec.Timestamp = e.Timestamp
	case events.MemberFailedEvent:
		rec.Detail = errText(e.Err)
		rec.Timestamp = e.Timestamp
	case events.MemberRetryingEvent:
		rec.Detail = fmt.Sprintf("step %s retry %d/%d: %s", e.StepID, e.RetryCount, e.MaxRetries, errText(e.Err))
		rec.Timestamp = e.Timestamp
	case events.MemberSkippedEvent:
		rec.Detail = "blocked by " + e.BlockedBy
		rec.Timestamp = e.Timestamp
	default:
		return RunEvent{}, false
	}
	return rec, true
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
