package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// Config configures an Engine.
type Config struct {
	Executor  StepExecutor                   // Required
	Publisher events.Publisher               // Optional state-change observer
	Locks     *scheduler.ResourceLockManager // Optional; guards Step.Resources
	Logger    *slog.Logger                   // Defaults to slog.Default()
	Now       func() time.Time               // Defaults to time.Now
}

// Engine drives one workflow through its execution mode.
//
// All mutation of the workflow's members happens on the goroutine running Run;
// executor calls run on their own goroutines and report back over a channel.
type Engine struct {
	cfg    Config
	wf     *scheduler.Workflow
	logger *slog.Logger

	mu       sync.Mutex // guards wf and the fields below
	running  bool
	stopped  bool
	stop     chan struct{}
	inFlight map[string]*flight
	outputs  map[string]any
}

// flight tracks a member occupying a concurrency slot.
type flight struct {
	member scheduler.Member
	step   *scheduler.Step // step currently executing
}

// outcome is what an executor goroutine reports back to the loop.
type outcome struct {
	memberID string
	step     *scheduler.Step
	output   any
	err      error
}

// NewEngine creates an engine owning wf. Callers should not mutate wf afterwards;
// use Snapshot to observe it.
func NewEngine(wf *scheduler.Workflow, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		wf:       wf,
		logger:   cfg.Logger.With("workflow_id", wf.ID),
		inFlight: make(map[string]*flight),
		outputs:  make(map[string]any),
	}
}

// Snapshot returns a copy of the workflow's current state.
func (e *Engine) Snapshot() scheduler.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return scheduler.TakeSnapshot(e.wf, e.cfg.Now())
}

// Stop halts dispatch. The workflow becomes paused; executor calls already issued
// are cancelled and their results ignored. Run may be called again to resume.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && !e.stopped {
		e.stopped = true
		close(e.stop)
	}
}

// Run executes the workflow until every member is terminal, a fail-fast abort
// drains, Stop is called, or ctx is cancelled.
//
// Member failures are recorded in the workflow, not returned. Run returns a
// *scheduler.ConfigError for an invalid workflow, ErrAlreadyRunning when re-entered,
// ErrFinished for a completed or failed workflow, and ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) (scheduler.Snapshot, error) {
	if err := e.begin(); err != nil {
		return e.Snapshot(), err
	}

	results := make(chan outcome)
	done := make(chan struct{})
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var g errgroup.Group
	g.SetLimit(e.wf.Concurrency)

	var runErr error
	aborted := false
	for {
		e.mu.Lock()
		if e.stopped {
			e.pauseInFlight()
			e.mu.Unlock()
			break
		}
		if err := ctx.Err(); err != nil {
			e.failInFlight(err)
			runErr = err
			e.mu.Unlock()
			break
		}

		if !aborted {
			e.schedulePass(execCtx, &g, results, done)
		}

		if len(e.inFlight) == 0 {
			e.finish(aborted)
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()

		select {
		case o := <-results:
			e.mu.Lock()
			if e.apply(execCtx, &g, results, done, o) {
				aborted = true
			}
			e.mu.Unlock()
		case <-ctx.Done():
		case <-e.stop:
		}
	}

	close(done)
	cancel()
	_ = g.Wait()

	e.mu.Lock()
	e.running = false
	snap := scheduler.TakeSnapshot(e.wf, e.cfg.Now())
	e.mu.Unlock()

	e.logger.Info("workflow finished", "status", snap.Status.String(), "progress", snap.Progress)
	return snap, runErr
}

// begin validates the workflow and moves it into the running state.
func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if e.wf.Status.IsFinished() {
		return fmt.Errorf("%w: %s", ErrFinished, e.wf.Status)
	}
	if e.cfg.Executor == nil {
		return ErrNoExecutor
	}
	if _, err := scheduler.Validate(e.wf); err != nil {
		e.logger.Error("refusing to run workflow", "error", err)
		return err
	}

	// Resume: members paused by a previous Stop re-enter the pool
	clear(e.outputs)
	for _, m := range e.wf.Members {
		u := m.State()
		if u.Status == scheduler.StatusPaused {
			u.Status = scheduler.StatusPending
		}
		if u.Status == scheduler.StatusCompleted {
			e.outputs[u.ID] = u.Result
		}
	}

	e.running = true
	e.stopped = false
	e.stop = make(chan struct{})
	e.wf.Status = scheduler.WorkflowRunning
	e.logger.Info("workflow started", "mode", e.wf.Mode.String(), "members", len(e.wf.Members), "concurrency", e.wf.Concurrency)
	e.notify()
	return nil
}

// selectNext asks the scheduler for work according to the execution mode.
func (e *Engine) selectNext() []scheduler.Member {
	inFlight := make(map[string]bool, len(e.inFlight))
	for id := range e.inFlight {
		inFlight[id] = true
	}

	if e.wf.Mode == scheduler.ModeSequential {
		for _, m := range e.wf.Members {
			if !m.State().Status.IsTerminal() {
				return scheduler.SelectNext([]scheduler.Member{m}, inFlight, 1)
			}
		}
		return nil
	}
	return scheduler.SelectNext(e.wf.Members, inFlight, e.wf.Concurrency)
}

// skipUnsatisfiable marks pending members whose dependencies failed or were skipped.
// Applies to conditional mode and to parallel mode when failures are tolerated.
func (e *Engine) skipUnsatisfiable() {
	switch {
	case e.wf.Mode == scheduler.ModeConditional:
	case e.wf.Mode == scheduler.ModeParallel && e.wf.FailurePolicy == scheduler.ContinueOnFailure:
	default:
		return
	}

	for changed := true; changed; {
		changed = false
		statuses := scheduler.StatusIndex(e.wf.Members)
		for _, m := range e.wf.Members {
			u := m.State()
			if u.Status != scheduler.StatusPending || !scheduler.Unsatisfiable(u, statuses) {
				continue
			}
			u.Status = scheduler.StatusSkipped
			u.EndTime = e.cfg.Now()
			changed = true

			blockedBy := blockingDependency(u, statuses)
			e.logger.Info("member skipped", "member_id", u.ID, "blocked_by", blockedBy)
			e.publish(events.TopicMember, events.MemberSkippedEvent{
				Workflow:  e.wf.ID,
				ID:        u.ID,
				BlockedBy: blockedBy,
				Timestamp: u.EndTime,
			})
			e.notify()
		}
	}
}

// schedulePass skips unsatisfiable members and dispatches whatever the scheduler
// selects. Members that complete without executing anything unblock others, so the
// pass repeats until every selected member is actually in flight.
func (e *Engine) schedulePass(ctx context.Context, g *errgroup.Group, results chan<- outcome, done <-chan struct{}) {
	for {
		e.skipUnsatisfiable()
		settled := false
		for _, m := range e.selectNext() {
			if !e.dispatch(ctx, g, results, done, m) {
				settled = true
			}
		}
		if !settled {
			return
		}
	}
}

// dispatch occupies a slot for m and starts its first pending step. It returns
// false when m had nothing to execute and completed on the spot.
func (e *Engine) dispatch(ctx context.Context, g *errgroup.Group, results chan<- outcome, done <-chan struct{}, m scheduler.Member) bool {
	u := m.State()
	now := e.cfg.Now()

	step := firstPendingStep(m)
	if step == nil {
		// A task without pending steps has nothing left to run
		u.Status = scheduler.StatusCompleted
		if u.StartTime.IsZero() {
			u.StartTime = now
		}
		u.EndTime = now
		u.Result = lastResult(m)
		e.outputs[u.ID] = u.Result
		e.publish(events.TopicMember, events.MemberCompletedEvent{Workflow: e.wf.ID, ID: u.ID, Result: u.Result, Timestamp: now})
		e.notify()
		return false
	}

	if u.StartTime.IsZero() {
		u.StartTime = now
	}
	u.Status = scheduler.StatusRunning
	f := &flight{member: m}
	e.inFlight[u.ID] = f
	e.start(ctx, g, results, done, f, step)
	return true
}

// start runs step on its own goroutine on behalf of an in-flight member.
func (e *Engine) start(ctx context.Context, g *errgroup.Group, results chan<- outcome, done <-chan struct{}, f *flight, step *scheduler.Step) {
	u := f.member.State()
	f.step = step
	step.Status = scheduler.StatusRunning
	if step.StartTime.IsZero() {
		step.StartTime = e.cfg.Now()
	}

	work := *step
	inputs := e.inputsFor(f.member, step)

	e.logger.Debug("dispatching step", "member_id", u.ID, "step_id", step.ID, "attempt", u.RetryCount+1)
	e.publish(events.TopicMember, events.MemberStartedEvent{
		Workflow:  e.wf.ID,
		ID:        u.ID,
		StepID:    step.ID,
		Attempt:   u.RetryCount + 1,
		Timestamp: e.cfg.Now(),
	})
	e.notify()

	memberID := u.ID
	g.Go(func() error {
		out, err := e.execute(ctx, work, inputs)
		select {
		case results <- outcome{memberID: memberID, step: step, output: out, err: err}:
		case <-done:
		}
		return nil
	})
}

// execute calls the executor, converting panics into failures.
func (e *Engine) execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, r)
		}
	}()

	if e.cfg.Locks != nil && len(step.Resources) > 0 {
		e.cfg.Locks.LockAll(step.Resources)
		defer e.cfg.Locks.UnlockAll(step.Resources)
	}

	return e.cfg.Executor.Execute(ctx, step, inputs)
}

// apply records an executor outcome. It reports whether the workflow must stop
// dispatching because of a fail-fast failure.
func (e *Engine) apply(ctx context.Context, g *errgroup.Group, results chan<- outcome, done <-chan struct{}, o outcome) bool {
	f, ok := e.inFlight[o.memberID]
	if !ok || f.step != o.step {
		return false
	}
	m := f.member
	u := m.State()
	now := e.cfg.Now()
	_, isStep := m.(*scheduler.Step)

	if o.err == nil {
		o.step.Status = scheduler.StatusCompleted
		o.step.Result = o.output
		o.step.EndTime = now

		if next := firstPendingStep(m); next != nil {
			e.start(ctx, g, results, done, f, next)
			return false
		}

		delete(e.inFlight, u.ID)
		u.Status = scheduler.StatusCompleted
		u.Result = o.output
		u.EndTime = now
		e.outputs[u.ID] = o.output

		e.logger.Info("member completed", "member_id", u.ID, "retries", u.RetryCount)
		e.publish(events.TopicMember, events.MemberCompletedEvent{
			Workflow:  e.wf.ID,
			ID:        u.ID,
			Result:    o.output,
			Duration:  u.EndTime.Sub(u.StartTime),
			Timestamp: now,
		})
		e.notify()
		return false
	}

	// Steps nested in a task spend their own retries before the task's
	if !isStep && o.step.RetryCount < o.step.MaxRetries {
		o.step.RetryCount++
		o.step.Status = scheduler.StatusPending
		e.retrying(u, o.step, o.err, o.step.RetryCount, o.step.MaxRetries)
		e.start(ctx, g, results, done, f, o.step)
		return false
	}

	delete(e.inFlight, u.ID)
	o.step.Status = scheduler.StatusFailed
	o.step.Error = o.err
	o.step.EndTime = now

	if u.RetryCount < u.MaxRetries {
		u.RetryCount++
		resetFailedSteps(m)
		u.Status = scheduler.StatusPending
		e.retrying(u, o.step, o.err, u.RetryCount, u.MaxRetries)
		return false
	}

	u.Status = scheduler.StatusFailed
	u.Error = o.err
	u.EndTime = now

	e.logger.Warn("member failed", "member_id", u.ID, "retries", u.RetryCount, "error", o.err)
	e.publish(events.TopicMember, events.MemberFailedEvent{
		Workflow:  e.wf.ID,
		ID:        u.ID,
		Err:       o.err,
		Duration:  u.EndTime.Sub(u.StartTime),
		Timestamp: now,
	})
	e.notify()

	switch e.wf.Mode {
	case scheduler.ModeSequential:
		return true
	case scheduler.ModeParallel:
		return e.wf.FailurePolicy == scheduler.FailFast
	default:
		return false
	}
}

func (e *Engine) retrying(u *scheduler.Unit, step *scheduler.Step, err error, count, limit int) {
	e.logger.Info("retrying member", "member_id", u.ID, "step_id", step.ID, "attempt", count+1, "error", err)
	e.publish(events.TopicMember, events.MemberRetryingEvent{
		Workflow:   e.wf.ID,
		ID:         u.ID,
		StepID:     step.ID,
		Err:        err,
		RetryCount: count,
		MaxRetries: limit,
		Timestamp:  e.cfg.Now(),
	})
	e.notify()
}

// finish settles the workflow status once nothing is in flight.
func (e *Engine) finish(aborted bool) {
	failed, open := 0, 0
	for _, m := range e.wf.Members {
		switch st := m.State().Status; {
		case st == scheduler.StatusFailed:
			failed++
		case !st.IsTerminal():
			open++
		}
	}

	switch {
	case failed > 0 || aborted:
		e.wf.Status = scheduler.WorkflowFailed
	case open > 0:
		// Nothing eligible, nothing running, yet members remain: never report success
		e.logger.Error("workflow stalled", "open_members", open)
		e.wf.Status = scheduler.WorkflowFailed
	default:
		e.wf.Status = scheduler.WorkflowCompleted
	}
	e.notify()
}

// pauseInFlight handles Stop: in-flight members are parked, the workflow paused.
func (e *Engine) pauseInFlight() {
	for id, f := range e.inFlight {
		f.step.Status = scheduler.StatusPending
		f.member.State().Status = scheduler.StatusPaused
		delete(e.inFlight, id)
	}
	e.wf.Status = scheduler.WorkflowPaused
	e.logger.Info("workflow paused")
	e.notify()
}

// failInFlight handles context cancellation.
func (e *Engine) failInFlight(err error) {
	now := e.cfg.Now()
	for id, f := range e.inFlight {
		u := f.member.State()
		f.step.Status = scheduler.StatusFailed
		f.step.Error = err
		u.Status = scheduler.StatusFailed
		u.Error = err
		u.EndTime = now
		delete(e.inFlight, id)
	}
	e.wf.Status = scheduler.WorkflowFailed
	e.logger.Warn("workflow cancelled", "error", err)
	e.notify()
}

// inputsFor collects outputs of m's dependencies and, for tasks, of earlier steps.
func (e *Engine) inputsFor(m scheduler.Member, step *scheduler.Step) map[string]any {
	inputs := make(map[string]any)
	for _, depID := range m.State().DependsOn {
		if out, ok := e.outputs[depID]; ok {
			inputs[depID] = out
		}
	}
	if _, isStep := m.(*scheduler.Step); isStep {
		return inputs
	}
	for _, s := range m.Work() {
		if s == step {
			break
		}
		if s.Status == scheduler.StatusCompleted {
			inputs[s.ID] = s.Result
		}
	}
	return inputs
}

func (e *Engine) publish(topic string, ev events.Event) {
	if e.cfg.Publisher != nil {
		e.cfg.Publisher.Publish(topic, ev)
	}
}

// notify emits the full workflow state. Called with e.mu held after every mutation.
func (e *Engine) notify() {
	if e.cfg.Publisher == nil {
		return
	}
	e.cfg.Publisher.Publish(events.TopicWorkflow, events.WorkflowUpdatedEvent{
		Snapshot: scheduler.TakeSnapshot(e.wf, e.cfg.Now()),
	})
}

func firstPendingStep(m scheduler.Member) *scheduler.Step {
	for _, s := range m.Work() {
		if s.Status == scheduler.StatusPending {
			return s
		}
	}
	return nil
}

func lastResult(m scheduler.Member) any {
	work := m.Work()
	for i := len(work) - 1; i >= 0; i-- {
		if work[i].Status == scheduler.StatusCompleted {
			return work[i].Result
		}
	}
	return nil
}

// resetFailedSteps returns a task's failed steps to the pending pool.
func resetFailedSteps(m scheduler.Member) {
	for _, s := range m.Work() {
		if s.Status == scheduler.StatusFailed {
			s.Status = scheduler.StatusPending
			s.Error = nil
			s.EndTime = time.Time{}
		}
	}
}

func blockingDependency(u *scheduler.Unit, statuses map[string]scheduler.Status) string {
	for _, depID := range u.DependsOn {
		switch statuses[depID] {
		case scheduler.StatusFailed, scheduler.StatusSkipped:
			return depID
		}
	}
	return ""
}

// Retry is an explicit retry dispatch: it returns a failed or skipped member of a
// stopped or finished workflow to the pending pool, together with every member that
// was skipped because of it. The workflow becomes idle so Run can be called again.
func (e *Engine) Retry(memberID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	m, ok := e.wf.Member(memberID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMember, memberID)
	}
	u := m.State()
	if u.Status != scheduler.StatusFailed && u.Status != scheduler.StatusSkipped {
		return fmt.Errorf("%w: %q is %s", ErrNotRetryable, memberID, u.Status)
	}

	reopen := map[string]bool{memberID: true}
	for changed := true; changed; {
		changed = false
		for _, other := range e.wf.Members {
			ou := other.State()
			if reopen[ou.ID] || ou.Status != scheduler.StatusSkipped {
				continue
			}
			for _, depID := range ou.DependsOn {
				if reopen[depID] {
					reopen[ou.ID] = true
					changed = true
					break
				}
			}
		}
	}

	for _, other := range e.wf.Members {
		ou := other.State()
		if !reopen[ou.ID] {
			continue
		}
		ou.Status = scheduler.StatusPending
		ou.Error = nil
		ou.RetryCount = 0
		ou.EndTime = time.Time{}
		resetFailedSteps(other)
	}

	e.wf.Status = scheduler.WorkflowIdle
	e.logger.Info("member requeued", "member_id", memberID, "reopened", len(reopen))
	e.notify()
	return nil
}
