package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// fakeExecutor records calls and fails configured steps a given number of times.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  map[string]int
	order  []string
	inputs map[string]map[string]any
	fail   map[string]int // step ID -> failing attempts, -1 fails forever
	delay  time.Duration
	active int
	peak   int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		calls:  make(map[string]int),
		inputs: make(map[string]map[string]any),
		fail:   make(map[string]int),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	f.mu.Lock()
	f.calls[step.ID]++
	n := f.calls[step.ID]
	f.order = append(f.order, step.ID)
	f.inputs[step.ID] = inputs
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	failFor := f.fail[step.ID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if failFor < 0 || n <= failFor {
		return nil, fmt.Errorf("%s attempt %d failed", step.ID, n)
	}
	return step.ID + "-out", nil
}

func (f *fakeExecutor) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func newStep(id string, deps ...string) *scheduler.Step {
	return &scheduler.Step{Unit: scheduler.Unit{ID: id, DependsOn: deps}}
}

func memberStatus(t *testing.T, snap scheduler.Snapshot, id string) scheduler.Status {
	t.Helper()
	for _, m := range snap.Members {
		if m.ID == id {
			return m.Status
		}
	}
	t.Fatalf("member %s not in snapshot", id)
	return 0
}

func runEngine(t *testing.T, wf *scheduler.Workflow, exec StepExecutor) scheduler.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := NewEngine(wf, Config{Executor: exec}).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return snap
}

func TestEngine_SequentialRunsInListOrder(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 5 * time.Millisecond
	wf := scheduler.NewStepWorkflow("wf", "seq", scheduler.ModeSequential, 3,
		newStep("a"), newStep("b"), newStep("c"))
	// Priority must not reorder a sequential workflow
	wf.Members[2].State().Priority = scheduler.PriorityUrgent

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowCompleted {
		t.Fatalf("Expected completed, got %s", snap.Status)
	}
	order := exec.callOrder()
	if fmt.Sprint(order) != "[a b c]" {
		t.Errorf("Expected order [a b c], got %v", order)
	}
	if exec.peak != 1 {
		t.Errorf("Expected at most one step in flight, got %d", exec.peak)
	}
	if snap.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", snap.Progress)
	}
}

func TestEngine_SequentialStopsAtFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["b"] = -1
	wf := scheduler.NewStepWorkflow("wf", "seq", scheduler.ModeSequential, 1,
		newStep("a"), newStep("b"), newStep("c"))

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowFailed {
		t.Fatalf("Expected failed, got %s", snap.Status)
	}
	if got := memberStatus(t, snap, "a"); got != scheduler.StatusCompleted {
		t.Errorf("Expected a completed, got %s", got)
	}
	if got := memberStatus(t, snap, "b"); got != scheduler.StatusFailed {
		t.Errorf("Expected b failed, got %s", got)
	}
	if got := memberStatus(t, snap, "c"); got != scheduler.StatusPending {
		t.Errorf("Expected c never dispatched, got %s", got)
	}
	if exec.calls["c"] != 0 {
		t.Errorf("Expected c not executed, got %d calls", exec.calls["c"])
	}
}

func TestEngine_ParallelFailFastKeepsCompletedResults(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["b"] = -1
	wf := scheduler.NewStepWorkflow("wf", "par", scheduler.ModeParallel, 1,
		newStep("a"), newStep("b"), newStep("c"))

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowFailed {
		t.Fatalf("Expected failed, got %s", snap.Status)
	}
	a, _ := wf.Member("a")
	if a.State().Status != scheduler.StatusCompleted || a.State().Result != "a-out" {
		t.Errorf("Expected a to keep its result, got %s %v", a.State().Status, a.State().Result)
	}
	if got := memberStatus(t, snap, "c"); got != scheduler.StatusPending {
		t.Errorf("Expected c not dispatched after fail-fast, got %s", got)
	}
}

func TestEngine_ParallelContinueOnFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["a"] = -1
	wf := scheduler.NewStepWorkflow("wf", "par", scheduler.ModeParallel, 1,
		newStep("a"), newStep("b"), newStep("c", "a"))
	wf.FailurePolicy = scheduler.ContinueOnFailure

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowFailed {
		t.Errorf("Expected failed overall status, got %s", snap.Status)
	}
	if got := memberStatus(t, snap, "b"); got != scheduler.StatusCompleted {
		t.Errorf("Expected independent member b to complete, got %s", got)
	}
	if got := memberStatus(t, snap, "c"); got != scheduler.StatusSkipped {
		t.Errorf("Expected c skipped, got %s", got)
	}
}

func TestEngine_ConditionalSkipsTransitively(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["a"] = -1
	wf := scheduler.NewStepWorkflow("wf", "cond", scheduler.ModeConditional, 2,
		newStep("a"), newStep("b", "a"), newStep("c", "b"), newStep("d"))

	bus := events.NewEventBus()
	sub := bus.Subscribe(events.TopicMember, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := NewEngine(wf, Config{Executor: exec, Publisher: bus}).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	bus.Close()

	want := map[string]scheduler.Status{
		"a": scheduler.StatusFailed,
		"b": scheduler.StatusSkipped,
		"c": scheduler.StatusSkipped,
		"d": scheduler.StatusCompleted,
	}
	for id, status := range want {
		if got := memberStatus(t, snap, id); got != status {
			t.Errorf("Expected %s %s, got %s", id, status, got)
		}
	}

	blockedBy := map[string]string{}
	for ev := range sub {
		if skip, ok := ev.(events.MemberSkippedEvent); ok {
			blockedBy[skip.ID] = skip.BlockedBy
		}
	}
	if blockedBy["b"] != "a" || blockedBy["c"] != "b" {
		t.Errorf("Unexpected skip reasons: %v", blockedBy)
	}
}

func TestEngine_RetryPolicy(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantStatus scheduler.Status
		wantRetry  int
		wantCalls  int
	}{
		{"exhausts retries", -1, 2, scheduler.StatusFailed, 2, 3},
		{"recovers on second attempt", 1, 2, scheduler.StatusCompleted, 1, 2},
		{"no retries configured", -1, 0, scheduler.StatusFailed, 0, 1},
		{"first attempt succeeds", 0, 3, scheduler.StatusCompleted, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.fail["x"] = tt.failures
			s := newStep("x")
			s.MaxRetries = tt.maxRetries
			wf := scheduler.NewStepWorkflow("wf", "retry", scheduler.ModeConditional, 1, s)

			runEngine(t, wf, exec)

			if s.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, s.Status)
			}
			if s.RetryCount != tt.wantRetry {
				t.Errorf("Expected retryCount %d, got %d", tt.wantRetry, s.RetryCount)
			}
			if exec.calls["x"] != tt.wantCalls {
				t.Errorf("Expected %d executor calls, got %d", tt.wantCalls, exec.calls["x"])
			}
			if tt.wantStatus == scheduler.StatusFailed && s.Error == nil {
				t.Error("Expected failure to be recorded")
			}
		})
	}
}

func TestEngine_DependentsDispatchTogetherAfterRoot(t *testing.T) {
	var mu sync.Mutex
	var started []string
	arrived := make(chan string, 2)
	release := make(chan struct{})

	exec := StepExecutorFunc(func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
		mu.Lock()
		started = append(started, step.ID)
		mu.Unlock()

		if step.ID == "A" {
			return "root", nil
		}
		if inputs["A"] != "root" {
			return nil, fmt.Errorf("%s missing input from A: %v", step.ID, inputs)
		}
		// B and C must be in flight at the same time
		arrived <- step.ID
		select {
		case <-release:
		case <-time.After(2 * time.Second):
			return nil, errors.New("dependents were not dispatched together")
		}
		return step.ID, nil
	})

	wf := scheduler.NewStepWorkflow("wf", "abc", scheduler.ModeConditional, 2,
		newStep("A"), newStep("B", "A"), newStep("C", "A"))

	go func() {
		<-arrived
		<-arrived
		close(release)
	}()

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowCompleted {
		t.Fatalf("Expected completed, got %s", snap.Status)
	}
	if len(started) != 3 || started[0] != "A" {
		t.Errorf("Expected A to run first, got %v", started)
	}
}

func TestEngine_RejectsCycleBeforeDispatch(t *testing.T) {
	exec := newFakeExecutor()
	wf := scheduler.NewStepWorkflow("wf", "cycle", scheduler.ModeConditional, 1,
		newStep("A", "B"), newStep("B", "A"))

	_, err := NewEngine(wf, Config{Executor: exec}).Run(context.Background())

	if !errors.Is(err, scheduler.ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}
	var cfgErr *scheduler.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *ConfigError, got %T", err)
	}
	if len(exec.callOrder()) != 0 {
		t.Errorf("Expected no dispatch, got %v", exec.callOrder())
	}
	if wf.Status != scheduler.WorkflowIdle {
		t.Errorf("Expected workflow to stay idle, got %s", wf.Status)
	}
}

func TestEngine_RejectsInvalidConcurrency(t *testing.T) {
	wf := scheduler.NewStepWorkflow("wf", "zero", scheduler.ModeParallel, 0, newStep("a"))

	_, err := NewEngine(wf, Config{Executor: newFakeExecutor()}).Run(context.Background())
	if !errors.Is(err, scheduler.ErrInvalidConcurrency) {
		t.Errorf("Expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestEngine_RequiresExecutor(t *testing.T) {
	wf := scheduler.NewStepWorkflow("wf", "none", scheduler.ModeParallel, 1, newStep("a"))

	_, err := NewEngine(wf, Config{}).Run(context.Background())
	if !errors.Is(err, ErrNoExecutor) {
		t.Errorf("Expected ErrNoExecutor, got %v", err)
	}
}

func TestEngine_RecoversExecutorPanic(t *testing.T) {
	exec := StepExecutorFunc(func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
		if step.ID == "boom" {
			panic("kaboom")
		}
		return "ok", nil
	})
	wf := scheduler.NewStepWorkflow("wf", "panic", scheduler.ModeConditional, 2,
		newStep("boom"), newStep("fine"))

	snap := runEngine(t, wf, exec)

	boom, _ := wf.Member("boom")
	if !errors.Is(boom.State().Error, ErrExecutorPanic) {
		t.Errorf("Expected ErrExecutorPanic, got %v", boom.State().Error)
	}
	if got := memberStatus(t, snap, "fine"); got != scheduler.StatusCompleted {
		t.Errorf("Expected unrelated member to complete, got %s", got)
	}
}

func TestEngine_ConcurrencyCeiling(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 10 * time.Millisecond
	steps := make([]*scheduler.Step, 6)
	for i := range steps {
		steps[i] = newStep(fmt.Sprintf("s%d", i))
	}
	wf := scheduler.NewStepWorkflow("wf", "ceiling", scheduler.ModeParallel, 2, steps...)

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowCompleted {
		t.Fatalf("Expected completed, got %s", snap.Status)
	}
	if exec.peak > 2 {
		t.Errorf("Expected at most 2 concurrent executions, got %d", exec.peak)
	}
	if exec.peak < 2 {
		t.Errorf("Expected the concurrency limit to be used, peak was %d", exec.peak)
	}
}

func TestEngine_PriorityOrdersEligibleMembers(t *testing.T) {
	exec := newFakeExecutor()
	low, high, urgent := newStep("low"), newStep("high"), newStep("urgent")
	low.Priority = scheduler.PriorityLow
	high.Priority = scheduler.PriorityHigh
	urgent.Priority = scheduler.PriorityUrgent
	wf := scheduler.NewStepWorkflow("wf", "prio", scheduler.ModeParallel, 1, low, high, urgent)

	runEngine(t, wf, exec)

	if got := fmt.Sprint(exec.callOrder()); got != "[urgent high low]" {
		t.Errorf("Expected [urgent high low], got %s", got)
	}
}

func TestEngine_TaskStepsRunInOrder(t *testing.T) {
	exec := newFakeExecutor()
	build := &scheduler.Task{
		Unit:  scheduler.Unit{ID: "build"},
		Title: "Build",
		Steps: []*scheduler.Step{newStep("compile"), newStep("link")},
	}
	ship := &scheduler.Task{
		Unit:  scheduler.Unit{ID: "ship", DependsOn: []string{"build"}},
		Title: "Ship",
		Steps: []*scheduler.Step{newStep("upload")},
	}
	wf := scheduler.NewQueue("q", "release", 2, build, ship)

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowCompleted {
		t.Fatalf("Expected completed, got %s", snap.Status)
	}
	if got := fmt.Sprint(exec.callOrder()); got != "[compile link upload]" {
		t.Errorf("Expected [compile link upload], got %s", got)
	}
	if exec.inputs["link"]["compile"] != "compile-out" {
		t.Errorf("Expected link to receive compile output, got %v", exec.inputs["link"])
	}
	if exec.inputs["upload"]["build"] != "link-out" {
		t.Errorf("Expected upload to receive the build task result, got %v", exec.inputs["upload"])
	}
	if build.Result != "link-out" {
		t.Errorf("Expected task result to be its last step output, got %v", build.Result)
	}
	if build.Progress() != 100 || snap.Progress != 100 {
		t.Errorf("Expected full progress, got task=%d workflow=%d", build.Progress(), snap.Progress)
	}
}

func TestEngine_StepRetriesBeforeTaskRetries(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["flaky"] = 1
	flaky := newStep("flaky")
	flaky.MaxRetries = 1
	task := &scheduler.Task{
		Unit:  scheduler.Unit{ID: "t", MaxRetries: 2},
		Steps: []*scheduler.Step{newStep("prep"), flaky},
	}
	wf := scheduler.NewQueue("q", "retry", 1, task)

	runEngine(t, wf, exec)

	if task.Status != scheduler.StatusCompleted {
		t.Fatalf("Expected task completed, got %s", task.Status)
	}
	if flaky.RetryCount != 1 {
		t.Errorf("Expected step retryCount 1, got %d", flaky.RetryCount)
	}
	if task.RetryCount != 0 {
		t.Errorf("Expected task retries untouched, got %d", task.RetryCount)
	}
	if exec.calls["prep"] != 1 {
		t.Errorf("Expected prep to run once, got %d", exec.calls["prep"])
	}
}

func TestEngine_TaskRetryRerunsOnlyFailedSteps(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["check"] = 1
	task := &scheduler.Task{
		Unit:  scheduler.Unit{ID: "t", MaxRetries: 1},
		Steps: []*scheduler.Step{newStep("prep"), newStep("check")},
	}
	wf := scheduler.NewQueue("q", "retry", 1, task)

	runEngine(t, wf, exec)

	if task.Status != scheduler.StatusCompleted || task.RetryCount != 1 {
		t.Errorf("Expected completed after one task retry, got %s retry=%d", task.Status, task.RetryCount)
	}
	if exec.calls["prep"] != 1 || exec.calls["check"] != 2 {
		t.Errorf("Unexpected call counts: %v", exec.calls)
	}
}

func TestEngine_EmptyTaskCompletesAndUnblocksDependents(t *testing.T) {
	exec := newFakeExecutor()
	empty := &scheduler.Task{Unit: scheduler.Unit{ID: "empty"}}
	next := &scheduler.Task{
		Unit:  scheduler.Unit{ID: "next", DependsOn: []string{"empty"}},
		Steps: []*scheduler.Step{newStep("work")},
	}
	wf := scheduler.NewQueue("q", "empty", 1, empty, next)

	snap := runEngine(t, wf, exec)

	if snap.Status != scheduler.WorkflowCompleted {
		t.Fatalf("Expected completed, got %s", snap.Status)
	}
	if empty.Progress() != 0 {
		t.Errorf("Expected empty task progress 0, got %d", empty.Progress())
	}
	if exec.calls["work"] != 1 {
		t.Errorf("Expected dependent to run, got %v", exec.calls)
	}
}

func TestEngine_StopPausesAndRunResumes(t *testing.T) {
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	attempts := 0

	exec := StepExecutorFunc(func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()
		if first {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "done", nil
	})

	wf := scheduler.NewStepWorkflow("wf", "stop", scheduler.ModeParallel, 1, newStep("slow"))
	engine := NewEngine(wf, Config{Executor: exec})

	type result struct {
		snap scheduler.Snapshot
		err  error
	}
	out := make(chan result, 1)
	go func() {
		snap, err := engine.Run(context.Background())
		out <- result{snap, err}
	}()

	<-started
	engine.Stop()

	var r result
	select {
	case r = <-out:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if r.err != nil {
		t.Fatalf("Expected nil error on stop, got %v", r.err)
	}
	if r.snap.Status != scheduler.WorkflowPaused {
		t.Fatalf("Expected paused, got %s", r.snap.Status)
	}
	if got := memberStatus(t, r.snap, "slow"); got != scheduler.StatusPaused {
		t.Errorf("Expected member paused, got %s", got)
	}

	snap, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if snap.Status != scheduler.WorkflowCompleted {
		t.Errorf("Expected completed after resume, got %s", snap.Status)
	}
}

func TestEngine_ContextCancelFailsInFlight(t *testing.T) {
	started := make(chan struct{})
	exec := StepExecutorFunc(func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	wf := scheduler.NewStepWorkflow("wf", "cancel", scheduler.ModeParallel, 1, newStep("slow"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	snap, err := NewEngine(wf, Config{Executor: exec}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if snap.Status != scheduler.WorkflowFailed {
		t.Errorf("Expected failed, got %s", snap.Status)
	}
	if got := memberStatus(t, snap, "slow"); got != scheduler.StatusFailed {
		t.Errorf("Expected member failed, got %s", got)
	}
}

func TestEngine_RunAfterFinishIsRejected(t *testing.T) {
	wf := scheduler.NewStepWorkflow("wf", "once", scheduler.ModeParallel, 1, newStep("a"))
	engine := NewEngine(wf, Config{Executor: newFakeExecutor()})

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := engine.Run(context.Background()); !errors.Is(err, ErrFinished) {
		t.Errorf("Expected ErrFinished, got %v", err)
	}
}

func TestEngine_RetryRequeuesFailedMemberAndSkippedDependents(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["a"] = 1
	wf := scheduler.NewStepWorkflow("wf", "requeue", scheduler.ModeConditional, 1,
		newStep("a"), newStep("b", "a"))
	engine := NewEngine(wf, Config{Executor: exec})

	snap, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if snap.Status != scheduler.WorkflowFailed || memberStatus(t, snap, "b") != scheduler.StatusSkipped {
		t.Fatalf("Expected failed run with b skipped, got %s / %s", snap.Status, memberStatus(t, snap, "b"))
	}

	if err := engine.Retry("nope"); !errors.Is(err, ErrUnknownMember) {
		t.Errorf("Expected ErrUnknownMember, got %v", err)
	}
	if err := engine.Retry("a"); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	snap = engine.Snapshot()
	if snap.Status != scheduler.WorkflowIdle {
		t.Errorf("Expected idle after retry, got %s", snap.Status)
	}
	for _, id := range []string{"a", "b"} {
		if got := memberStatus(t, snap, id); got != scheduler.StatusPending {
			t.Errorf("Expected %s pending, got %s", id, got)
		}
	}

	snap, err = engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if snap.Status != scheduler.WorkflowCompleted {
		t.Errorf("Expected completed, got %s", snap.Status)
	}
	if err := engine.Retry("a"); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Expected ErrNotRetryable for completed member, got %v", err)
	}
}

func TestEngine_PublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus()
	sub := bus.SubscribeAll(256)

	wf := scheduler.NewStepWorkflow("wf-events", "events", scheduler.ModeSequential, 1,
		newStep("a"), newStep("b"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewEngine(wf, Config{Executor: newFakeExecutor(), Publisher: bus}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	bus.Close()

	counts := map[string]int{}
	var last scheduler.Snapshot
	for ev := range sub {
		counts[ev.EventType()]++
		if ev.WorkflowID() != "wf-events" {
			t.Errorf("Unexpected workflow ID %q on %s", ev.WorkflowID(), ev.EventType())
		}
		if upd, ok := ev.(events.WorkflowUpdatedEvent); ok {
			last = upd.Snapshot
		}
	}

	if counts[events.EventTypeMemberStarted] != 2 || counts[events.EventTypeMemberCompleted] != 2 {
		t.Errorf("Unexpected event counts: %v", counts)
	}
	if last.Status != scheduler.WorkflowCompleted || last.Progress != 100 {
		t.Errorf("Expected final update to report completion, got %s %d%%", last.Status, last.Progress)
	}
}
