// Package orchestrator runs configured workflows with the host services attached:
// the command executor, resilience decorators, run history and metrics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/metrics"
	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/scheduler"
	"github.com/aristath/taskflow/internal/telemetry"
	"github.com/aristath/taskflow/internal/workflow"
)

// ErrRunFailed is returned by RunWorkflow when the workflow ends failed.
var ErrRunFailed = errors.New("workflow run failed")

// Options configures a Runner.
type Options struct {
	Config    *config.Config
	Store     persistence.Store        // Optional run history
	Metrics   *metrics.Collector       // Optional
	Processes *backend.ProcessManager  // Tracks subprocesses for shutdown; created if nil
	Executor  workflow.StepExecutor    // Overrides the configured backend (tests, dry runs)
	Logger    *slog.Logger             // Defaults to slog.Default()
	NewRunID  func() string            // Defaults to a random UUID
}

// Runner starts workflow runs. It is safe for concurrent use: each run gets
// its own workflow instance, event bus and engine.
type Runner struct {
	cfg      *config.Config
	store    persistence.Store
	metrics  *metrics.Collector
	procs    *backend.ProcessManager
	base     workflow.StepExecutor
	breakers *workflow.CircuitBreakerRegistry // Shared so breaker state outlives a run
	logger   *slog.Logger
	newRunID func() string
}

// New creates a runner. The configured backend is validated here so a bad
// executor setting fails before any run starts.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Processes == nil {
		opts.Processes = backend.NewProcessManager()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}

	base := opts.Executor
	if base == nil {
		var err error
		base, err = backend.New(opts.Config.ExecutorConfig(), opts.Processes)
		if err != nil {
			return nil, fmt.Errorf("creating executor: %w", err)
		}
	}

	r := &Runner{
		cfg:      opts.Config,
		store:    opts.Store,
		metrics:  opts.Metrics,
		procs:    opts.Processes,
		base:     base,
		logger:   opts.Logger,
		newRunID: opts.NewRunID,
	}
	if opts.Config.Breaker.Enabled {
		r.breakers = workflow.NewCircuitBreakerRegistry(opts.Config.BreakerPolicy(), opts.Logger)
	}
	return r, nil
}

// Processes returns the process manager tracking step subprocesses.
func (r *Runner) Processes() *backend.ProcessManager {
	return r.procs
}

// executor builds the per-run decorator chain: breaker first, then the retry
// delay, so a delayed re-attempt still goes through the breaker.
func (r *Runner) executor() workflow.StepExecutor {
	exec := r.base
	if r.breakers != nil {
		exec = workflow.WithCircuitBreaker(exec, r.breakers, BreakerKey)
	}
	return workflow.WithRetryDelay(exec, r.cfg.RetryDelayPolicy())
}

// BreakerKey routes a step through the breaker named after the program it runs.
func BreakerKey(step scheduler.Step) string {
	fields := strings.Fields(step.Command)
	if len(fields) == 0 {
		return "default"
	}
	return fields[0]
}

// Run is one prepared execution of a workflow.
type Run struct {
	ID         string
	WorkflowID string

	engine   *workflow.Engine
	bus      *events.EventBus
	logger   *slog.Logger
	watchers sync.WaitGroup
	cancel   context.CancelFunc
	watchCtx context.Context
}

// Prepare builds a fresh workflow from configuration and wires history and
// metrics to its event bus. Extra observers call Subscribe before Execute.
// A prepared run must be executed: its observers only exit once Execute returns.
func (r *Runner) Prepare(workflowID string) (*Run, error) {
	wf, err := r.cfg.Workflow(workflowID)
	if err != nil {
		return nil, err
	}

	runID := r.newRunID()
	logger := telemetry.WithRunID(r.logger, runID)
	bus := events.NewEventBus()

	watchCtx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:         runID,
		WorkflowID: workflowID,
		bus:        bus,
		logger:     logger,
		cancel:     cancel,
		watchCtx:   watchCtx,
	}
	run.engine = workflow.NewEngine(wf, workflow.Config{
		Executor:  r.executor(),
		Publisher: bus,
		Locks:     scheduler.NewResourceLockManager(),
		Logger:    logger,
	})

	if r.store != nil {
		rec := persistence.NewRecorder(r.store, runID, workflowID, logger)
		run.watch(rec.Run)
	}
	if r.metrics != nil {
		run.watch(r.metrics.Run)
	}
	return run, nil
}

func (run *Run) watch(fn func(context.Context, <-chan events.Event)) {
	sub := run.bus.SubscribeAll(events.DefaultBufferSize)
	run.watchers.Add(1)
	go func() {
		defer run.watchers.Done()
		fn(run.watchCtx, sub)
	}()
}

// Subscribe returns a channel receiving every event of this run. It is closed
// once the run has finished.
func (run *Run) Subscribe(buffer int) <-chan events.Event {
	return run.bus.SubscribeAll(buffer)
}

// Snapshot returns the current state of the run's workflow.
func (run *Run) Snapshot() scheduler.Snapshot {
	return run.engine.Snapshot()
}

// Stop pauses the run; Execute returns shortly after.
func (run *Run) Stop() {
	run.engine.Stop()
}

// Execute drives the workflow to completion, then closes the event bus and
// waits for history and metrics to catch up.
func (run *Run) Execute(ctx context.Context) (scheduler.Snapshot, error) {
	defer run.cancel()

	run.logger.Info("run starting", "workflow_id", run.WorkflowID)
	snap, err := run.engine.Run(ctx)

	run.bus.Close()
	run.watchers.Wait()

	if err != nil {
		run.logger.Error("run ended with error", "workflow_id", run.WorkflowID, "error", err)
	}
	return snap, err
}

// RunWorkflow prepares and executes one run. A run that finishes failed is
// reported as ErrRunFailed, so it can serve as a trigger.RunFunc.
func (r *Runner) RunWorkflow(ctx context.Context, workflowID string) error {
	run, err := r.Prepare(workflowID)
	if err != nil {
		return err
	}
	snap, err := run.Execute(ctx)
	if err != nil {
		return err
	}
	if snap.Status == scheduler.WorkflowFailed {
		return fmt.Errorf("%w: %s (run %s)", ErrRunFailed, workflowID, run.ID)
	}
	return nil
}
