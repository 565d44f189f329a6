// Package trigger starts workflow runs on cron schedules.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// RunFunc starts one run of the named workflow and blocks until it finishes.
type RunFunc func(ctx context.Context, workflowID string) error

// Entry describes one registered schedule.
type Entry struct {
	WorkflowID string    `json:"workflow_id"`
	Schedule   string    `json:"schedule"`
	NextRun    time.Time `json:"next_run"`
}

// Scheduler fires workflow runs from cron expressions.
//
// A workflow never overlaps itself: if a run is still going when the next
// activation arrives, that activation is skipped and the job is rescheduled.
type Scheduler struct {
	cron   gocron.Scheduler
	run    RunFunc
	logger *slog.Logger
	ctx    context.Context

	schedules map[string]string // workflow ID -> expression
}

// New creates a scheduler whose runs inherit ctx. Jobs do not fire until Start.
func New(ctx context.Context, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler(gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create cron scheduler: %w", err)
	}
	return &Scheduler{
		cron:      s,
		run:       run,
		logger:    logger,
		ctx:       ctx,
		schedules: make(map[string]string),
	}, nil
}

// Add registers workflowID to run on the five-field cron expression expr.
// Registering the same workflow again replaces its schedule.
func (s *Scheduler) Add(workflowID, expr string) error {
	s.cron.RemoveByTags(tag(workflowID))

	job, err := s.cron.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(s.fire, workflowID),
		gocron.WithName("workflow:"+workflowID),
		gocron.WithTags(tag(workflowID)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling workflow %s with %q: %w", workflowID, expr, err)
	}
	s.schedules[workflowID] = expr

	s.logger.Info("workflow scheduled", "workflow_id", workflowID, "schedule", expr, "job_id", job.ID().String())
	return nil
}

// Entries lists registered schedules sorted by workflow ID.
// NextRun is zero until the scheduler has been started.
func (s *Scheduler) Entries() []Entry {
	next := make(map[string]time.Time)
	for _, job := range s.cron.Jobs() {
		at, err := job.NextRun()
		if err != nil {
			continue
		}
		for _, t := range job.Tags() {
			next[t] = at
		}
	}

	entries := make([]Entry, 0, len(s.schedules))
	for id, expr := range s.schedules {
		entries = append(entries, Entry{WorkflowID: id, Schedule: expr, NextRun: next[tag(id)]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WorkflowID < entries[j].WorkflowID })
	return entries
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops firing and waits for running jobs to return.
func (s *Scheduler) Shutdown() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutting down cron scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) fire(workflowID string) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.logger.Info("scheduled run starting", "workflow_id", workflowID)

	if err := s.run(s.ctx, workflowID); err != nil {
		s.logger.Error("scheduled run failed", "workflow_id", workflowID, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled run finished", "workflow_id", workflowID, "duration", time.Since(start))
}

func tag(workflowID string) string {
	return "workflow:" + workflowID
}
