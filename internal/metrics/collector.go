// Package metrics exposes workflow activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

const namespace = "taskflow"

// Collector turns bus events into Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	membersStarted  *prometheus.CounterVec
	membersFinished *prometheus.CounterVec
	memberRetries   *prometheus.CounterVec
	memberDuration  *prometheus.HistogramVec
	runsFinished    *prometheus.CounterVec
	progress        *prometheus.GaugeVec
	running         *prometheus.GaugeVec

	mu   sync.Mutex
	last map[string]scheduler.WorkflowStatus // workflow ID -> last seen status
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		membersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_starts_total",
			Help:      "Step dispatches, including retries.",
		}, []string{"workflow"}),
		membersFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_finished_total",
			Help:      "Members reaching a terminal status.",
		}, []string{"workflow", "status"}),
		memberRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_retries_total",
			Help:      "Failures absorbed by a retry policy.",
		}, []string{"workflow"}),
		memberDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "member_duration_seconds",
			Help:      "Time from first dispatch to completion or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"workflow", "status"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_finished_total",
			Help:      "Workflow runs reaching completed or failed.",
		}, []string{"workflow", "status"}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_progress_percent",
			Help:      "Latest workflow progress (0-100).",
		}, []string{"workflow"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_running_members",
			Help:      "Members currently in flight.",
		}, []string{"workflow"}),
		last: make(map[string]scheduler.WorkflowStatus),
	}

	c.registry.MustRegister(
		c.membersStarted,
		c.membersFinished,
		c.memberRetries,
		c.memberDuration,
		c.runsFinished,
		c.progress,
		c.running,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Run observes events from sub until it is closed or ctx is done.
func (c *Collector) Run(ctx context.Context, sub <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			c.Observe(ev)
		}
	}
}

// Observe records one event.
func (c *Collector) Observe(ev events.Event) {
	wf := ev.WorkflowID()

	switch e := ev.(type) {
	case events.MemberStartedEvent:
		c.membersStarted.WithLabelValues(wf).Inc()
	case events.MemberCompletedEvent:
		c.membersFinished.WithLabelValues(wf, scheduler.StatusCompleted.String()).Inc()
		c.memberDuration.WithLabelValues(wf, scheduler.StatusCompleted.String()).Observe(e.Duration.Seconds())
	case events.MemberFailedEvent:
		c.membersFinished.WithLabelValues(wf, scheduler.StatusFailed.String()).Inc()
		c.memberDuration.WithLabelValues(wf, scheduler.StatusFailed.String()).Observe(e.Duration.Seconds())
	case events.MemberSkippedEvent:
		c.membersFinished.WithLabelValues(wf, scheduler.StatusSkipped.String()).Inc()
	case events.MemberRetryingEvent:
		c.memberRetries.WithLabelValues(wf).Inc()
	case events.WorkflowUpdatedEvent:
		c.observeWorkflow(e.Snapshot)
	}
}

func (c *Collector) observeWorkflow(snap scheduler.Snapshot) {
	wf := snap.WorkflowID
	c.progress.WithLabelValues(wf).Set(float64(snap.Progress))
	c.running.WithLabelValues(wf).Set(float64(snap.Running))

	c.mu.Lock()
	defer c.mu.Unlock()

	// Count each transition into a finished state once
	prev, seen := c.last[wf]
	c.last[wf] = snap.Status
	if snap.Status.IsFinished() && (!seen || !prev.IsFinished()) {
		c.runsFinished.WithLabelValues(wf, snap.Status.String()).Inc()
	}
}
