package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/taskflow/internal/scheduler"
)

// The engine retries immediately. Hosts that want spacing between attempts or
// protection for a flaky backend wrap their executor with the decorators below.

// RetryDelayConfig configures exponential backoff between attempts of the same step.
type RetryDelayConfig struct {
	InitialInterval     time.Duration // Delay before the first re-attempt (default 100ms)
	MaxInterval         time.Duration // Upper bound for any single delay (default 10s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryDelayConfig returns the default retry delay configuration.
func DefaultRetryDelayConfig() RetryDelayConfig {
	return RetryDelayConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

type delayedExecutor struct {
	next StepExecutor
	cfg  RetryDelayConfig

	mu       sync.Mutex
	backoffs map[string]*backoff.ExponentialBackOff // step ID -> policy for its current streak
}

// WithRetryDelay waits before every re-attempt of a step (RetryCount > 0).
// The wait grows exponentially per step and is cut short by ctx.
func WithRetryDelay(next StepExecutor, cfg RetryDelayConfig) StepExecutor {
	return &delayedExecutor{
		next:     next,
		cfg:      cfg,
		backoffs: make(map[string]*backoff.ExponentialBackOff),
	}
}

func (d *delayedExecutor) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	if step.RetryCount > 0 {
		if err := sleepCtx(ctx, d.delayFor(step.ID)); err != nil {
			return nil, err
		}
	} else {
		d.mu.Lock()
		delete(d.backoffs, step.ID)
		d.mu.Unlock()
	}
	return d.next.Execute(ctx, step, inputs)
}

func (d *delayedExecutor) delayFor(stepID string) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.backoffs[stepID]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = d.cfg.InitialInterval
		b.MaxInterval = d.cfg.MaxInterval
		b.Multiplier = d.cfg.Multiplier
		b.RandomizationFactor = d.cfg.RandomizationFactor
		b.MaxElapsedTime = 0 // The engine's retry budget decides when to stop
		b.Reset()
		d.backoffs[stepID] = b
	}

	next := b.NextBackOff()
	if next == backoff.Stop {
		return d.cfg.MaxInterval
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BreakerConfig configures circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Trip after this many failures in a row (default 5)
	OpenTimeout         time.Duration // Stay open before probing recovery (default 30s)
	HalfOpenRequests    uint32        // Probe requests allowed while half-open (default 3)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    3,
	}
}

// CircuitBreakerRegistry manages one circuit breaker per key.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	logger   *slog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(cfg BreakerConfig, logger *slog.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for key, creating it on first use.
func (r *CircuitBreakerRegistry) Get(key string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: r.cfg.HalfOpenRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is not the backend's fault
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[key] = cb
	return cb
}

// KeyFunc picks the breaker a step is routed through.
type KeyFunc func(step scheduler.Step) string

type breakerExecutor struct {
	next     StepExecutor
	registry *CircuitBreakerRegistry
	key      KeyFunc
}

// WithCircuitBreaker routes each step through the breaker chosen by key. While a
// breaker is open, steps fail immediately with gobreaker.ErrOpenState and the
// engine's retry policy treats that like any other failure.
func WithCircuitBreaker(next StepExecutor, registry *CircuitBreakerRegistry, key KeyFunc) StepExecutor {
	if key == nil {
		key = func(scheduler.Step) string { return "default" }
	}
	return &breakerExecutor{next: next, registry: registry, key: key}
}

func (b *breakerExecutor) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	cb := b.registry.Get(b.key(step))
	return cb.Execute(func() (interface{}, error) {
		return b.next.Execute(ctx, step, inputs)
	})
}
