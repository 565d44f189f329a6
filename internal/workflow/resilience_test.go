package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/taskflow/internal/scheduler"
)

func countingExecutor(calls *atomic.Int32, err error) StepExecutor {
	return StepExecutorFunc(func(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		return "ok", nil
	})
}

func TestWithRetryDelay_FirstAttemptIsImmediate(t *testing.T) {
	var calls atomic.Int32
	exec := WithRetryDelay(countingExecutor(&calls, nil), RetryDelayConfig{
		InitialInterval: time.Second,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})

	start := time.Now()
	if _, err := exec.Execute(context.Background(), *newStep("a"), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected no delay on first attempt, took %v", elapsed)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestWithRetryDelay_WaitsBeforeRetries(t *testing.T) {
	var calls atomic.Int32
	exec := WithRetryDelay(countingExecutor(&calls, nil), RetryDelayConfig{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})

	step := newStep("a")
	step.RetryCount = 1

	start := time.Now()
	if _, err := exec.Execute(context.Background(), *step, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	first := time.Since(start)
	if first < 20*time.Millisecond {
		t.Errorf("Expected at least 20ms delay, got %v", first)
	}

	// Second retry of the same streak backs off further
	step.RetryCount = 2
	start = time.Now()
	if _, err := exec.Execute(context.Background(), *step, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if second := time.Since(start); second < 40*time.Millisecond {
		t.Errorf("Expected at least 40ms delay on second retry, got %v", second)
	}
}

func TestWithRetryDelay_CancelledWhileWaiting(t *testing.T) {
	var calls atomic.Int32
	exec := WithRetryDelay(countingExecutor(&calls, nil), RetryDelayConfig{
		InitialInterval: time.Minute,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	step := newStep("a")
	step.RetryCount = 1
	_, err := exec.Execute(ctx, *step, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected wrapped executor not to run, got %d calls", calls.Load())
	}
}

func TestCircuitBreakerRegistry_SameKeySameBreaker(t *testing.T) {
	reg := NewCircuitBreakerRegistry(DefaultBreakerConfig(), nil)

	if reg.Get("sh") != reg.Get("sh") {
		t.Error("Expected the same breaker for the same key")
	}
	if reg.Get("sh") == reg.Get("python") {
		t.Error("Expected different breakers for different keys")
	}
}

func TestWithCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	reg := NewCircuitBreakerRegistry(BreakerConfig{
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}, nil)
	exec := WithCircuitBreaker(countingExecutor(&calls, errors.New("backend down")), reg, nil)

	for i := 0; i < 2; i++ {
		if _, err := exec.Execute(context.Background(), *newStep("a"), nil); err == nil {
			t.Fatal("Expected failure")
		}
	}

	_, err := exec.Execute(context.Background(), *newStep("a"), nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected open breaker to short-circuit, got %d calls", calls.Load())
	}
}

func TestWithCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	reg := NewCircuitBreakerRegistry(BreakerConfig{
		ConsecutiveFailures: 1,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}, nil)
	exec := WithCircuitBreaker(countingExecutor(&calls, context.Canceled), reg, func(s scheduler.Step) string {
		return s.Command
	})

	for i := 0; i < 3; i++ {
		_, err := exec.Execute(context.Background(), scheduler.Step{Command: "sleep"}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("Expected every call to reach the executor, got %d", calls.Load())
	}
	if state := reg.Get("sleep").State(); state != gobreaker.StateClosed {
		t.Errorf("Expected breaker closed, got %s", state)
	}
}
