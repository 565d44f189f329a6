package config

import (
	"sort"
	"time"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/workflow"
)

// ExecutorConfig translates the engine section into a backend configuration.
func (c *Config) ExecutorConfig() backend.Config {
	keys := make([]string, 0, len(c.Engine.Env))
	for k := range c.Engine.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Engine.Env[k])
	}

	return backend.Config{
		Type:    c.Engine.Backend,
		Shell:   c.Engine.Shell,
		WorkDir: c.Engine.WorkDir,
		Env:     env,
		Timeout: time.Duration(c.Engine.StepTimeoutMs) * time.Millisecond,
		Output:  c.Engine.Output,
	}
}

// RetryDelayPolicy returns the retry delay settings, falling back to the
// workflow package defaults for anything left unset.
func (c *Config) RetryDelayPolicy() workflow.RetryDelayConfig {
	p := workflow.DefaultRetryDelayConfig()
	if c.RetryDelay.InitialIntervalMs > 0 {
		p.InitialInterval = time.Duration(c.RetryDelay.InitialIntervalMs) * time.Millisecond
	}
	if c.RetryDelay.MaxIntervalMs > 0 {
		p.MaxInterval = time.Duration(c.RetryDelay.MaxIntervalMs) * time.Millisecond
	}
	if c.RetryDelay.Multiplier > 0 {
		p.Multiplier = c.RetryDelay.Multiplier
	}
	if c.RetryDelay.RandomizationFactor > 0 {
		p.RandomizationFactor = c.RetryDelay.RandomizationFactor
	}
	return p
}

// BreakerPolicy returns the circuit breaker settings with the same fallback rules.
func (c *Config) BreakerPolicy() workflow.BreakerConfig {
	p := workflow.DefaultBreakerConfig()
	if c.Breaker.ConsecutiveFailures > 0 {
		p.ConsecutiveFailures = c.Breaker.ConsecutiveFailures
	}
	if c.Breaker.OpenTimeoutMs > 0 {
		p.OpenTimeout = time.Duration(c.Breaker.OpenTimeoutMs) * time.Millisecond
	}
	return p
}
