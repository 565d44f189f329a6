package config

// EngineConfig holds host settings shared by every workflow run.
type EngineConfig struct {
	DatabasePath  string            `json:"database_path,omitempty"`   // SQLite file for run history; empty disables persistence
	MetricsAddr   string            `json:"metrics_addr,omitempty"`    // Listen address for /metrics in serve mode
	Backend       string            `json:"backend,omitempty"`         // Executor type matching backend.Config.Type: "shell", "echo"
	Shell         string            `json:"shell,omitempty"`           // Interpreter for step commands
	WorkDir       string            `json:"work_dir,omitempty"`        // Working directory for step commands
	Env           map[string]string `json:"env,omitempty"`             // Extra environment for step commands
	Output        string            `json:"output,omitempty"`          // "text" or "json"
	StepTimeoutMs int               `json:"step_timeout_ms,omitempty"` // Per-attempt limit; zero means none
}

// RetryDelayConfig spaces out re-attempts of a failing step.
type RetryDelayConfig struct {
	InitialIntervalMs   int     `json:"initial_interval_ms,omitempty"`
	MaxIntervalMs       int     `json:"max_interval_ms,omitempty"`
	Multiplier          float64 `json:"multiplier,omitempty"`
	RandomizationFactor float64 `json:"randomization_factor,omitempty"`
}

// BreakerConfig trips a circuit per command after repeated failures.
type BreakerConfig struct {
	Enabled             bool   `json:"enabled"`
	ConsecutiveFailures uint32 `json:"consecutive_failures,omitempty"`
	OpenTimeoutMs       int    `json:"open_timeout_ms,omitempty"`
}

// StepConfig defines one step, either directly in a workflow or inside a task.
type StepConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Command     string   `json:"command"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Priority    string   `json:"priority,omitempty"` // low, medium, high, urgent
	MaxRetries  int      `json:"max_retries,omitempty"`
	Resources   []string `json:"resources,omitempty"` // Held exclusively while the step runs
}

// TaskConfig defines a task made of ordered steps.
type TaskConfig struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Component   string       `json:"component,omitempty"`
	DependsOn   []string     `json:"depends_on,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	MaxRetries  int          `json:"max_retries,omitempty"`
	Steps       []StepConfig `json:"steps"`
}

// WorkflowConfig defines a workflow over either steps or tasks, never both.
type WorkflowConfig struct {
	Name              string       `json:"name,omitempty"`
	Description       string       `json:"description,omitempty"`
	Mode              string       `json:"mode,omitempty"`        // sequential, parallel, conditional (default)
	Concurrency       int          `json:"concurrency,omitempty"` // Defaults to 1
	ContinueOnFailure bool         `json:"continue_on_failure,omitempty"`
	Priority          string       `json:"priority,omitempty"` // low, medium (default), high
	Schedule          string       `json:"schedule,omitempty"` // Five-field cron expression for serve mode
	Steps             []StepConfig `json:"steps,omitempty"`
	Tasks             []TaskConfig `json:"tasks,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Engine     EngineConfig              `json:"engine"`
	RetryDelay RetryDelayConfig          `json:"retry_delay"`
	Breaker    BreakerConfig             `json:"breaker"`
	Workflows  map[string]WorkflowConfig `json:"workflows"`
}
