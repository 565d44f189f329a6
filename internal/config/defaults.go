package config

// DefaultConfig returns the default configuration with the built-in example workflow.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DatabasePath: ".taskflow/taskflow.db",
			MetricsAddr:  ":9090",
			Backend:      "shell",
			Shell:        "sh",
			Output:       "text",
		},
		RetryDelay: RetryDelayConfig{
			InitialIntervalMs:   100,
			MaxIntervalMs:       10000,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Breaker: BreakerConfig{
			Enabled:             false,
			ConsecutiveFailures: 5,
			OpenTimeoutMs:       30000,
		},
		Workflows: map[string]WorkflowConfig{
			"standard": {
				Name:        "Standard pipeline",
				Description: "Fetch, then lint and test side by side, then report.",
				Mode:        "conditional",
				Concurrency: 2,
				Steps: []StepConfig{
					{ID: "fetch", Name: "Fetch", Command: "echo fetched"},
					{ID: "lint", Name: "Lint", Command: "echo lint ok", DependsOn: []string{"fetch"}},
					{ID: "test", Name: "Test", Command: "echo tests ok", DependsOn: []string{"fetch"}, MaxRetries: 1},
					{ID: "report", Name: "Report", Command: `echo "$TASKFLOW_INPUT_LINT / $TASKFLOW_INPUT_TEST"`, DependsOn: []string{"lint", "test"}},
				},
			},
		},
	}
}
