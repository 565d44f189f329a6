package backend

import "time"

// Output formats understood by the shell executor.
const (
	OutputText = "text" // Trimmed stdout as a string
	OutputJSON = "json" // Stdout decoded as a JSON value
)

// Config defines the configuration for a step executor.
type Config struct {
	Type    string        // "shell" or "echo"
	Shell   string        // Interpreter invoked as <shell> -c <command>; defaults to "sh"
	WorkDir string        // Working directory for commands; defaults to the current directory
	Env     []string      // Extra KEY=VALUE pairs appended to the inherited environment
	Timeout time.Duration // Per-attempt limit; zero means none
	Output  string        // OutputText (default) or OutputJSON
}
