package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/taskflow/internal/scheduler"
)

// ErrEmptyCommand is returned for steps without a command.
var ErrEmptyCommand = errors.New("step has no command")

// Environment variables exported to every command.
const (
	EnvStepID      = "TASKFLOW_STEP_ID"
	EnvStepName    = "TASKFLOW_STEP_NAME"
	EnvAttempt     = "TASKFLOW_ATTEMPT"
	EnvInputPrefix = "TASKFLOW_INPUT_"
)

// ShellExecutor runs each step's Command through a shell.
type ShellExecutor struct {
	shell   string
	workDir string
	env     []string
	cfg     Config
	procMgr *ProcessManager
}

// NewShellExecutor creates a shell executor.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewShellExecutor(cfg Config, procMgr *ProcessManager) (*ShellExecutor, error) {
	shell := cfg.Shell
	if shell == "" {
		shell = "sh"
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	switch cfg.Output {
	case "", OutputText, OutputJSON:
	default:
		return nil, fmt.Errorf("unknown output format: %s", cfg.Output)
	}

	return &ShellExecutor{
		shell:   shell,
		workDir: workDir,
		env:     cfg.Env,
		cfg:     cfg,
		procMgr: procMgr,
	}, nil
}

// Execute runs step.Command as `<shell> -c <command>`. Outputs of dependencies
// are exported as TASKFLOW_INPUT_<ID> variables.
func (s *ShellExecutor) Execute(ctx context.Context, step scheduler.Step, inputs map[string]any) (any, error) {
	if strings.TrimSpace(step.Command) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCommand, step.ID)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	cmd := newCommand(ctx, s.shell, "-c", step.Command)
	cmd.Dir = s.workDir
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Env = append(cmd.Env, stepEnv(step, inputs)...)

	stdout, _, err := executeCommand(ctx, cmd, s.procMgr)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.ID, err)
	}

	return s.parseOutput(stdout)
}

func (s *ShellExecutor) parseOutput(stdout []byte) (any, error) {
	if s.cfg.Output != OutputJSON {
		return strings.TrimSpace(string(stdout)), nil
	}

	var out any
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON output: %w", err)
	}
	return out, nil
}

// stepEnv builds the variables describing the step and its inputs, sorted by name.
func stepEnv(step scheduler.Step, inputs map[string]any) []string {
	env := []string{
		EnvStepID + "=" + step.ID,
		EnvStepName + "=" + step.Label(),
		EnvAttempt + "=" + strconv.Itoa(step.RetryCount+1),
	}

	keys := make([]string, 0, len(inputs))
	for id := range inputs {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	for _, id := range keys {
		env = append(env, EnvInputPrefix+envName(id)+"="+formatInput(inputs[id]))
	}
	return env
}

// envName upper-cases id and replaces anything outside [A-Z0-9_] with an underscore.
func envName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func formatInput(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}
