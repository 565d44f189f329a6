package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/taskflow/internal/scheduler"
)

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrNoMembers       = errors.New("workflow defines no steps or tasks")
	ErrMixedMembers    = errors.New("workflow defines both steps and tasks")
)

// Workflow builds a fresh, validated workflow from the definition stored under id.
func (c *Config) Workflow(id string) (*scheduler.Workflow, error) {
	wc, ok := c.Workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	return BuildWorkflow(id, wc)
}

// WorkflowIDs returns the configured workflow IDs in sorted order.
func (c *Config) WorkflowIDs() []string {
	ids := make([]string, 0, len(c.Workflows))
	for id := range c.Workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildWorkflow converts a definition into a workflow ready for the engine.
// Names are parsed, the schedule is checked and the member graph is validated,
// so a definition that passes here is rejected by the engine only if it is
// mutated in between.
func BuildWorkflow(id string, wc WorkflowConfig) (*scheduler.Workflow, error) {
	mode, err := scheduler.ParseMode(wc.Mode)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, err)
	}
	priority, err := scheduler.ParsePriority(wc.Priority)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, err)
	}
	if wc.Schedule != "" {
		if _, err := ParseSchedule(wc.Schedule); err != nil {
			return nil, fmt.Errorf("workflow %s: %w", id, err)
		}
	}

	var members []scheduler.Member
	switch {
	case len(wc.Steps) > 0 && len(wc.Tasks) > 0:
		return nil, fmt.Errorf("workflow %s: %w", id, ErrMixedMembers)
	case len(wc.Steps) > 0:
		for _, sc := range wc.Steps {
			step, err := buildStep(sc)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", id, err)
			}
			members = append(members, step)
		}
	case len(wc.Tasks) > 0:
		for _, tc := range wc.Tasks {
			task, err := buildTask(tc)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", id, err)
			}
			members = append(members, task)
		}
	default:
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNoMembers)
	}

	concurrency := wc.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}
	policy := scheduler.FailFast
	if wc.ContinueOnFailure {
		policy = scheduler.ContinueOnFailure
	}

	name := wc.Name
	if name == "" {
		name = id
	}

	wf := &scheduler.Workflow{
		ID:            id,
		Name:          name,
		Description:   wc.Description,
		Members:       members,
		Mode:          mode,
		Concurrency:   concurrency,
		FailurePolicy: policy,
		Priority:      priority,
	}
	if _, err := scheduler.Validate(wf); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, err)
	}
	return wf, nil
}

func buildStep(sc StepConfig) (*scheduler.Step, error) {
	priority, err := scheduler.ParsePriority(sc.Priority)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", sc.ID, err)
	}
	if sc.MaxRetries < 0 {
		return nil, fmt.Errorf("step %s: max_retries must not be negative", sc.ID)
	}
	return &scheduler.Step{
		Unit: scheduler.Unit{
			ID:         sc.ID,
			DependsOn:  append([]string(nil), sc.DependsOn...),
			Priority:   priority,
			MaxRetries: sc.MaxRetries,
		},
		Name:        sc.Name,
		Description: sc.Description,
		Command:     sc.Command,
		Resources:   append([]string(nil), sc.Resources...),
	}, nil
}

func buildTask(tc TaskConfig) (*scheduler.Task, error) {
	priority, err := scheduler.ParsePriority(tc.Priority)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", tc.ID, err)
	}
	if tc.MaxRetries < 0 {
		return nil, fmt.Errorf("task %s: max_retries must not be negative", tc.ID)
	}

	steps := make([]*scheduler.Step, 0, len(tc.Steps))
	for _, sc := range tc.Steps {
		step, err := buildStep(sc)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", tc.ID, err)
		}
		// Steps inside a task run in list order
		step.DependsOn = nil
		steps = append(steps, step)
	}

	return &scheduler.Task{
		Unit: scheduler.Unit{
			ID:         tc.ID,
			DependsOn:  append([]string(nil), tc.DependsOn...),
			Priority:   priority,
			MaxRetries: tc.MaxRetries,
		},
		Title:       tc.Title,
		Description: tc.Description,
		Component:   tc.Component,
		Steps:       steps,
	}, nil
}
