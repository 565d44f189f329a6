package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// Validate checks a workflow for configuration errors before anything is dispatched.
// On success it returns member IDs in a topological order.
//
// Rejected: concurrency below one, empty or duplicate member IDs, duplicate step IDs
// within a task, members depending on themselves, dependency cycles, and (in
// sequential mode) members depending on a later member.
func Validate(w *Workflow) ([]string, error) {
	if w.Concurrency < 1 {
		return nil, &ConfigError{Err: ErrInvalidConcurrency, Detail: fmt.Sprintf("concurrency %d", w.Concurrency)}
	}

	position := make(map[string]int, len(w.Members))
	for i, m := range w.Members {
		id := m.State().ID
		if id == "" {
			return nil, &ConfigError{Err: ErrEmptyID, Detail: fmt.Sprintf("member at index %d", i)}
		}
		if _, exists := position[id]; exists {
			return nil, &ConfigError{Member: id, Err: ErrDuplicateMember}
		}
		position[id] = i

		if err := validateSteps(m); err != nil {
			return nil, err
		}
	}

	for i, m := range w.Members {
		u := m.State()
		for _, depID := range u.DependsOn {
			if depID == u.ID {
				return nil, &ConfigError{Member: u.ID, Err: ErrCycle, Detail: "member depends on itself"}
			}
			if w.Mode == ModeSequential {
				if depPos, ok := position[depID]; ok && depPos > i {
					return nil, &ConfigError{Member: u.ID, Err: ErrForwardDependency, Detail: fmt.Sprintf("depends on later member %q", depID)}
				}
			}
		}
	}

	return topoOrder(w.Members, position)
}

// validateSteps rejects tasks whose steps share an ID.
func validateSteps(m Member) error {
	if _, isStep := m.(*Step); isStep {
		return nil
	}
	seen := make(map[string]bool)
	for _, s := range m.Work() {
		if s.ID == "" {
			return &ConfigError{Member: m.State().ID, Err: ErrEmptyID, Detail: "step without id"}
		}
		if seen[s.ID] {
			return &ConfigError{Member: m.State().ID, Err: ErrDuplicateMember, Detail: fmt.Sprintf("step %q", s.ID)}
		}
		seen[s.ID] = true
	}
	return nil
}

// topoOrder sorts member IDs with gammazero/toposort. Dependencies on IDs outside the
// workflow are dropped: they are treated as already satisfied.
func topoOrder(members []Member, position map[string]int) ([]string, error) {
	var edges []toposort.Edge
	for _, m := range members {
		u := m.State()
		// Edge from nil keeps members without known dependencies in the result
		edges = append(edges, toposort.Edge{nil, u.ID})
		for _, depID := range u.DependsOn {
			if _, known := position[depID]; !known {
				continue
			}
			edges = append(edges, toposort.Edge{depID, u.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &ConfigError{Err: ErrCycle, Detail: err.Error()}
	}

	order := make([]string, 0, len(members))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(members) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, m := range members {
			if id := m.State().ID; !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, &ConfigError{Err: ErrCycle, Detail: "unsortable members: " + strings.Join(missing, ", ")}
	}

	return order, nil
}
