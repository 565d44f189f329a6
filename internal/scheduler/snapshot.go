package scheduler

import "time"

// StepSnapshot is an immutable copy of a step's state.
type StepSnapshot struct {
	ID         string
	Name       string
	Status     Status
	RetryCount int
	MaxRetries int
	Error      string
}

// MemberSnapshot is an immutable copy of a member's state.
type MemberSnapshot struct {
	ID         string
	Label      string
	Kind       string // "task" or "step"
	Status     Status
	Priority   Priority
	DependsOn  []string
	Progress   int
	RetryCount int
	MaxRetries int
	Result     any
	Error      string
	StartTime  time.Time
	EndTime    time.Time
	Steps      []StepSnapshot
}

// Snapshot is a point-in-time copy of a workflow, safe to hand to other goroutines.
type Snapshot struct {
	WorkflowID  string
	Name        string
	Mode        ExecutionMode
	Status      WorkflowStatus
	Concurrency int
	Running     int
	Progress    int
	Members     []MemberSnapshot
	Taken       time.Time
}

// Counts tallies members by status.
func (s Snapshot) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, m := range s.Members {
		counts[m.Status]++
	}
	return counts
}

// TakeSnapshot copies the workflow's current state. Progress values are computed
// from statuses at the time of the call.
func TakeSnapshot(w *Workflow, now time.Time) Snapshot {
	snap := Snapshot{
		WorkflowID:  w.ID,
		Name:        w.Name,
		Mode:        w.Mode,
		Status:      w.Status,
		Concurrency: w.Concurrency,
		Running:     w.Running(),
		Progress:    w.Progress(),
		Members:     make([]MemberSnapshot, 0, len(w.Members)),
		Taken:       now,
	}
	for _, m := range w.Members {
		snap.Members = append(snap.Members, snapshotMember(m))
	}
	return snap
}

func snapshotMember(m Member) MemberSnapshot {
	u := m.State()
	ms := MemberSnapshot{
		ID:         u.ID,
		Label:      m.Label(),
		Kind:       "task",
		Status:     u.Status,
		Priority:   u.Priority,
		DependsOn:  append([]string(nil), u.DependsOn...),
		Progress:   m.Progress(),
		RetryCount: u.RetryCount,
		MaxRetries: u.MaxRetries,
		Result:     u.Result,
		Error:      errString(u.Error),
		StartTime:  u.StartTime,
		EndTime:    u.EndTime,
	}
	if _, ok := m.(*Step); ok {
		ms.Kind = "step"
		return ms
	}
	for _, s := range m.Work() {
		ms.Steps = append(ms.Steps, StepSnapshot{
			ID:         s.ID,
			Name:       s.Label(),
			Status:     s.Status,
			RetryCount: s.RetryCount,
			MaxRetries: s.MaxRetries,
			Error:      errString(s.Error),
		})
	}
	return ms
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
