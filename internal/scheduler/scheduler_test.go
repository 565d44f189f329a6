package scheduler

import (
	"testing"
)

func ids(members []Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.State().ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func withStatus(s *Step, status Status) *Step {
	s.Status = status
	return s
}

func withPriority(s *Step, p Priority) *Step {
	s.Priority = p
	return s
}

func members(steps ...*Step) []Member {
	out := make([]Member, len(steps))
	for i, s := range steps {
		out[i] = s
	}
	return out
}

func TestSelectNext(t *testing.T) {
	tests := []struct {
		name     string
		members  []Member
		inFlight map[string]bool
		limit    int
		want     []string
	}{
		{
			name:    "root first",
			members: members(step("A"), step("B", "A"), step("C", "A")),
			limit:   2,
			want:    []string{"A"},
		},
		{
			name:    "dependents after root completes",
			members: members(withStatus(step("A"), StatusCompleted), step("B", "A"), step("C", "A")),
			limit:   2,
			want:    []string{"B", "C"},
		},
		{
			name:     "no free slot",
			members:  members(withStatus(step("A"), StatusRunning), step("B")),
			inFlight: map[string]bool{"A": true},
			limit:    1,
			want:     []string{},
		},
		{
			name:     "slots reduced by in-flight members",
			members:  members(withStatus(step("A"), StatusRunning), step("B"), step("C")),
			inFlight: map[string]bool{"A": true},
			limit:    2,
			want:     []string{"B"},
		},
		{
			name:    "priority first, stable on ties",
			members: members(withPriority(step("A"), PriorityLow), step("B"), withPriority(step("C"), PriorityHigh), step("D")),
			limit:   3,
			want:    []string{"C", "B", "D"},
		},
		{
			name:    "unset priority counts as medium",
			members: members(withPriority(step("A"), PriorityLow), step("B")),
			limit:   1,
			want:    []string{"B"},
		},
		{
			name:    "failed dependency blocks",
			members: members(withStatus(step("A"), StatusFailed), step("B", "A")),
			limit:   1,
			want:    []string{},
		},
		{
			name:    "unknown dependency is satisfied",
			members: members(step("A", "ghost")),
			limit:   1,
			want:    []string{"A"},
		},
		{
			name:    "only pending members qualify",
			members: members(withStatus(step("A"), StatusPaused), withStatus(step("B"), StatusSkipped), step("C")),
			limit:   3,
			want:    []string{"C"},
		},
		{
			name:    "zero limit",
			members: members(step("A")),
			limit:   0,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectNext(tt.members, tt.inFlight, tt.limit)
			if got == nil {
				t.Fatal("Expected non-nil slice")
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestSelectNext_DoesNotMutateInput(t *testing.T) {
	in := members(withPriority(step("A"), PriorityLow), withPriority(step("B"), PriorityUrgent))

	SelectNext(in, nil, 2)

	if !equalIDs(ids(in), []string{"A", "B"}) {
		t.Errorf("Input reordered: %v", ids(in))
	}
	for _, m := range in {
		if m.State().Status != StatusPending {
			t.Errorf("Status of %s changed to %s", m.State().ID, m.State().Status)
		}
	}
}

func TestUnsatisfiable(t *testing.T) {
	statuses := map[string]Status{
		"done":    StatusCompleted,
		"failed":  StatusFailed,
		"skipped": StatusSkipped,
		"running": StatusRunning,
	}

	tests := []struct {
		deps []string
		want bool
	}{
		{[]string{"done"}, false},
		{[]string{"running"}, false},
		{[]string{"done", "failed"}, true},
		{[]string{"skipped"}, true},
		{[]string{"ghost"}, false},
	}

	for _, tt := range tests {
		u := &Unit{ID: "x", DependsOn: tt.deps}
		if got := Unsatisfiable(u, statuses); got != tt.want {
			t.Errorf("Unsatisfiable(%v) = %v, want %v", tt.deps, got, tt.want)
		}
	}
}

func TestParseModeAndPriority(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeConditional {
		t.Errorf("Expected empty mode to be conditional, got %v %v", m, err)
	}
	if m, err := ParseMode("Parallel"); err != nil || m != ModeParallel {
		t.Errorf("Expected parallel, got %v %v", m, err)
	}
	if _, err := ParseMode("batch"); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if p, err := ParsePriority("urgent"); err != nil || p != PriorityUrgent {
		t.Errorf("Expected urgent, got %v %v", p, err)
	}
	if p, _ := ParsePriority(""); p != PriorityMedium {
		t.Errorf("Expected medium default, got %v", p)
	}
	if _, err := ParsePriority("critical"); err == nil {
		t.Error("Expected error for unknown priority")
	}
}
