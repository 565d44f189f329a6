package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// ProgressPaneModel shows workflow status, member counts and overall progress.
type ProgressPaneModel struct {
	snapshot scheduler.Snapshot
	seen     bool
	bar      progress.Model
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	if ev, ok := msg.(events.WorkflowUpdatedEvent); ok {
		m.snapshot = ev.Snapshot
		m.seen = true
	}
	return m, nil
}

// Snapshot returns the latest workflow state received.
func (m ProgressPaneModel) Snapshot() scheduler.Snapshot {
	return m.snapshot
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	name := "Workflow"
	if m.snapshot.Name != "" {
		name = m.snapshot.Name
	}
	title := StyleTitle.Render(name)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if !m.seen {
		b.WriteString(StyleStatusPending.Render("Waiting for the first update..."))
	} else {
		counts := m.snapshot.Counts()
		fmt.Fprintf(&b, "Status:    %s (%s, concurrency %d)\n", m.snapshot.Status, m.snapshot.Mode, m.snapshot.Concurrency)
		fmt.Fprintf(&b, "Members:   %d\n", len(m.snapshot.Members))
		for _, s := range []scheduler.Status{
			scheduler.StatusCompleted,
			scheduler.StatusRunning,
			scheduler.StatusFailed,
			scheduler.StatusSkipped,
			scheduler.StatusPaused,
			scheduler.StatusPending,
		} {
			label := strings.ToUpper(s.String()[:1]) + s.String()[1:] + ":"
			fmt.Fprintf(&b, "%-10s %s\n", label, StatusStyle(s).Render(fmt.Sprintf("%d", counts[s])))
		}
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(float64(m.snapshot.Progress) / 100))
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.bar.Width = min(max(w-6, 10), 60)
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
