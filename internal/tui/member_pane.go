package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

const listWidth = 28

// MemberState is what the dashboard knows about one member.
type MemberState struct {
	ID       string
	Label    string
	Status   scheduler.Status
	Progress int
	Log      []string
	Duration time.Duration
}

// MemberPaneModel shows the member list and the selected member's activity log.
type MemberPaneModel struct {
	members     map[string]*MemberState // member ID -> state
	order       []string                // workflow order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewMemberPaneModel creates a new member pane model.
func NewMemberPaneModel() MemberPaneModel {
	return MemberPaneModel{
		members:  make(map[string]*MemberState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the member pane.
func (m MemberPaneModel) Update(msg tea.Msg) (MemberPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.WorkflowUpdatedEvent:
		m.applySnapshot(msg.Snapshot)

	case events.MemberStartedEvent:
		line := "started"
		if msg.StepID != "" && msg.StepID != msg.ID {
			line = "started step " + msg.StepID
		}
		if msg.Attempt > 1 {
			line += fmt.Sprintf(" (attempt %d)", msg.Attempt)
		}
		m.appendLog(msg.ID, msg.Timestamp, line)

	case events.MemberRetryingEvent:
		m.appendLog(msg.ID, msg.Timestamp, fmt.Sprintf("retry %d/%d after: %v", msg.RetryCount, msg.MaxRetries, msg.Err))

	case events.MemberCompletedEvent:
		if s := m.state(msg.ID); s != nil {
			s.Duration = msg.Duration
		}
		line := fmt.Sprintf("completed in %v", msg.Duration.Round(time.Millisecond))
		if msg.Result != nil {
			line += fmt.Sprintf("\n%v", msg.Result)
		}
		m.appendLog(msg.ID, msg.Timestamp, line)

	case events.MemberFailedEvent:
		if s := m.state(msg.ID); s != nil {
			s.Duration = msg.Duration
		}
		m.appendLog(msg.ID, msg.Timestamp, fmt.Sprintf("failed: %v", msg.Err))

	case events.MemberSkippedEvent:
		m.appendLog(msg.ID, msg.Timestamp, "skipped: blocked by "+msg.BlockedBy)
	}

	return m, cmd
}

// applySnapshot refreshes statuses and picks up members not seen before.
func (m *MemberPaneModel) applySnapshot(snap scheduler.Snapshot) {
	for _, ms := range snap.Members {
		s, exists := m.members[ms.ID]
		if !exists {
			s = &MemberState{ID: ms.ID}
			m.members[ms.ID] = s
			m.order = append(m.order, ms.ID)
		}
		s.Label = ms.Label
		s.Status = ms.Status
		s.Progress = ms.Progress
	}
	m.updateViewportContent()
}

func (m *MemberPaneModel) state(id string) *MemberState {
	s, exists := m.members[id]
	if !exists {
		// Member events can arrive before the first snapshot
		s = &MemberState{ID: id, Label: id}
		m.members[id] = s
		m.order = append(m.order, id)
	}
	return s
}

func (m *MemberPaneModel) appendLog(id string, ts time.Time, line string) {
	s := m.state(id)
	if ts.IsZero() {
		ts = time.Now()
	}
	s.Log = append(s.Log, fmt.Sprintf("[%s] %s", ts.Format("15:04:05"), line))
	if m.SelectedID() == id {
		m.updateViewportContent()
	}
}

// View renders the member pane.
func (m MemberPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m MemberPaneModel) renderList() string {
	var b strings.Builder

	title := StyleTitle.Render("Members")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, id := range m.order {
		s := m.members[id]
		name := s.Label
		if len(name) > listWidth-8 {
			name = name[:listWidth-11] + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(s.Status), name)
		if s.Status == scheduler.StatusRunning && s.Progress > 0 {
			line += fmt.Sprintf(" %d%%", s.Progress)
		}
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(listWidth).
		Height(m.height - 2).
		Render(b.String())
}

// SelectedID returns the ID of the selected member.
func (m MemberPaneModel) SelectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Member returns the dashboard state for id.
func (m MemberPaneModel) Member(id string) (MemberState, bool) {
	s, ok := m.members[id]
	if !ok {
		return MemberState{}, false
	}
	return *s, true
}

func (m *MemberPaneModel) updateViewportContent() {
	s, exists := m.members[m.SelectedID()]
	if !exists {
		m.viewport.SetContent("Waiting for members...")
		return
	}

	header := StatusStyle(s.Status).Render(fmt.Sprintf("%s [%s]", s.Label, s.Status))
	if len(s.Log) == 0 {
		m.viewport.SetContent(header + "\n\nNo activity yet.")
		return
	}
	m.viewport.SetContent(header + "\n\n" + strings.Join(s.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *MemberPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *MemberPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *MemberPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
