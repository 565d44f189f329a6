// Package tui renders a live dashboard for one workflow run.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneMembers PaneID = iota
	PaneProgress
)

const paneCount = 2

// busClosedMsg is delivered once the event subscription is closed.
type busClosedMsg struct{}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	memberPane    MemberPaneModel
	progressPane  ProgressPaneModel
	focusedPane   PaneID
	eventSub      <-chan events.Event
	stop          func()
	stopRequested bool
	closed        bool
	width         int
	height        int
	quitting      bool
}

// New creates a dashboard fed by sub. stop is called at most once when the
// user asks to stop the workflow; it may be nil.
func New(sub <-chan events.Event, stop func()) Model {
	return Model{
		memberPane:   NewMemberPaneModel(),
		progressPane: NewProgressPaneModel(),
		focusedPane:  PaneMembers,
		eventSub:     sub,
		stop:         stop,
	}
}

// NewProgram wraps the dashboard in a full-screen Bubble Tea program.
func NewProgram(sub <-chan events.Event, stop func()) *tea.Program {
	return tea.NewProgram(New(sub, stop), tea.WithAltScreen())
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyStop:
			if m.stop != nil && !m.stopRequested && !m.closed {
				m.stop()
				m.stopRequested = true
			}

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneMembers
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneMembers {
				var cmd tea.Cmd
				m.memberPane, cmd = m.memberPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case busClosedMsg:
		m.closed = true

	case events.Event:
		var cmd tea.Cmd
		m.memberPane, cmd = m.memberPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.memberPane.View(), m.progressPane.View())

	help := HelpView()
	switch {
	case m.closed:
		help = StyleStatusComplete.Render("Run finished. ") + StyleHelp.Render("q: quit")
	case m.stopRequested:
		help = StyleStatusPaused.Render("Stopping... ") + help
	}
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, help)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	availableHeight := m.height - 1 // help bar

	m.memberPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(m.width-leftWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.memberPane.SetFocused(m.focusedPane == PaneMembers)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
