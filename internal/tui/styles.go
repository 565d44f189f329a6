package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/scheduler"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusSkipped = lipgloss.NewStyle().
				Foreground(lipgloss.Color("magenta"))

	StyleStatusPaused = lipgloss.NewStyle().
				Foreground(lipgloss.Color("cyan"))

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))
)

// StatusStyle returns the style used for a member status.
func StatusStyle(s scheduler.Status) lipgloss.Style {
	switch s {
	case scheduler.StatusRunning:
		return StyleStatusRunning
	case scheduler.StatusCompleted:
		return StyleStatusComplete
	case scheduler.StatusFailed:
		return StyleStatusFailed
	case scheduler.StatusSkipped:
		return StyleStatusSkipped
	case scheduler.StatusPaused:
		return StyleStatusPaused
	default:
		return StyleStatusPending
	}
}

// StatusIcon returns a styled status indicator.
func StatusIcon(s scheduler.Status) string {
	switch s {
	case scheduler.StatusRunning:
		return StyleStatusRunning.Render("●")
	case scheduler.StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case scheduler.StatusFailed:
		return StyleStatusFailed.Render("✗")
	case scheduler.StatusSkipped:
		return StyleStatusSkipped.Render("⊘")
	case scheduler.StatusPaused:
		return StyleStatusPaused.Render("‖")
	default:
		return StyleStatusPending.Render("○")
	}
}
