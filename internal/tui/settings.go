package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/config"
)

// Save targets offered by the settings form.
const (
	TargetGlobal  = "global"
	TargetProject = "project"
)

// SettingsModel edits the engine section of the configuration and saves it.
type SettingsModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	saved       bool
	savedTo     string
	err         error

	// Form field bindings (strings for Huh)
	saveTarget   string
	backend      string
	shell        string
	workDir      string
	databasePath string
	metricsAddr  string
	stepTimeout  string
}

// NewSettingsModel creates a settings form seeded from cfg.
func NewSettingsModel(cfg *config.Config, globalPath, projectPath string) SettingsModel {
	m := SettingsModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:   TargetProject,
		backend:      cfg.Engine.Backend,
		shell:        cfg.Engine.Shell,
		workDir:      cfg.Engine.WorkDir,
		databasePath: cfg.Engine.DatabasePath,
		metricsAddr:  cfg.Engine.MetricsAddr,
		stepTimeout:  strconv.Itoa(cfg.Engine.StepTimeoutMs),
	}
	if m.backend == "" {
		m.backend = "shell"
	}
	m.buildForm()
	return m
}

// RunSettings shows the form and returns the path written, or "" if cancelled.
func RunSettings(cfg *config.Config, globalPath, projectPath string) (string, error) {
	final, err := tea.NewProgram(NewSettingsModel(cfg, globalPath, projectPath)).Run()
	if err != nil {
		return "", err
	}
	m := final.(SettingsModel)
	return m.savedTo, m.err
}

func (m *SettingsModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (.taskflow/config.json)", TargetProject),
					huh.NewOption("Global (~/.taskflow/config.json)", TargetGlobal),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("backend").
				Title("Executor").
				Options(
					huh.NewOption("Shell commands", "shell"),
					huh.NewOption("Echo (dry run)", "echo"),
				).
				Value(&m.backend),

			huh.NewInput().
				Key("shell").
				Title("Shell").
				Value(&m.shell).
				Placeholder("sh"),

			huh.NewInput().
				Key("workDir").
				Title("Working Directory").
				Value(&m.workDir).
				Placeholder("current directory"),

			huh.NewInput().
				Key("stepTimeout").
				Title("Step Timeout (ms, 0 = none)").
				Value(&m.stepTimeout).
				Validate(validateMillis),
		).Title("Execution"),

		huh.NewGroup(
			huh.NewInput().
				Key("databasePath").
				Title("Run History Database").
				Value(&m.databasePath).
				Placeholder("empty disables history"),

			huh.NewInput().
				Key("metricsAddr").
				Title("Metrics Address").
				Value(&m.metricsAddr).
				Placeholder(":9090"),
		).Title("Host"),
	)
}

func validateMillis(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a non-negative number of milliseconds")
	}
	return nil
}

// Init initializes the settings form.
func (m SettingsModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings form.
func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form = m.form.WithWidth(max(msg.Width-8, 20))

	case tea.KeyMsg:
		switch msg.String() {
		case KeyEsc, KeyCtrlC:
			// Cancel without saving
			return m, tea.Quit
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.applyFormToConfig()
		path := m.targetPath()
		if err := config.Save(m.config, path); err != nil {
			m.err = err
		} else {
			m.saved = true
			m.savedTo = path
		}
		return m, tea.Quit
	case huh.StateAborted:
		return m, tea.Quit
	}

	return m, cmd
}

func (m SettingsModel) targetPath() string {
	if m.saveTarget == TargetGlobal {
		return m.globalPath
	}
	return m.projectPath
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsModel) applyFormToConfig() {
	m.config.Engine.Backend = m.backend
	m.config.Engine.Shell = strings.TrimSpace(m.shell)
	m.config.Engine.WorkDir = strings.TrimSpace(m.workDir)
	m.config.Engine.DatabasePath = strings.TrimSpace(m.databasePath)
	m.config.Engine.MetricsAddr = strings.TrimSpace(m.metricsAddr)
	if n, err := strconv.Atoi(strings.TrimSpace(m.stepTimeout)); err == nil && n >= 0 {
		m.config.Engine.StepTimeoutMs = n
	}
}

// View renders the settings form.
func (m SettingsModel) View() string {
	var content string
	switch {
	case m.saved:
		content = StyleStatusComplete.Render("✓ Settings saved to " + m.savedTo)
	case m.err != nil:
		content = StyleStatusFailed.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	default:
		content = m.form.View()
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, StyleFocusedBorder.Padding(1, 2).Render(content))
}
