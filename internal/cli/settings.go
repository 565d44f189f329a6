package cli

import (
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/tui"
)

// NewSettingsCmd creates the command that edits engine settings interactively.
func NewSettingsCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Edit engine settings in an interactive form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			global, project, err := deps.Paths()
			if err != nil {
				return err
			}

			path, err := tui.RunSettings(cfg, global, project)
			if err != nil {
				return err
			}
			out := deps.Output()
			if path == "" {
				out.Success("Settings unchanged")
				return nil
			}
			out.Success("Settings saved to " + path)
			return nil
		},
	}
}
