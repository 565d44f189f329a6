package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/cli"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/telemetry"
)

var version = "dev"

func main() {
	logger := telemetry.SetupLogger(os.Stderr)

	root := newRootCmd(os.Stdout, os.Stderr, logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer, logger *slog.Logger) *cobra.Command {
	var jsonOutput bool
	var configPath string

	root := &cobra.Command{
		Use:           "taskflow",
		Short:         "Run dependency-ordered workflows of shell steps",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Project config file (default .taskflow/config.json)")

	paths := func() (string, string, error) {
		global, project, err := config.DefaultPaths()
		if err != nil {
			return "", "", err
		}
		if configPath != "" {
			project = configPath
		}
		return global, project, nil
	}

	deps := cli.Deps{
		Config: func() (*config.Config, error) {
			global, project, err := paths()
			if err != nil {
				return nil, err
			}
			return config.Load(global, project)
		},
		Paths: paths,
		Output: func() *cli.Output {
			return cli.NewOutputTo(stdout, stderr, jsonOutput)
		},
		Logger: func() *slog.Logger {
			return logger
		},
	}

	root.AddCommand(
		cli.NewRunCmd(deps),
		cli.NewListCmd(deps),
		cli.NewHistoryCmd(deps),
		cli.NewServeCmd(deps),
		cli.NewSettingsCmd(deps),
	)
	return root
}
