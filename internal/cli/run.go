package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/orchestrator"
	"github.com/aristath/taskflow/internal/scheduler"
	"github.com/aristath/taskflow/internal/telemetry"
	"github.com/aristath/taskflow/internal/tui"
)

// NewRunCmd creates the command that runs one configured workflow.
func NewRunCmd(deps Deps) *cobra.Command {
	var dbPath string
	var dashboard bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run WORKFLOW",
		Short: "Run a configured workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Engine.Backend = "echo"
			}
			out := deps.Output()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("db") {
				dbPath = cfg.Engine.DatabasePath
			}
			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			logger := deps.Logger()
			if dashboard {
				// The dashboard owns the terminal
				logger = telemetry.Discard()
			}

			runner, err := orchestrator.New(orchestrator.Options{
				Config: cfg,
				Store:  store,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			run, err := runner.Prepare(args[0])
			if err != nil {
				return err
			}

			var snap scheduler.Snapshot
			if dashboard {
				snap, err = executeWithDashboard(ctx, run)
			} else {
				snap, err = run.Execute(ctx)
			}
			if ctx.Err() != nil {
				// Signal received: make sure no step outlives us
				if kerr := runner.Processes().KillAll(); kerr != nil {
					out.Error(fmt.Sprintf("killing subprocesses: %v", kerr))
				}
			}
			if err != nil {
				return err
			}

			printSnapshot(out, snap)
			out.Success(fmt.Sprintf("Run %s: %s (%d%%)", run.ID, snap.Status, snap.Progress))
			if snap.Status == scheduler.WorkflowFailed {
				return fmt.Errorf("workflow %s failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Run history database (defaults to engine.database_path; empty disables)")
	cmd.Flags().BoolVar(&dashboard, "tui", false, "Show a live dashboard while the workflow runs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Echo step commands instead of executing them")

	return cmd
}

type runResult struct {
	snap scheduler.Snapshot
	err  error
}

// executeWithDashboard runs the workflow behind the TUI. Quitting the dashboard
// early stops the workflow; a signal closes the dashboard.
func executeWithDashboard(ctx context.Context, run *orchestrator.Run) (scheduler.Snapshot, error) {
	p := tui.NewProgram(run.Subscribe(256), run.Stop)

	tuiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		tuiDone <- err
	}()

	runDone := make(chan runResult, 1)
	go func() {
		snap, err := run.Execute(ctx)
		runDone <- runResult{snap, err}
	}()

	var tuiErr error
	select {
	case tuiErr = <-tuiDone:
		run.Stop()
	case <-ctx.Done():
		p.Quit()
		tuiErr = <-tuiDone
	}

	res := <-runDone
	if res.err == nil && tuiErr != nil {
		res.err = fmt.Errorf("dashboard: %w", tuiErr)
	}
	return res.snap, res.err
}

// printSnapshot writes one row per member.
func printSnapshot(out *Output, snap scheduler.Snapshot) {
	headers := []string{"MEMBER", "KIND", "STATUS", "PROGRESS", "RETRIES", "DURATION", "ERROR"}
	rows := make([][]string, len(snap.Members))
	for i, m := range snap.Members {
		rows[i] = []string{
			m.ID,
			m.Kind,
			m.Status.String(),
			strconv.Itoa(m.Progress) + "%",
			fmt.Sprintf("%d/%d", m.RetryCount, m.MaxRetries),
			formatDuration(m.StartTime, m.EndTime),
			m.Error,
		}
	}
	out.Print(headers, rows, snap)
}
