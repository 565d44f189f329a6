package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/persistence"
)

// NewHistoryCmd creates the command that shows persisted runs.
func NewHistoryCmd(deps Deps) *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recent runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.Engine.DatabasePath
			}
			if dbPath == "" {
				return errors.New("run history is disabled: set engine.database_path or pass --db")
			}

			store, err := openStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			out := deps.Output()
			if len(args) == 1 {
				return showRun(cmd, store, out, args[0])
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"RUN", "WORKFLOW", "MODE", "STATUS", "PROGRESS", "STARTED", "UPDATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.WorkflowID, r.Mode, r.Status, strconv.Itoa(r.Progress) + "%", formatTime(r.CreatedAt), formatTime(r.UpdatedAt)}
			}
			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Run history database (defaults to engine.database_path)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0 for all)")

	return cmd
}

// RunDetail is the JSON shape of a single run.
type RunDetail struct {
	Run    *persistence.Run       `json:"run"`
	Events []persistence.RunEvent `json:"events"`
}

func showRun(cmd *cobra.Command, store persistence.Store, out *Output, runID string) error {
	run, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	log, err := store.GetEvents(cmd.Context(), runID)
	if err != nil {
		return err
	}

	if out.jsonMode {
		out.JSON(RunDetail{Run: run, Events: log})
		return nil
	}

	out.Success(fmt.Sprintf("Run %s of %s: %s (%d%%)", run.ID, run.WorkflowID, run.Status, run.Progress))
	memberRows := make([][]string, len(run.Members))
	for i, m := range run.Members {
		memberRows[i] = []string{m.ID, m.Kind, m.Status, strconv.Itoa(m.Progress) + "%", fmt.Sprintf("%d/%d", m.RetryCount, m.MaxRetries), formatDuration(m.StartTime, m.EndTime), m.Error}
	}
	out.Table([]string{"MEMBER", "KIND", "STATUS", "PROGRESS", "RETRIES", "DURATION", "ERROR"}, memberRows)

	fmt.Fprintln(out.w)
	eventRows := make([][]string, len(log))
	for i, ev := range log {
		eventRows[i] = []string{formatTime(ev.Timestamp), ev.MemberID, ev.Type, ev.Detail}
	}
	out.Table([]string{"TIME", "MEMBER", "EVENT", "DETAIL"}, eventRows)
	return nil
}
