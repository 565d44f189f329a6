package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
)

// WorkflowInfo is one row of the list command.
type WorkflowInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	Members     int       `json:"members"`
	Concurrency int       `json:"concurrency"`
	Schedule    string    `json:"schedule,omitempty"`
	NextRun     time.Time `json:"next_run,omitzero"`
	Error       string    `json:"error,omitempty"`
}

// NewListCmd creates the command that lists configured workflows.
func NewListCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}

			infos := describeWorkflows(cfg, time.Now())

			headers := []string{"ID", "NAME", "MODE", "MEMBERS", "CONCURRENCY", "SCHEDULE", "NEXT RUN"}
			rows := make([][]string, len(infos))
			for i, w := range infos {
				if w.Error != "" {
					rows[i] = []string{w.ID, "invalid: " + w.Error, "-", "-", "-", "-", "-"}
					continue
				}
				schedule := w.Schedule
				if schedule == "" {
					schedule = "-"
				}
				rows[i] = []string{w.ID, w.Name, w.Mode, strconv.Itoa(w.Members), strconv.Itoa(w.Concurrency), schedule, formatTime(w.NextRun)}
			}

			deps.Output().Print(headers, rows, infos)
			return nil
		},
	}
}

// describeWorkflows builds every configured workflow and reports its shape.
// Invalid definitions are listed with their error instead of failing the command.
func describeWorkflows(cfg *config.Config, now time.Time) []WorkflowInfo {
	ids := cfg.WorkflowIDs()
	infos := make([]WorkflowInfo, 0, len(ids))
	for _, id := range ids {
		wc := cfg.Workflows[id]
		info := WorkflowInfo{ID: id, Schedule: wc.Schedule}

		wf, err := config.BuildWorkflow(id, wc)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		info.Name = wf.Name
		info.Mode = wf.Mode.String()
		info.Members = len(wf.Members)
		info.Concurrency = wf.Concurrency
		if wc.Schedule != "" {
			// BuildWorkflow already validated the expression
			info.NextRun, _ = config.NextRun(wc.Schedule, now)
		}
		infos = append(infos, info)
	}
	return infos
}
