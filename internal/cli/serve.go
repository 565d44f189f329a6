package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/metrics"
	"github.com/aristath/taskflow/internal/orchestrator"
	"github.com/aristath/taskflow/internal/trigger"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the command that runs scheduled workflows and serves metrics.
func NewServeCmd(deps Deps) *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled workflows and serve /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			logger := deps.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Engine.MetricsAddr
			}
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

			collector := metrics.NewCollector()
			runner, err := orchestrator.New(orchestrator.Options{
				Config:  cfg,
				Store:   store,
				Metrics: collector,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			sched, err := trigger.New(ctx, runner.RunWorkflow, logger)
			if err != nil {
				return err
			}
			scheduled, err := registerSchedules(sched, cfg)
			if err != nil {
				sched.Shutdown()
				return err
			}
			sched.Start()
			logger.Info("scheduler started", "workflows", scheduled)
			printEntries(deps.Output(), sched.Entries())

			srv := &http.Server{Addr: addr, Handler: newMux(collector)}
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err = <-serveErr:
				logger.Error("http server error", "error", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.Warn("http shutdown", "error", serr)
			}
			if serr := sched.Shutdown(); serr != nil {
				logger.Warn("scheduler shutdown", "error", serr)
			}
			if kerr := runner.Processes().KillAll(); kerr != nil {
				logger.Warn("killing subprocesses", "error", kerr)
			}
			logger.Info("taskflow serve stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for /metrics and /healthz (defaults to engine.metrics_addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Run history database (defaults to engine.database_path; empty disables)")

	return cmd
}

// registerSchedules adds every workflow that declares a schedule.
func registerSchedules(sched *trigger.Scheduler, cfg *config.Config) (int, error) {
	n := 0
	for _, id := range cfg.WorkflowIDs() {
		wc := cfg.Workflows[id]
		if wc.Schedule == "" {
			continue
		}
		// Reject a broken definition now rather than at its first activation
		if _, err := config.BuildWorkflow(id, wc); err != nil {
			return n, err
		}
		if err := sched.Add(id, wc.Schedule); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func printEntries(out *Output, entries []trigger.Entry) {
	headers := []string{"WORKFLOW", "SCHEDULE", "NEXT RUN"}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.WorkflowID, e.Schedule, formatTime(e.NextRun)}
	}
	out.Print(headers, rows, entries)
}

func newMux(collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", collector.Handler())
	return mux
}
