// Package cli implements the taskflow commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/persistence"
)

// Deps resolves what commands need once flags have been parsed.
type Deps struct {
	Config func() (*config.Config, error)
	Paths  func() (global, project string, err error)
	Output func() *Output
	Logger func() *slog.Logger
}

// openStore opens the run history database. An empty path means history is disabled.
func openStore(ctx context.Context, path string) (persistence.Store, error) {
	if path == "" {
		return nil, nil
	}
	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening run history %s: %w", path, err)
	}
	return store, nil
}

// formatTime renders a timestamp for tables, or "-" when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatDuration renders the span between two timestamps, or "-" when incomplete.
func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}
