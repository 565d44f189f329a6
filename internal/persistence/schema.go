package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		name TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		concurrency INTEGER NOT NULL,
		progress INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_workflow_updated ON runs(workflow_id, updated_at);

	CREATE TABLE IF NOT EXISTS run_members (
		run_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		priority INTEGER NOT NULL,
		progress INTEGER NOT NULL,
		retry_count INTEGER NOT NULL,
		max_retries INTEGER NOT NULL,
		result TEXT,
		error TEXT,
		started_ms INTEGER NOT NULL DEFAULT 0,
		ended_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, member_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS member_dependencies (
		run_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (run_id, member_id, depends_on_id),
		FOREIGN KEY (run_id, member_id) REFERENCES run_members(run_id, member_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detail TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_events_run_timestamp
		ON run_events(run_id, timestamp);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
