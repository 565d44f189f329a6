package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/scheduler"
)

// ErrRunNotFound is returned when no run matches the query.
var ErrRunNotFound = errors.New("run not found")

// SaveSnapshot saves or replaces the stored state of a run.
// Uses ON CONFLICT so repeated saves of the same run are idempotent.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, snap scheduler.Snapshot) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, name, mode, status, concurrency, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			concurrency = excluded.concurrency,
			progress = excluded.progress,
			updated_at = CURRENT_TIMESTAMP
	`, runID, snap.WorkflowID, snap.Name, snap.Mode.String(), snap.Status.String(), snap.Concurrency, snap.Progress)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	// Members are rewritten wholesale; dependencies cascade
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_members WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete old members: %w", err)
	}

	for i, m := range snap.Members {
		result, err := encodeResult(m.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result of %s: %w", m.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_members (run_id, member_id, position, label, kind, status, priority, progress,
				retry_count, max_retries, result, error, started_ms, ended_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, m.ID, i, m.Label, m.Kind, m.Status.String(), int(m.Priority), m.Progress,
			m.RetryCount, m.MaxRetries, result, m.Error, toMillis(m.StartTime), toMillis(m.EndTime))
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.ID, err)
		}

		for _, depID := range m.DependsOn {
			_, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO member_dependencies (run_id, member_id, depends_on_id)
				VALUES (?, ?, ?)
			`, runID, m.ID, depID)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", m.ID, depID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRun retrieves a run with its members and their dependencies.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, name, mode, status, concurrency, progress, created_at, updated_at
		FROM runs
		WHERE id = ?
	`, runID))
	if err != nil {
		return nil, err
	}

	deps, err := s.dependencies(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, label, kind, status, priority, progress, retry_count, max_retries,
			result, error, started_ms, ended_ms
		FROM run_members
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	run.Members = []MemberRecord{}
	for rows.Next() {
		var m MemberRecord
		var result, errorStr sql.NullString
		var startedMs, endedMs int64
		if err := rows.Scan(&m.ID, &m.Label, &m.Kind, &m.Status, &m.Priority, &m.Progress,
			&m.RetryCount, &m.MaxRetries, &result, &errorStr, &startedMs, &endedMs); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Result = result.String
		m.Error = errorStr.String
		m.StartTime = fromMillis(startedMs)
		m.EndTime = fromMillis(endedMs)
		m.DependsOn = deps[m.ID]
		if m.DependsOn == nil {
			m.DependsOn = []string{}
		}
		run.Members = append(run.Members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recently updated runs first, without members.
// A non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, name, mode, status, concurrency, progress, created_at, updated_at
		FROM runs
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// LatestRun returns the most recently updated run of a workflow, with members.
func (s *SQLiteStore) LatestRun(ctx context.Context, workflowID string) (*Run, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id
		FROM runs
		WHERE workflow_id = ?
		ORDER BY updated_at DESC, rowid DESC
		LIMIT 1
	`, workflowID).Scan(&runID)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no runs of workflow %s", ErrRunNotFound, workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	return s.GetRun(ctx, runID)
}

func (s *SQLiteStore) dependencies(ctx context.Context, runID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, depends_on_id
		FROM member_dependencies
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var memberID, depID string
		if err := rows.Scan(&memberID, &depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps[memberID] = append(deps[memberID], depID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(&run.ID, &run.WorkflowID, &run.Name, &run.Mode, &run.Status,
		&run.Concurrency, &run.Progress, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// encodeResult stores strings verbatim and everything else as JSON.
func encodeResult(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
