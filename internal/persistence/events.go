package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendEvent stores one lifecycle event for a run.
// Events are append-only (no upsert needed). The run must already exist.
func (s *SQLiteStore) AppendEvent(ctx context.Context, runID string, ev RunEvent) error {
	// Create 5-second timeout context
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_events (run_id, member_id, event_type, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, runID, ev.MemberID, ev.Type, ev.Detail, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetEvents retrieves all events of a run in chronological order.
// Returns empty slice (not nil) if the run has no events.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	// Create 5-second timeout context
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Double sort: timestamp ASC, id ASC keeps insertion order for equal timestamps
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, event_type, detail, timestamp
		FROM run_events
		WHERE run_id = ?
		ORDER BY timestamp ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	history := []RunEvent{}
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.MemberID, &ev.Type, &ev.Detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		history = append(history, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return history, nil
}
