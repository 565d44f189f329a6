package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/taskflow/internal/scheduler"
	_ "modernc.org/sqlite"
)

// Run is a persisted workflow run.
type Run struct {
	ID          string
	WorkflowID  string
	Name        string
	Mode        string
	Status      string
	Concurrency int
	Progress    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Members     []MemberRecord // Loaded by GetRun only
}

// MemberRecord is a member's state as of the run's last saved snapshot.
type MemberRecord struct {
	ID         string
	Label      string
	Kind       string
	Status     string
	Priority   int
	Progress   int
	RetryCount int
	MaxRetries int
	Result     string // JSON encoding of the member's output
	Error      string
	DependsOn  []string
	StartTime  time.Time
	EndTime    time.Time
}

// RunEvent is one entry of a run's lifecycle log.
type RunEvent struct {
	MemberID  string
	Type      string
	Detail    string
	Timestamp time.Time
}

// Store defines the persistence interface for runs and their event log.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, runID string, snap scheduler.Snapshot) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRun(ctx context.Context, workflowID string) (*Run, error)

	// Event log
	AppendEvent(ctx context.Context, runID string, ev RunEvent) error
	GetEvents(ctx context.Context, runID string) ([]RunEvent, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection keeps the foreign_keys pragma in effect for every statement
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
