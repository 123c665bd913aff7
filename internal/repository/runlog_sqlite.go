package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"zoho-mirror-api/internal/model"
)

// SQLiteRunLogStore implements RunLogStore using SQLite.
type SQLiteRunLogStore struct {
	db *sql.DB
}

// NewSQLiteRunLogStore creates the sync run log at dbPath.
func NewSQLiteRunLogStore(dbPath string) (*SQLiteRunLogStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createRunLogTable(db); err != nil {
		return nil, fmt.Errorf("failed to create sync_runs table: %w", err)
	}

	log.Printf("[SQLiteRunLogStore] Initialized with database: %s", dbPath)
	return &SQLiteRunLogStore{db: db}, nil
}

func createRunLogTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		fetched INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
	`
	_, err := db.Exec(query)
	return err
}

// Insert records one sync run outcome.
func (s *SQLiteRunLogStore) Insert(ctx context.Context, run *model.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, kind, status, fetched, inserted, updated, skipped,
			error, started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Status, run.Fetched, run.Inserted,
		run.Updated, run.Skipped, run.Error, run.StartedAt.UTC(),
		run.FinishedAt.UTC(), run.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// List returns runs newest first, with the total count for paging.
func (s *SQLiteRunLogStore) List(ctx context.Context, limit, offset int) ([]model.SyncRun, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, fetched, inserted, updated, skipped,
			error, started_at, finished_at, duration_ms
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var run model.SyncRun
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.Fetched,
			&run.Inserted, &run.Updated, &run.Skipped, &run.Error,
			&run.StartedAt, &run.FinishedAt, &run.DurationMs); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sync runs: %w", err)
	}

	return runs, total, nil
}

// Close closes the database connection.
func (s *SQLiteRunLogStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteRunLogStore implements RunLogStore
var _ RunLogStore = (*SQLiteRunLogStore)(nil)
