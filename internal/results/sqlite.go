package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/recist-derivation-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite results store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		subjects INTEGER NOT NULL,
		derived INTEGER NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		rejected_rows INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a complete run result, replacing any payload already stored
// under the same run ID.
func (s *SQLiteStore) Save(ctx context.Context, result *domain.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, subjects, derived, error_count, rejected_rows, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			created_at = excluded.created_at,
			subjects = excluded.subjects,
			derived = excluded.derived,
			error_count = excluded.error_count,
			rejected_rows = excluded.rejected_rows,
			payload = excluded.payload
	`,
		result.Run.ID.String(),
		result.Run.CreatedAt,
		result.Run.Subjects,
		result.Run.Derived,
		len(result.Run.Errors),
		result.Run.RejectedRows,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// Get retrieves a stored run result by run ID.
func (s *SQLiteStore) Get(ctx context.Context, runID uuid.UUID) (*domain.RunResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM runs WHERE run_id = ?", runID.String(),
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result domain.RunResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run payload: %w", err)
	}
	return &result, nil
}

// List returns run summaries, newest first, with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*StoredRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_at, subjects, derived, error_count, rejected_rows
		FROM runs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*StoredRun
	for rows.Next() {
		run := &StoredRun{}
		var id string

		err := rows.Scan(&id, &run.CreatedAt, &run.Subjects, &run.Derived, &run.ErrorCount, &run.RejectedRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		run.RunID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored run id %q: %w", id, err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// Count returns the total number of stored runs.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// Delete removes a stored run by ID.
func (s *SQLiteStore) Delete(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID.String())
	return err
}

// ExportJSON writes one stored run to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, runID uuid.UUID, writer io.Writer) error {
	result, err := s.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if result == nil {
		return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}

	export := &RunExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Result:     result,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
