package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/recist-derivation-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL results store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL results store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores a complete run result, replacing any payload already stored
// under the same run ID.
func (s *PostgresStore) Save(ctx context.Context, result *domain.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run payload: %w", err)
	}

	query := `
		INSERT INTO run_results (
			run_id, created_at, subjects, derived, error_count, rejected_rows, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			subjects = EXCLUDED.subjects,
			derived = EXCLUDED.derived,
			error_count = EXCLUDED.error_count,
			rejected_rows = EXCLUDED.rejected_rows,
			payload = EXCLUDED.payload
	`

	_, err = s.db.ExecContext(ctx, query,
		result.Run.ID,
		result.Run.CreatedAt,
		result.Run.Subjects,
		result.Run.Derived,
		len(result.Run.Errors),
		result.Run.RejectedRows,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// Get retrieves a stored run result by run ID.
func (s *PostgresStore) Get(ctx context.Context, runID uuid.UUID) (*domain.RunResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM run_results WHERE run_id = $1", runID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result domain.RunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run payload: %w", err)
	}
	return &result, nil
}

// List returns run summaries, newest first, with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*StoredRun, error) {
	query := `
		SELECT run_id, created_at, subjects, derived, error_count, rejected_rows
		FROM run_results
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*StoredRun
	for rows.Next() {
		run := &StoredRun{}

		err := rows.Scan(&run.RunID, &run.CreatedAt, &run.Subjects, &run.Derived, &run.ErrorCount, &run.RejectedRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// Count returns the total number of stored runs.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_results").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Delete removes a stored run by ID.
func (s *PostgresStore) Delete(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM run_results WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// ExportJSON writes one stored run to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, runID uuid.UUID, writer io.Writer) error {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
