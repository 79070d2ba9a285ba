// Package results provides run result storage for standalone operation.
// It keeps the complete output of each derivation run so past runs can be
// listed, re-examined and exported without rerunning the pipeline.
package results

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/recist-derivation-server/internal/domain"
)

// StoredRun is the summary row kept alongside each persisted run payload.
type StoredRun struct {
	RunID        uuid.UUID `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Subjects     int       `json:"subjects"`
	Derived      int       `json:"derived"`
	ErrorCount   int       `json:"error_count"`
	RejectedRows int       `json:"rejected_rows"`
}

// Store defines the interface for run result storage operations.
type Store interface {
	// Save stores a complete run result. Saving the same run ID again
	// replaces the stored payload.
	Save(ctx context.Context, result *domain.RunResult) error

	// Get retrieves a stored run result by run ID.
	// Returns nil if the run does not exist.
	Get(ctx context.Context, runID uuid.UUID) (*domain.RunResult, error)

	// List returns run summaries, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*StoredRun, error)

	// Count returns the total number of stored runs.
	Count(ctx context.Context) (int64, error)

	// Delete removes a stored run by ID.
	Delete(ctx context.Context, runID uuid.UUID) error

	// ExportJSON writes one stored run to a JSON writer.
	ExportJSON(ctx context.Context, runID uuid.UUID, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// RunExport represents the JSON export format.
type RunExport struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Result     *domain.RunResult `json:"result"`
}
