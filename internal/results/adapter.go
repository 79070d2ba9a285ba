package results

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/recist-derivation-server/internal/domain"
)

// RunView serves run-level reads straight from a Store, for deployments that
// persist only the run payload and skip the relational tables.
type RunView struct {
	store Store
}

// NewRunView creates a run view over a store.
func NewRunView(store Store) *RunView {
	return &RunView{store: store}
}

// Create persists the run payload.
func (v *RunView) Create(ctx context.Context, result *domain.RunResult) error {
	return v.store.Save(ctx, result)
}

// GetByID returns the run row of a stored payload.
func (v *RunView) GetByID(ctx context.Context, id uuid.UUID) (*domain.DerivationRun, error) {
	result, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	run := result.Run
	return &run, nil
}

// List returns run rows for the most recent stored payloads.
func (v *RunView) List(ctx context.Context, limit, offset int) ([]*domain.DerivationRun, error) {
	summaries, err := v.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	runs := make([]*domain.DerivationRun, 0, len(summaries))
	for _, summary := range summaries {
		run, err := v.GetByID(ctx, summary.RunID)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// GetMetrics returns the stored metrics of a run.
func (v *RunView) GetMetrics(ctx context.Context, id uuid.UUID) (*domain.ResponseMetrics, error) {
	result, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	metrics := result.Metrics
	return &metrics, nil
}

// ResponseView serves response-table reads from stored run payloads.
type ResponseView struct {
	store Store
}

// NewResponseView creates a response view over a store.
func NewResponseView(store Store) *ResponseView {
	return &ResponseView{store: store}
}

func (v *ResponseView) payload(ctx context.Context, runID uuid.UUID) (*domain.RunResult, error) {
	result, err := v.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return result, nil
}

// GetRecords returns every response record of a stored run.
func (v *ResponseView) GetRecords(ctx context.Context, runID uuid.UUID) ([]domain.ResponseRecord, error) {
	result, err := v.payload(ctx, runID)
	if err != nil {
		return nil, err
	}

	var records []domain.ResponseRecord
	for _, subject := range result.Results {
		records = append(records, subject.Records...)
	}
	return records, nil
}

// GetRecordsBySubject returns one subject's response sequence.
func (v *ResponseView) GetRecordsBySubject(ctx context.Context, runID uuid.UUID, subjectID string) ([]domain.ResponseRecord, error) {
	result, err := v.payload(ctx, runID)
	if err != nil {
		return nil, err
	}

	for _, subject := range result.Results {
		if subject.SubjectID == subjectID {
			return subject.Records, nil
		}
	}
	return nil, fmt.Errorf("subject %s in run %s: %w", subjectID, runID, domain.ErrNotFound)
}

// GetBORs returns the best overall responses of a stored run.
func (v *ResponseView) GetBORs(ctx context.Context, runID uuid.UUID) ([]domain.BestOverallResponse, error) {
	result, err := v.payload(ctx, runID)
	if err != nil {
		return nil, err
	}
	return result.BORs, nil
}
