// Package repository persists derivation runs and their output tables to
// Postgres.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// RunRepository handles derivation run persistence
type RunRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *pgxpool.Pool, logger *logrus.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: logger,
	}
}

// Create stores a complete run: the run row plus every response record and
// best overall response, atomically. A partially visible run would break
// the reproducibility audit, so everything lands in one transaction.
func (r *RunRepository) Create(ctx context.Context, result *domain.RunResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.insertRun(ctx, tx, result); err != nil {
		return err
	}

	for _, subject := range result.Results {
		for _, rec := range subject.Records {
			if err := r.insertRecord(ctx, tx, result.Run.ID, rec); err != nil {
				return err
			}
		}
	}

	for _, bor := range result.BORs {
		if err := r.insertBOR(ctx, tx, result.Run.ID, bor); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing run transaction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":   result.Run.ID,
		"subjects": result.Run.Subjects,
		"derived":  result.Run.Derived,
	}).Info("Derivation run persisted")

	return nil
}

func (r *RunRepository) insertRun(ctx context.Context, tx pgx.Tx, result *domain.RunResult) error {
	configJSON, err := json.Marshal(result.Run.Config)
	if err != nil {
		return fmt.Errorf("marshaling run config: %w", err)
	}

	errorsJSON, err := json.Marshal(result.Run.Errors)
	if err != nil {
		return fmt.Errorf("marshaling run errors: %w", err)
	}

	errorsByKindJSON, err := json.Marshal(result.Run.ErrorsByKind)
	if err != nil {
		return fmt.Errorf("marshaling run error counts: %w", err)
	}

	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling run metrics: %w", err)
	}

	query := `
		INSERT INTO derivation_runs (
			id, created_at, config, subjects, derived, rejected_rows,
			errors, errors_by_kind, metrics
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err = tx.Exec(ctx, query,
		result.Run.ID,
		result.Run.CreatedAt,
		configJSON,
		result.Run.Subjects,
		result.Run.Derived,
		result.Run.RejectedRows,
		errorsJSON,
		errorsByKindJSON,
		metricsJSON,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": result.Run.ID,
			"error":  err,
		}).Error("Failed to insert derivation run")
		return fmt.Errorf("inserting derivation run: %w", err)
	}

	return nil
}

func (r *RunRepository) insertRecord(ctx context.Context, tx pgx.Tx, runID uuid.UUID, rec domain.ResponseRecord) error {
	query := `
		INSERT INTO response_records (
			run_id, subject_id, assessment_date, study_day, category, confirmed,
			target_sum, nadir_sum, pct_from_baseline, pct_from_nadir,
			non_target, new_lesion
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := tx.Exec(ctx, query,
		runID,
		rec.SubjectID,
		rec.AssessmentDate,
		rec.StudyDay,
		rec.Category.String(),
		rec.Confirmed,
		rec.TargetSum,
		rec.NadirSum,
		rec.PctFromBaseline,
		rec.PctFromNadir,
		rec.NonTarget.String(),
		rec.NewLesion,
	)
	if err != nil {
		return fmt.Errorf("inserting response record for %s: %w", rec.SubjectID, err)
	}

	return nil
}

func (r *RunRepository) insertBOR(ctx context.Context, tx pgx.Tx, runID uuid.UUID, bor domain.BestOverallResponse) error {
	query := `
		INSERT INTO best_overall_responses (
			run_id, subject_id, category, confirmed_date, stratum
		) VALUES (
			$1, $2, $3, $4, $5
		)`

	_, err := tx.Exec(ctx, query,
		runID,
		bor.SubjectID,
		bor.Category.String(),
		bor.ConfirmedDate,
		bor.Stratum,
	)
	if err != nil {
		return fmt.Errorf("inserting best overall response for %s: %w", bor.SubjectID, err)
	}

	return nil
}

// GetByID retrieves a derivation run by its ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DerivationRun, error) {
	query := `
		SELECT id, created_at, config, subjects, derived, rejected_rows,
			   errors, errors_by_kind
		FROM derivation_runs
		WHERE id = $1`

	var run domain.DerivationRun
	var configJSON, errorsJSON, errorsByKindJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.CreatedAt,
		&configJSON,
		&run.Subjects,
		&run.Derived,
		&run.RejectedRows,
		&errorsJSON,
		&errorsByKindJSON,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("derivation run not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"run_id": id,
			"error":  err,
		}).Error("Failed to get derivation run")
		return nil, fmt.Errorf("getting derivation run: %w", err)
	}

	if err := json.Unmarshal(configJSON, &run.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling run config: %w", err)
	}
	if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
		return nil, fmt.Errorf("unmarshaling run errors: %w", err)
	}
	if err := json.Unmarshal(errorsByKindJSON, &run.ErrorsByKind); err != nil {
		return nil, fmt.Errorf("unmarshaling run error counts: %w", err)
	}

	return &run, nil
}

// List retrieves recent derivation runs with pagination
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*domain.DerivationRun, error) {
	query := `
		SELECT id, created_at, config, subjects, derived, rejected_rows
		FROM derivation_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.WithError(err).Error("Failed to list derivation runs")
		return nil, fmt.Errorf("listing derivation runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.DerivationRun
	for rows.Next() {
		var run domain.DerivationRun
		var configJSON []byte

		err := rows.Scan(
			&run.ID,
			&run.CreatedAt,
			&configJSON,
			&run.Subjects,
			&run.Derived,
			&run.RejectedRows,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		if err := json.Unmarshal(configJSON, &run.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling run config: %w", err)
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	return runs, nil
}

// GetMetrics retrieves the stored response metrics for a run
func (r *RunRepository) GetMetrics(ctx context.Context, id uuid.UUID) (*domain.ResponseMetrics, error) {
	query := `SELECT metrics FROM derivation_runs WHERE id = $1`

	var metricsJSON []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(&metricsJSON); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("derivation run not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting run metrics: %w", err)
	}

	var metrics domain.ResponseMetrics
	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return nil, fmt.Errorf("unmarshaling run metrics: %w", err)
	}

	return &metrics, nil
}

// Delete removes a run and, via cascade, its records and responses
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM derivation_runs WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": id,
			"error":  err,
		}).Error("Failed to delete derivation run")
		return fmt.Errorf("deleting derivation run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("derivation run not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"run_id": id,
	}).Info("Derivation run deleted")

	return nil
}
