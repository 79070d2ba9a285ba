package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// ResponseRepository reads the derived response tables of a stored run
type ResponseRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *pgxpool.Pool, logger *logrus.Logger) *ResponseRepository {
	return &ResponseRepository{
		db:  db,
		log: logger,
	}
}

// GetRecords retrieves all response records for a run, ordered by subject
// and assessment date so exports are reproducible.
func (r *ResponseRepository) GetRecords(ctx context.Context, runID uuid.UUID) ([]domain.ResponseRecord, error) {
	query := `
		SELECT subject_id, assessment_date, study_day, category, confirmed,
			   target_sum, nadir_sum, pct_from_baseline, pct_from_nadir,
			   non_target, new_lesion
		FROM response_records
		WHERE run_id = $1
		ORDER BY subject_id, assessment_date`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err,
		}).Error("Failed to get response records")
		return nil, fmt.Errorf("getting response records: %w", err)
	}
	defer rows.Close()

	var records []domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		var category, nonTarget string

		err := rows.Scan(
			&rec.SubjectID,
			&rec.AssessmentDate,
			&rec.StudyDay,
			&category,
			&rec.Confirmed,
			&rec.TargetSum,
			&rec.NadirSum,
			&rec.PctFromBaseline,
			&rec.PctFromNadir,
			&nonTarget,
			&rec.NewLesion,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning response record row: %w", err)
		}

		rec.Category = domain.ResponseCategory(category)
		rec.NonTarget = domain.NonTargetStatus(nonTarget)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating response record rows: %w", err)
	}

	return records, nil
}

// GetRecordsBySubject retrieves one subject's response sequence within a run
func (r *ResponseRepository) GetRecordsBySubject(ctx context.Context, runID uuid.UUID, subjectID string) ([]domain.ResponseRecord, error) {
	query := `
		SELECT subject_id, assessment_date, study_day, category, confirmed,
			   target_sum, nadir_sum, pct_from_baseline, pct_from_nadir,
			   non_target, new_lesion
		FROM response_records
		WHERE run_id = $1 AND subject_id = $2
		ORDER BY assessment_date`

	rows, err := r.db.Query(ctx, query, runID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("getting subject response records: %w", err)
	}
	defer rows.Close()

	var records []domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		var category, nonTarget string

		err := rows.Scan(
			&rec.SubjectID,
			&rec.AssessmentDate,
			&rec.StudyDay,
			&category,
			&rec.Confirmed,
			&rec.TargetSum,
			&rec.NadirSum,
			&rec.PctFromBaseline,
			&rec.PctFromNadir,
			&nonTarget,
			&rec.NewLesion,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning subject response record row: %w", err)
		}

		rec.Category = domain.ResponseCategory(category)
		rec.NonTarget = domain.NonTargetStatus(nonTarget)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subject response record rows: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("subject %s has no records in run %s: %w", subjectID, runID, domain.ErrNotFound)
	}

	return records, nil
}

// GetBORs retrieves all best overall responses for a run
func (r *ResponseRepository) GetBORs(ctx context.Context, runID uuid.UUID) ([]domain.BestOverallResponse, error) {
	query := `
		SELECT subject_id, category, confirmed_date, stratum
		FROM best_overall_responses
		WHERE run_id = $1
		ORDER BY subject_id`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err,
		}).Error("Failed to get best overall responses")
		return nil, fmt.Errorf("getting best overall responses: %w", err)
	}
	defer rows.Close()

	var bors []domain.BestOverallResponse
	for rows.Next() {
		var bor domain.BestOverallResponse
		var category string

		err := rows.Scan(
			&bor.SubjectID,
			&category,
			&bor.ConfirmedDate,
			&bor.Stratum,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning best overall response row: %w", err)
		}

		bor.Category = domain.ResponseCategory(category)
		bors = append(bors, bor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating best overall response rows: %w", err)
	}

	return bors, nil
}
