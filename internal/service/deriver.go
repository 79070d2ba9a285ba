package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/recist-derivation-server/internal/domain"
)

// Deriver orchestrates the full per-subject derivation pipeline:
// normalizer -> aggregator -> nadir tracker -> classifier -> confirmation ->
// BOR. Subjects are independent, so the batch API fans them out across a
// bounded worker pool; the only ordering requirement is chronological
// processing within one subject's sequence.
type Deriver struct {
	logger       *logrus.Logger
	normalizer   *Normalizer
	aggregator   *Aggregator
	ruleEngine   *RuleEngine
	confirmation *ConfirmationEngine
	bor          *BORDeriver
	metrics      *MetricsAggregator
}

// NewDeriver creates a deriver with all pipeline stages wired.
func NewDeriver(logger *logrus.Logger) *Deriver {
	return &Deriver{
		logger:       logger,
		normalizer:   NewNormalizer(logger),
		aggregator:   NewAggregator(logger),
		ruleEngine:   NewRuleEngine(logger),
		confirmation: NewConfirmationEngine(logger),
		bor:          NewBORDeriver(logger),
		metrics:      NewMetricsAggregator(logger),
	}
}

// DeriveSubject is the pure per-subject derivation
// (subject_records, config) -> (response_records, bor, errors).
// All failures are scoped to the subject and surfaced as a status plus an
// error entry; nothing here aborts a batch.
func (d *Deriver) DeriveSubject(input domain.SubjectInput, cfg domain.DerivationConfig) domain.SubjectResult {
	result := domain.SubjectResult{
		SubjectID: input.SubjectID,
		Status:    domain.DERIVED,
	}

	measurements, rejected, err := d.normalizer.Normalize(input)
	result.Rejected = rejected
	if err != nil {
		return d.abort(result, err)
	}

	assessments, err := d.aggregator.Aggregate(input.SubjectID, measurements)
	if err != nil {
		return d.abort(result, err)
	}

	baselineIdx, err := d.selectBaseline(input, assessments, cfg)
	if err != nil {
		return d.withoutBaseline(result, assessments, input.Stratum, err)
	}
	baseline := assessments[baselineIdx]

	tracker := NewNadirTracker(input.SubjectID, cfg)
	tracker.Observe(&baseline)

	records := make([]domain.ResponseRecord, 0, len(assessments))
	for _, tp := range assessments[baselineIdx+1:] {
		outcome := d.ruleEngine.Classify(ClassificationInput{
			Assessment: tp,
			Baseline:   baseline,
			Nadir:      tracker.Current(),
		}, cfg)

		records = append(records, domain.ResponseRecord{
			SubjectID:       input.SubjectID,
			AssessmentDate:  tp.AssessmentDate,
			StudyDay:        domain.StudyDay(baseline.AssessmentDate, tp.AssessmentDate),
			Category:        outcome.Category,
			TargetSum:       outcome.TargetSum,
			NadirSum:        outcome.NadirSum,
			PctFromBaseline: outcome.PctFromBaseline,
			PctFromNadir:    outcome.PctFromNadir,
			NonTarget:       tp.NonTarget,
			NewLesion:       tp.NewLesion,
		})

		tracker.Observe(&tp)
	}

	result.Records = d.confirmation.Confirm(records, cfg)

	bor := d.bor.Derive(input.SubjectID, result.Records, baseline.AssessmentDate, input.Stratum, cfg)
	result.BOR = &bor

	return result
}

// DeriveBatch runs the per-subject pipeline across all inputs with at most
// maxWorkers subjects in flight. Output ordering is by subject id so
// repeated runs over the same inputs are byte-identical; run identity and
// timestamps are assigned by the caller, never here.
func (d *Deriver) DeriveBatch(ctx context.Context, inputs []domain.SubjectInput, cfg domain.DerivationConfig, maxWorkers int) (*domain.RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("derive batch: %w", err)
	}

	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	sorted := make([]domain.SubjectInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SubjectID < sorted[j].SubjectID })

	results := make([]domain.SubjectResult, len(sorted))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, input := range sorted {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = d.DeriveSubject(input, cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("derive batch: %w", err)
	}

	return d.assemble(results, cfg), nil
}

// assemble folds per-subject results into the run-level output tables.
func (d *Deriver) assemble(results []domain.SubjectResult, cfg domain.DerivationConfig) *domain.RunResult {
	run := domain.DerivationRun{
		Config:       cfg,
		Subjects:     len(results),
		ErrorsByKind: make(map[string]int),
	}

	bors := make([]domain.BestOverallResponse, 0, len(results))
	for _, r := range results {
		run.RejectedRows += len(r.Rejected)

		if r.Error != nil {
			run.Errors = append(run.Errors, *r.Error)
			run.ErrorsByKind[r.Error.Status.String()]++
		}

		if r.Status == domain.DERIVED {
			run.Derived++
		}

		if r.BOR != nil {
			bors = append(bors, *r.BOR)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"subjects": run.Subjects,
		"derived":  run.Derived,
		"errors":   len(run.Errors),
	}).Info("Completed derivation batch")

	return &domain.RunResult{
		Run:     run,
		Results: results,
		BORs:    bors,
		Metrics: d.metrics.Aggregate(bors),
	}
}

// selectBaseline resolves the baseline assessment index per the configured
// method. The choice shifts percent-change-from-baseline for every later
// timepoint, so it is made once per subject and used throughout.
func (d *Deriver) selectBaseline(input domain.SubjectInput, assessments []domain.TimepointAssessment, cfg domain.DerivationConfig) (int, error) {
	missing := &domain.MissingBaselineError{SubjectID: input.SubjectID, Method: cfg.BaselineMethod}

	if len(assessments) == 0 {
		return 0, missing
	}

	idx := -1
	switch cfg.BaselineMethod {
	case domain.FIRST:
		idx = 0
	case domain.PRETREAT:
		if input.TreatmentStart == nil {
			return 0, missing
		}
		// Latest scan dated at or before treatment start.
		for i, tp := range assessments {
			if !tp.AssessmentDate.After(*input.TreatmentStart) {
				idx = i
			}
		}
	}

	if idx < 0 {
		return 0, missing
	}

	// The baseline defines the measurable reference; a baseline without an
	// evaluated target sum cannot anchor any percent change.
	if !assessments[idx].TargetsEvaluated {
		return 0, missing
	}

	return idx, nil
}

// withoutBaseline emits the NE fallback sequence: one NE record per
// timepoint, BOR NE, with the missing-baseline reason recorded visibly.
func (d *Deriver) withoutBaseline(result domain.SubjectResult, assessments []domain.TimepointAssessment, stratum string, err error) domain.SubjectResult {
	result.Status = domain.NO_BASELINE
	result.Error = &domain.SubjectError{
		SubjectID: result.SubjectID,
		Status:    domain.NO_BASELINE,
		Reason:    err.Error(),
	}

	var reference domain.TimepointAssessment
	if len(assessments) > 0 {
		reference = assessments[0]
	}

	for _, tp := range assessments {
		result.Records = append(result.Records, domain.ResponseRecord{
			SubjectID:      result.SubjectID,
			AssessmentDate: tp.AssessmentDate,
			StudyDay:       domain.StudyDay(reference.AssessmentDate, tp.AssessmentDate),
			Category:       domain.NE,
			NonTarget:      tp.NonTarget,
			NewLesion:      tp.NewLesion,
		})
	}

	result.BOR = &domain.BestOverallResponse{
		SubjectID: result.SubjectID,
		Category:  domain.NE,
		Stratum:   stratum,
	}

	d.logger.WithFields(logrus.Fields{
		"subject_id": result.SubjectID,
		"reason":     err.Error(),
	}).Warn("Subject has no eligible baseline, response sequence set to NE")

	return result
}

// abort maps a subject-scoped protocol violation onto its terminal status.
func (d *Deriver) abort(result domain.SubjectResult, err error) domain.SubjectResult {
	status := domain.OUT_OF_ORDER

	switch err.(type) {
	case *domain.TooManyTargetLesionsError:
		status = domain.TOO_MANY_TARGETS
	case *domain.AmbiguousLesionLinkError:
		status = domain.AMBIGUOUS_LINK
	case *domain.OutOfOrderTimepointError:
		status = domain.OUT_OF_ORDER
	}

	result.Status = status
	result.Error = &domain.SubjectError{
		SubjectID: result.SubjectID,
		Status:    status,
		Reason:    err.Error(),
	}
	result.Records = nil
	result.BOR = nil

	d.logger.WithFields(logrus.Fields{
		"subject_id": result.SubjectID,
		"status":     status.String(),
		"reason":     err.Error(),
	}).Warn("Subject derivation aborted")

	return result
}
