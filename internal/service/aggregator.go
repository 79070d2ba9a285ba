package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// Aggregator folds a subject's validated measurements into one
// TimepointAssessment per assessment date, restoring chronological order
// from the dates themselves so ingestion order never matters.
type Aggregator struct {
	logger *logrus.Logger
}

// NewAggregator creates a new sum aggregator.
func NewAggregator(logger *logrus.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate groups measurements by assessment date and produces the
// chronologically sorted timepoint sequence. A lesion measured twice at the
// same date is a data error that aborts the subject.
func (a *Aggregator) Aggregate(subjectID string, measurements []domain.LesionMeasurement) ([]domain.TimepointAssessment, error) {
	if err := a.checkDuplicates(subjectID, measurements); err != nil {
		return nil, err
	}

	byDate := make(map[string][]domain.LesionMeasurement)
	for _, m := range measurements {
		key := m.AssessmentDate.Format(assessmentDateLayout)
		byDate[key] = append(byDate[key], m)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	assessments := make([]domain.TimepointAssessment, 0, len(dates))
	newLesionSeen := false

	for _, d := range dates {
		group := byDate[d]
		tp := a.summarize(subjectID, group)

		// New lesions, once observed, remain "seen" at every later timepoint.
		if tp.NewLesion {
			newLesionSeen = true
		}
		tp.NewLesion = newLesionSeen

		assessments = append(assessments, tp)
	}

	a.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"timepoints": len(assessments),
	}).Debug("Aggregated timepoint assessments")

	return assessments, nil
}

// summarize folds one date's measurements into a single assessment.
func (a *Aggregator) summarize(subjectID string, group []domain.LesionMeasurement) domain.TimepointAssessment {
	tp := domain.TimepointAssessment{
		SubjectID:      subjectID,
		AssessmentDate: group[0].AssessmentDate,
		NonTarget:      domain.NOT_EVALUATED,
	}

	nonTargetSeen := 0
	nonTargetResolved := 0
	nonTargetProgressed := false

	for _, m := range group {
		switch m.Role {
		case domain.TARGET:
			// A measured sum of zero is a valid disappearance; the
			// TargetsEvaluated flag is what distinguishes it from an
			// assessment where no target was measured at all.
			tp.TargetSum += m.DiameterMM
			tp.TargetsEvaluated = true
		case domain.NON_TARGET:
			nonTargetSeen++
			switch m.Evaluation {
			case domain.EvalResolved:
				nonTargetResolved++
			case domain.EvalProgressed:
				nonTargetProgressed = true
			}
		case domain.NEW:
			tp.NewLesion = true
		}
	}

	switch {
	case nonTargetProgressed:
		tp.NonTarget = domain.PROGRESSED
	case nonTargetSeen > 0 && nonTargetResolved == nonTargetSeen:
		tp.NonTarget = domain.ABSENT_CR_EVAL
	case nonTargetSeen > 0:
		tp.NonTarget = domain.PRESENT
	}

	return tp
}

// checkDuplicates flags a lesion link measured more than once at one date.
func (a *Aggregator) checkDuplicates(subjectID string, measurements []domain.LesionMeasurement) error {
	seen := make(map[string]bool)

	for _, m := range measurements {
		if m.LesionLinkID == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s", m.LesionLinkID, m.AssessmentDate.Format(assessmentDateLayout))
		if seen[key] {
			return &domain.OutOfOrderTimepointError{SubjectID: subjectID, Date: m.AssessmentDate}
		}
		seen[key] = true
	}

	return nil
}
