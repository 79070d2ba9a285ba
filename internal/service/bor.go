package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// BORDeriver reduces a subject's full confirmed timepoint sequence into one
// Best Overall Response by hierarchical precedence CR > PR > SD > PD > NE,
// subject to two policy gates: CR/PR contribute only when confirmed, and SD
// contributes only when it persists for the protocol minimum duration from
// baseline without an intervening progression.
type BORDeriver struct {
	logger *logrus.Logger
}

// NewBORDeriver creates a new best-overall-response deriver.
func NewBORDeriver(logger *logrus.Logger) *BORDeriver {
	return &BORDeriver{logger: logger}
}

// Derive scans the chronological record sequence and returns the best
// qualifying category; if none qualifies the BOR is NE.
func (d *BORDeriver) Derive(subjectID string, records []domain.ResponseRecord, baselineDate time.Time, stratum string, cfg domain.DerivationConfig) domain.BestOverallResponse {
	bor := domain.BestOverallResponse{
		SubjectID: subjectID,
		Category:  domain.NE,
		Stratum:   stratum,
	}

	pdSeen := false

	for _, rec := range records {
		candidate := domain.NE

		switch rec.Category {
		case domain.CR, domain.PR:
			if rec.Confirmed {
				candidate = rec.Category
			}
		case domain.SD:
			// SD must hold for the minimum duration measured from baseline,
			// and a progression before this timepoint disqualifies it.
			elapsed := rec.AssessmentDate.Sub(baselineDate).Hours() / 24
			if !pdSeen && elapsed >= float64(cfg.SDMinDurationDays) {
				candidate = domain.SD
			}
		case domain.PD:
			candidate = domain.PD
		}

		if rec.Category == domain.PD {
			pdSeen = true
		}

		if candidate == domain.NE {
			continue
		}

		if candidate.BetterThan(bor.Category) {
			bor.Category = candidate
			if candidate.IsObjectiveResponse() {
				date := rec.AssessmentDate
				bor.ConfirmedDate = &date
			}
		}
	}

	d.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"bor":        bor.Category.String(),
		"records":    len(records),
	}).Debug("Derived best overall response")

	return bor
}
