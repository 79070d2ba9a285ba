package service

import (
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// confirmationState is the per-record state of the confirmation machine.
// A raw CR/PR starts UNCONFIRMED and moves to CONFIRMED exactly once, when a
// qualifying later assessment is found; a sequence that ends first leaves the
// record terminally unconfirmed.
type confirmationState int

const (
	stateUnconfirmed confirmationState = iota
	stateConfirmed
)

// ConfirmationEngine upgrades raw CR/PR records to confirmed once a repeat
// assessment of the same or better category occurs at or after the
// configured minimum interval, with no intervening progression.
//
// Reference: RECIST 1.1, Section 4.6 (confirmatory measurement).
type ConfirmationEngine struct {
	logger *logrus.Logger
}

// NewConfirmationEngine creates a new confirmation engine.
func NewConfirmationEngine(logger *logrus.Logger) *ConfirmationEngine {
	return &ConfirmationEngine{logger: logger}
}

// Confirm assigns the final confirmed flag to every record of a subject's
// chronological sequence. Evaluation for a record at date D looks only at
// records dated after D; SD and PD are emitted as-is, never confirmed.
func (e *ConfirmationEngine) Confirm(records []domain.ResponseRecord, cfg domain.DerivationConfig) []domain.ResponseRecord {
	out := make([]domain.ResponseRecord, len(records))
	copy(out, records)

	for i := range out {
		if !out[i].Category.IsObjectiveResponse() {
			continue
		}

		if e.evaluate(out, i, cfg) == stateConfirmed {
			out[i].Confirmed = true

			e.logger.WithFields(logrus.Fields{
				"subject_id": out[i].SubjectID,
				"date":       out[i].AssessmentDate.Format(assessmentDateLayout),
				"category":   out[i].Category.String(),
			}).Debug("Confirmed objective response")
		}
	}

	return out
}

// evaluate runs the state machine for the record at index i.
func (e *ConfirmationEngine) evaluate(records []domain.ResponseRecord, i int, cfg domain.DerivationConfig) confirmationState {
	anchor := records[i]

	for j := i + 1; j < len(records); j++ {
		candidate := records[j]

		// An intervening progression invalidates any later repeat.
		if candidate.Category == domain.PD {
			return stateUnconfirmed
		}

		elapsed := candidate.AssessmentDate.Sub(anchor.AssessmentDate).Hours() / 24
		if elapsed < float64(cfg.ConfirmationWindowDays) {
			continue
		}

		if candidate.Category.AtLeast(anchor.Category) {
			return stateConfirmed
		}
	}

	return stateUnconfirmed
}
