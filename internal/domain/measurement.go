package domain

import (
	"errors"
	"fmt"
	"time"
)

// MaxTargetLesions is the protocol cap on target lesions recorded per subject.
//
// Reference: RECIST 1.1, Section 4.2.2 (a maximum of five lesions total,
// two per organ, selected as target lesions at baseline).
const MaxTargetLesions = 5

// LesionEvaluation is the per-row qualitative evaluation collected for
// non-target lesions. Target and new lesion rows carry no evaluation.
type LesionEvaluation string

const (
	EvalPresent    LesionEvaluation = "PRESENT"
	EvalResolved   LesionEvaluation = "RESOLVED"
	EvalProgressed LesionEvaluation = "PROGRESSED"
)

// IsValid validates the lesion evaluation.
func (e LesionEvaluation) IsValid() bool {
	switch e {
	case EvalPresent, EvalResolved, EvalProgressed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the evaluation.
func (e LesionEvaluation) String() string {
	return string(e)
}

// RawMeasurement is one unvalidated lesion measurement row as received from
// the upstream collection system (one row per lesion per assessment).
// Diameter arrives as text because EDC exports do not guarantee numeric
// typing; the normalizer owns the conversion.
type RawMeasurement struct {
	SubjectID      string `json:"subject_id"`
	LesionLinkID   string `json:"lesion_link_id"`
	AssessmentDate string `json:"assessment_date"` // ISO 8601 date (YYYY-MM-DD)
	DiameterMM     string `json:"diameter_mm"`
	LesionRole     string `json:"lesion_role"`
	Location       string `json:"location,omitempty"`   // declared organ/location
	Evaluation     string `json:"evaluation,omitempty"` // non-target rows only
}

// LesionMeasurement is a validated, typed lesion measurement.
// Owned by the normalizer and immutable once validated.
type LesionMeasurement struct {
	SubjectID      string           `json:"subject_id"`
	LesionLinkID   string           `json:"lesion_link_id"`
	AssessmentDate time.Time        `json:"assessment_date"`
	DiameterMM     float64          `json:"diameter_mm"`
	Role           LesionRole       `json:"role"`
	Location       string           `json:"location,omitempty"`
	Evaluation     LesionEvaluation `json:"evaluation,omitempty"`
}

// Validate ensures the measurement meets the input contract before it may
// enter the derivation pipeline.
func (m *LesionMeasurement) Validate() error {
	if m.SubjectID == "" {
		return fmt.Errorf("lesion measurement validation: %w", errors.New("subject ID is required"))
	}

	if m.AssessmentDate.IsZero() {
		return fmt.Errorf("lesion measurement validation: %w", errors.New("assessment date is required"))
	}

	if m.DiameterMM < 0 {
		return fmt.Errorf("lesion measurement validation: %w", errors.New("diameter must be non-negative"))
	}

	if !m.Role.IsValid() {
		return fmt.Errorf("lesion measurement validation: %w", ErrInvalidLesionRole)
	}

	if m.Evaluation != "" && !m.Evaluation.IsValid() {
		return fmt.Errorf("lesion measurement validation: invalid evaluation %q", m.Evaluation)
	}

	return nil
}

// TimepointAssessment summarizes all lesion measurements for one subject at
// one assessment date. Derived by the sum aggregator; one per subject per
// date, read-only downstream.
type TimepointAssessment struct {
	SubjectID      string    `json:"subject_id"`
	AssessmentDate time.Time `json:"assessment_date"`

	// TargetSum is the sum of target lesion diameters in millimeters.
	// Only meaningful when TargetsEvaluated is true: a measured sum of zero
	// indicates disappearance of all target lesions, while an absent target
	// assessment is not a zero.
	TargetSum        float64 `json:"target_sum"`
	TargetsEvaluated bool    `json:"targets_evaluated"`

	NonTarget NonTargetStatus `json:"non_target"`

	// NewLesion is sticky: once a NEW lesion has been observed for the
	// subject it remains true for every later timepoint.
	NewLesion bool `json:"new_lesion"`
}

// NadirState tracks the running minimum target-lesion sum for one subject.
// The sum is mutated monotonically (non-increasing) as timepoints are walked
// in chronological order.
type NadirState struct {
	SubjectID string    `json:"subject_id"`
	Sum       float64   `json:"sum"`
	Date      time.Time `json:"date"`
	Observed  bool      `json:"observed"` // false until an eligible timepoint has been seen
}

// Update lowers the nadir if the assessment's target sum is a new minimum.
// Callers must apply eligibility policy (baseline exclusion) before calling.
func (n *NadirState) Update(tp *TimepointAssessment) {
	if !tp.TargetsEvaluated {
		return
	}
	if !n.Observed || tp.TargetSum < n.Sum {
		n.Sum = tp.TargetSum
		n.Date = tp.AssessmentDate
		n.Observed = true
	}
}

// StudyDay returns the 1-based study day of date relative to the reference
// start date, following the SDTM --DY convention (no day zero: the day
// before reference is day -1, the reference day itself is day 1).
func StudyDay(reference, date time.Time) int {
	days := int(date.Sub(reference).Hours() / 24)
	if date.Before(reference) {
		return days
	}
	return days + 1
}
