package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResponseRecord is the per-timepoint derived response for one subject.
// One record per classified TimepointAssessment; immutable once the
// confirmation engine has assigned the final confirmed flag.
//
// The stored change fields exist so downstream double-programming checks can
// re-derive the classification from the same inputs: PctFromNadir must equal
// (TargetSum - NadirSum) / NadirSum * 100 wherever both are present.
type ResponseRecord struct {
	SubjectID      string    `json:"subject_id"`
	AssessmentDate time.Time `json:"assessment_date"`
	StudyDay       int       `json:"study_day"`

	Category  ResponseCategory `json:"category"`
	Confirmed bool             `json:"confirmed"`

	TargetSum       *float64 `json:"target_sum,omitempty"`
	NadirSum        *float64 `json:"nadir_sum,omitempty"`
	PctFromBaseline *float64 `json:"pct_from_baseline,omitempty"`
	PctFromNadir    *float64 `json:"pct_from_nadir,omitempty"`

	NonTarget NonTargetStatus `json:"non_target"`
	NewLesion bool            `json:"new_lesion"`
}

// BestOverallResponse is the single summary response for one subject across
// the full timepoint sequence.
type BestOverallResponse struct {
	SubjectID string           `json:"subject_id"`
	Category  ResponseCategory `json:"category"`

	// ConfirmedDate is the date of the first assessment whose CR/PR was
	// confirmed, set only when the BOR is a confirmed objective response.
	ConfirmedDate *time.Time `json:"confirmed_date,omitempty"`

	Stratum string `json:"stratum,omitempty"`
}

// RejectedRow records one input row excluded by the normalizer, with the
// reason. Rejections never abort the subject; they are reported alongside
// the derived output so no exclusion is silent.
type RejectedRow struct {
	Row    RawMeasurement `json:"row"`
	Reason string         `json:"reason"`
}

// SubjectError is one entry in the per-run error report.
type SubjectError struct {
	SubjectID string        `json:"subject_id"`
	Status    SubjectStatus `json:"status"`
	Reason    string        `json:"reason"`
}

// SubjectInput carries everything the deriver needs for one subject.
type SubjectInput struct {
	SubjectID string           `json:"subject_id"`
	Rows      []RawMeasurement `json:"rows"`

	// TreatmentStart anchors the PRETREAT baseline method; optional.
	TreatmentStart *time.Time `json:"treatment_start,omitempty"`

	// Stratum is an optional label (e.g. treatment arm) used by the
	// response metrics roll-up.
	Stratum string `json:"stratum,omitempty"`
}

// SubjectResult is the complete derivation output for one subject:
// (subject_records, config) -> (response_records, bor, errors).
type SubjectResult struct {
	SubjectID string        `json:"subject_id"`
	Status    SubjectStatus `json:"status"`

	Records []ResponseRecord     `json:"records"`
	BOR     *BestOverallResponse `json:"bor,omitempty"`

	Rejected []RejectedRow `json:"rejected,omitempty"`
	Error    *SubjectError `json:"error,omitempty"`
}

// StratumMetrics holds response-rate counts for one stratum.
type StratumMetrics struct {
	Stratum        string  `json:"stratum,omitempty"`
	Evaluable      int     `json:"evaluable"`
	Responders     int     `json:"responders"`
	DiseaseControl int     `json:"disease_control"`
	NotEvaluable   int     `json:"not_evaluable"`
	ORR            float64 `json:"orr"`
	DCR            float64 `json:"dcr"`
}

// ResponseMetrics is the portfolio-level response-rate summary.
// Subjects with BOR = NE are excluded from denominators and reported in
// NotEvaluable.
type ResponseMetrics struct {
	Overall   StratumMetrics   `json:"overall"`
	ByStratum []StratumMetrics `json:"by_stratum,omitempty"`
}

// DerivationRun records one complete derivation over a set of subjects.
type DerivationRun struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Config    DerivationConfig `json:"config"`

	Subjects     int            `json:"subjects"`
	Derived      int            `json:"derived"`
	Errors       []SubjectError `json:"errors,omitempty"`
	ErrorsByKind map[string]int `json:"errors_by_kind,omitempty"`
	RejectedRows int            `json:"rejected_rows"`
}

// RunResult bundles the full output tables of one derivation run.
type RunResult struct {
	Run     DerivationRun         `json:"run"`
	Results []SubjectResult       `json:"results"`
	BORs    []BestOverallResponse `json:"bors"`
	Metrics ResponseMetrics       `json:"metrics"`
}
