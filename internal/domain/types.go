// Package domain contains core business entities and types for tumor response
// derivation following RECIST (Response Evaluation Criteria in Solid Tumors) guidelines.
//
// Reference: Eisenhauer et al. (2009) New response evaluation criteria in solid
// tumours: Revised RECIST guideline (version 1.1). Eur J Cancer. 45(2):228-47.
// doi: 10.1016/j.ejca.2008.10.026
package domain

import (
	"errors"
)

// ResponseCategory represents a per-timepoint tumor response classification.
// These categories follow the RECIST guideline for overall response at a
// timepoint and are the standardized values carried into the SDTM RS domain
// (RSSTRESC) for regulatory reporting.
//
// Reference: RECIST 1.1, Section 4.3 (Response Criteria)
type ResponseCategory string

const (
	CR ResponseCategory = "CR" // Complete Response
	PR ResponseCategory = "PR" // Partial Response
	SD ResponseCategory = "SD" // Stable Disease
	PD ResponseCategory = "PD" // Progressive Disease
	NE ResponseCategory = "NE" // Not Evaluable
)

// LesionRole represents the protocol role of a recorded lesion.
type LesionRole string

const (
	TARGET     LesionRole = "TARGET"
	NON_TARGET LesionRole = "NON_TARGET"
	NEW        LesionRole = "NEW"
)

// NonTargetStatus summarizes the qualitative non-target lesion evaluation
// at a timepoint.
type NonTargetStatus string

const (
	PRESENT        NonTargetStatus = "PRESENT"
	ABSENT_CR_EVAL NonTargetStatus = "ABSENT_CR_EVAL"
	NOT_EVALUATED  NonTargetStatus = "NOT_EVALUATED"
	PROGRESSED     NonTargetStatus = "PROGRESSED"
)

// RECISTVersion selects the threshold set used by the timepoint classifier.
type RECISTVersion string

const (
	RECIST11 RECISTVersion = "1.1"
	RECIST10 RECISTVersion = "1.0"
)

// BaselineMethod selects which assessment anchors percent-change-from-baseline.
type BaselineMethod string

const (
	PRETREAT BaselineMethod = "PRETREAT" // latest pre-treatment scan
	FIRST    BaselineMethod = "FIRST"    // first scan on record
)

// SubjectStatus records the terminal derivation outcome for one subject.
// Every exclusion or fallback is a visible status, never a silent correction.
type SubjectStatus string

const (
	DERIVED          SubjectStatus = "DERIVED"
	NO_BASELINE      SubjectStatus = "NO_BASELINE"
	TOO_MANY_TARGETS SubjectStatus = "TOO_MANY_TARGETS"
	OUT_OF_ORDER     SubjectStatus = "OUT_OF_ORDER"
	AMBIGUOUS_LINK   SubjectStatus = "AMBIGUOUS_LINK"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidCategory       = errors.New("invalid RECIST response category")
	ErrInvalidLesionRole     = errors.New("invalid lesion role")
	ErrInvalidNonTargetState = errors.New("invalid non-target status")
	ErrInvalidRECISTVersion  = errors.New("invalid RECIST version")
	ErrInvalidBaselineMethod = errors.New("invalid baseline method")
)

// IsValid validates that the ResponseCategory is a RECIST-defined value.
// Only valid categories may be persisted or reported for clinical use.
func (c ResponseCategory) IsValid() bool {
	switch c {
	case CR, PR, SD, PD, NE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c ResponseCategory) String() string {
	return string(c)
}

// ClinicalSignificance returns a human-readable description of the category
// for clinical reporting.
func (c ResponseCategory) ClinicalSignificance() string {
	switch c {
	case CR:
		return "Complete Response - Disappearance of all target lesions"
	case PR:
		return "Partial Response - At least 30% decrease in target lesion sum"
	case SD:
		return "Stable Disease - Neither PR nor PD criteria met"
	case PD:
		return "Progressive Disease - At least 20% increase from nadir or new lesion"
	case NE:
		return "Not Evaluable - Insufficient data to assess response"
	default:
		return "Unknown response category"
	}
}

// BetterThan reports whether c outranks other in the RECIST response
// hierarchy CR > PR > SD > PD > NE. Used both by the confirmation engine
// ("same or better") and the best-overall-response precedence scan.
func (c ResponseCategory) BetterThan(other ResponseCategory) bool {
	return c.rank() > other.rank()
}

// AtLeast reports whether c is the same as or better than other.
func (c ResponseCategory) AtLeast(other ResponseCategory) bool {
	return c.rank() >= other.rank()
}

func (c ResponseCategory) rank() int {
	switch c {
	case CR:
		return 4
	case PR:
		return 3
	case SD:
		return 2
	case PD:
		return 1
	case NE:
		return 0
	default:
		return -1
	}
}

// IsObjectiveResponse reports whether the category counts toward the
// objective response rate numerator (CR or PR).
func (c ResponseCategory) IsObjectiveResponse() bool {
	return c == CR || c == PR
}

// IsDiseaseControl reports whether the category counts toward the disease
// control rate numerator (CR, PR or SD).
func (c ResponseCategory) IsDiseaseControl() bool {
	return c == CR || c == PR || c == SD
}

// LogFields returns structured logging fields for audit trails.
// Required for traceability of derived response values in regulated runs.
func (c ResponseCategory) LogFields() map[string]any {
	return map[string]any{
		"category":              string(c),
		"clinical_significance": c.ClinicalSignificance(),
		"is_valid":              c.IsValid(),
		"objective_response":    c.IsObjectiveResponse(),
		"disease_control":       c.IsDiseaseControl(),
	}
}

// IsValid validates the lesion role.
func (r LesionRole) IsValid() bool {
	switch r {
	case TARGET, NON_TARGET, NEW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the lesion role.
func (r LesionRole) String() string {
	return string(r)
}

// IsValid validates the non-target status.
func (s NonTargetStatus) IsValid() bool {
	switch s {
	case PRESENT, ABSENT_CR_EVAL, NOT_EVALUATED, PROGRESSED:
		return true
	default:
		return false
	}
}

// String returns the string representation of the non-target status.
func (s NonTargetStatus) String() string {
	return string(s)
}

// IsValid validates the RECIST version.
func (v RECISTVersion) IsValid() bool {
	switch v {
	case RECIST11, RECIST10:
		return true
	default:
		return false
	}
}

// String returns the string representation of the RECIST version.
func (v RECISTVersion) String() string {
	return string(v)
}

// IsValid validates the baseline method.
func (m BaselineMethod) IsValid() bool {
	switch m {
	case PRETREAT, FIRST:
		return true
	default:
		return false
	}
}

// String returns the string representation of the baseline method.
func (m BaselineMethod) String() string {
	return string(m)
}

// IsValid validates the subject status.
func (s SubjectStatus) IsValid() bool {
	switch s {
	case DERIVED, NO_BASELINE, TOO_MANY_TARGETS, OUT_OF_ORDER, AMBIGUOUS_LINK:
		return true
	default:
		return false
	}
}

// String returns the string representation of the subject status.
func (s SubjectStatus) String() string {
	return string(s)
}

// IsEvaluable reports whether a subject with this status contributes rows to
// the derived response tables (a NO_BASELINE subject still produces NE rows;
// aborted subjects produce none).
func (s SubjectStatus) IsEvaluable() bool {
	return s == DERIVED
}
