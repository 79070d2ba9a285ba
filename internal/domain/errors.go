package domain

import (
	"fmt"
	"time"
)

// InvalidMeasurementError reports a row whose diameter is negative or
// non-numeric. The row is dropped; the subject's derivation continues.
type InvalidMeasurementError struct {
	SubjectID    string
	LesionLinkID string
	Value        string
}

func (e *InvalidMeasurementError) Error() string {
	return fmt.Sprintf("invalid measurement for subject %s, lesion %s: diameter %q", e.SubjectID, e.LesionLinkID, e.Value)
}

// UnknownRoleError reports a row with a lesion role outside
// {TARGET, NON_TARGET, NEW}. The row is dropped; the subject continues.
type UnknownRoleError struct {
	SubjectID    string
	LesionLinkID string
	Role         string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown lesion role for subject %s, lesion %s: %q", e.SubjectID, e.LesionLinkID, e.Role)
}

// TooManyTargetLesionsError reports a protocol violation: more than
// MaxTargetLesions distinct target lesions recorded across the study.
// Derivation is aborted for the subject only.
type TooManyTargetLesionsError struct {
	SubjectID string
	Count     int
}

func (e *TooManyTargetLesionsError) Error() string {
	return fmt.Sprintf("subject %s has %d target lesions recorded, protocol maximum is %d", e.SubjectID, e.Count, MaxTargetLesions)
}

// MissingBaselineError reports that no eligible baseline assessment could be
// resolved. The subject's entire response sequence becomes NE.
type MissingBaselineError struct {
	SubjectID string
	Method    BaselineMethod
}

func (e *MissingBaselineError) Error() string {
	return fmt.Sprintf("subject %s has no eligible baseline assessment (method %s)", e.SubjectID, e.Method)
}

// OutOfOrderTimepointError reports duplicate or unsortable assessment dates.
// Derivation is aborted for the subject with a flagged reason.
type OutOfOrderTimepointError struct {
	SubjectID string
	Date      time.Time
}

func (e *OutOfOrderTimepointError) Error() string {
	return fmt.Sprintf("subject %s has duplicate assessment date %s", e.SubjectID, e.Date.Format("2006-01-02"))
}

// AmbiguousLesionLinkError reports a lesion link id reused across
// incompatible roles. Derivation is aborted for the subject.
type AmbiguousLesionLinkError struct {
	SubjectID    string
	LesionLinkID string
	Roles        []LesionRole
}

func (e *AmbiguousLesionLinkError) Error() string {
	return fmt.Sprintf("subject %s reuses lesion link %s across incompatible roles %v", e.SubjectID, e.LesionLinkID, e.Roles)
}
