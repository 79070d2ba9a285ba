package service

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// testLogger returns a silenced logger so test output stays readable.
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func day(n int) time.Time {
	// Study epoch for tests; day(1) is the baseline scan date.
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func dateStr(n int) string {
	return day(n).Format("2006-01-02")
}

// targetRow builds a raw target lesion row.
func targetRow(subject, link string, dayNum int, diameter float64) domain.RawMeasurement {
	return domain.RawMeasurement{
		SubjectID:      subject,
		LesionLinkID:   link,
		AssessmentDate: dateStr(dayNum),
		DiameterMM:     fmt.Sprintf("%g", diameter),
		LesionRole:     "TARGET",
	}
}

// nonTargetRow builds a raw non-target lesion row with an evaluation.
func nonTargetRow(subject, link string, dayNum int, evaluation string) domain.RawMeasurement {
	return domain.RawMeasurement{
		SubjectID:      subject,
		LesionLinkID:   link,
		AssessmentDate: dateStr(dayNum),
		LesionRole:     "NON_TARGET",
		Evaluation:     evaluation,
	}
}

// newLesionRow builds a raw new-lesion row.
func newLesionRow(subject, link string, dayNum int) domain.RawMeasurement {
	return domain.RawMeasurement{
		SubjectID:      subject,
		LesionLinkID:   link,
		AssessmentDate: dateStr(dayNum),
		LesionRole:     "NEW",
	}
}

// targetScan emits target rows splitting total across two lesions so test
// subjects stay under the protocol lesion cap.
func targetScan(subject string, dayNum int, total float64) []domain.RawMeasurement {
	return []domain.RawMeasurement{
		targetRow(subject, "T1", dayNum, total/2),
		targetRow(subject, "T2", dayNum, total/2),
	}
}

// assessment builds a TimepointAssessment for classifier tests.
func assessment(subject string, dayNum int, sum float64, evaluated bool, nonTarget domain.NonTargetStatus, newLesion bool) domain.TimepointAssessment {
	return domain.TimepointAssessment{
		SubjectID:        subject,
		AssessmentDate:   day(dayNum),
		TargetSum:        sum,
		TargetsEvaluated: evaluated,
		NonTarget:        nonTarget,
		NewLesion:        newLesion,
	}
}

// record builds a ResponseRecord for confirmation/BOR tests.
func record(subject string, dayNum int, category domain.ResponseCategory, confirmed bool) domain.ResponseRecord {
	return domain.ResponseRecord{
		SubjectID:      subject,
		AssessmentDate: day(dayNum),
		StudyDay:       dayNum,
		Category:       category,
		Confirmed:      confirmed,
	}
}

// observedNadir builds an observed NadirState.
func observedNadir(subject string, sum float64, dayNum int) domain.NadirState {
	return domain.NadirState{
		SubjectID: subject,
		Sum:       sum,
		Date:      day(dayNum),
		Observed:  true,
	}
}
