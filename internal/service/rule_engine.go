package service

import (
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// thresholds is the numeric rule set selected by RECIST version.
// RECIST 1.1 measures the sum of longest diameters with a -30% PR threshold
// and a +20% / 5mm progression rule from nadir; RECIST 1.0 used -50% / +25%
// with no absolute floor.
type thresholds struct {
	prPctFromBaseline float64 // at or below this percent change -> PR eligible
	pdPctFromNadir    float64 // at or above this percent change -> PD eligible
	pdAbsoluteMM      float64 // minimum absolute increase from nadir in mm
	enaworuFloorMM    float64 // alternate absolute-sum floor when the rule is enabled
}

func thresholdsFor(v domain.RECISTVersion) thresholds {
	switch v {
	case domain.RECIST10:
		return thresholds{
			prPctFromBaseline: -50,
			pdPctFromNadir:    25,
			pdAbsoluteMM:      0,
			enaworuFloorMM:    25,
		}
	default:
		return thresholds{
			prPctFromBaseline: -30,
			pdPctFromNadir:    20,
			pdAbsoluteMM:      5,
			enaworuFloorMM:    25,
		}
	}
}

// ClassificationInput carries the context the decision tree needs for one
// non-baseline timepoint: the assessment itself, the baseline reference and
// the pre-timepoint nadir.
type ClassificationInput struct {
	Assessment domain.TimepointAssessment
	Baseline   domain.TimepointAssessment
	Nadir      domain.NadirState
}

// ClassificationOutcome is the raw category plus the derived change fields
// recorded for downstream QC re-derivation.
type ClassificationOutcome struct {
	Category        domain.ResponseCategory
	TargetSum       *float64
	NadirSum        *float64
	PctFromBaseline *float64
	PctFromNadir    *float64
}

// classificationRule is one branch of the RECIST decision tree. Rules are
// evaluated strictly in order and the first match wins, which encodes the
// protocol's conservative bias: PD is checked before PR, so a timepoint
// meeting both always classifies as PD.
type classificationRule struct {
	Category domain.ResponseCategory
	Name     string
	Matches  func(in ClassificationInput, th thresholds, cfg domain.DerivationConfig) bool
}

// RuleEngine applies the RECIST decision tree to timepoint assessments.
type RuleEngine struct {
	logger *logrus.Logger
	rules  []classificationRule
}

// NewRuleEngine creates a rule engine with the ordered RECIST decision tree.
func NewRuleEngine(logger *logrus.Logger) *RuleEngine {
	return &RuleEngine{
		logger: logger,
		rules: []classificationRule{
			{
				Category: domain.CR,
				Name:     "complete response",
				Matches:  matchCR,
			},
			{
				Category: domain.PD,
				Name:     "progressive disease",
				Matches:  matchPD,
			},
			{
				Category: domain.PR,
				Name:     "partial response",
				Matches:  matchPR,
			},
			{
				Category: domain.SD,
				Name:     "stable disease",
				Matches:  matchSD,
			},
		},
	}
}

// Classify runs the decision tree for one non-baseline timepoint. The
// baseline itself is never classified; it defines the reference.
func (e *RuleEngine) Classify(in ClassificationInput, cfg domain.DerivationConfig) ClassificationOutcome {
	th := thresholdsFor(cfg.RECISTVersion)
	out := e.changeFields(in)

	for _, rule := range e.rules {
		if rule.Matches(in, th, cfg) {
			out.Category = rule.Category

			e.logger.WithFields(logrus.Fields{
				"subject_id": in.Assessment.SubjectID,
				"date":       in.Assessment.AssessmentDate.Format(assessmentDateLayout),
				"rule":       rule.Name,
				"category":   rule.Category.String(),
			}).Debug("Classified timepoint")

			return out
		}
	}

	// No branch matched: insufficient data to evaluate.
	out.Category = domain.NE
	return out
}

// changeFields computes the stored percent-change fields. Baseline percent
// change is undefined when the baseline sum is zero; nadir percent change is
// undefined until an eligible nadir has been observed.
func (e *RuleEngine) changeFields(in ClassificationInput) ClassificationOutcome {
	out := ClassificationOutcome{}

	if in.Assessment.TargetsEvaluated {
		sum := in.Assessment.TargetSum
		out.TargetSum = &sum

		if in.Baseline.TargetsEvaluated && in.Baseline.TargetSum > 0 {
			pct := (sum - in.Baseline.TargetSum) / in.Baseline.TargetSum * 100
			out.PctFromBaseline = &pct
		}

		if in.Nadir.Observed {
			nadir := in.Nadir.Sum
			out.NadirSum = &nadir
			if nadir > 0 {
				pct := (sum - nadir) / nadir * 100
				out.PctFromNadir = &pct
			}
		}
	}

	return out
}

func matchCR(in ClassificationInput, _ thresholds, _ domain.DerivationConfig) bool {
	if !in.Assessment.TargetsEvaluated || in.Assessment.TargetSum != 0 || in.Assessment.NewLesion {
		return false
	}

	switch in.Assessment.NonTarget {
	case domain.ABSENT_CR_EVAL:
		return true
	case domain.NOT_EVALUATED:
		// Subjects with no non-target disease at baseline have nothing left
		// to resolve; target disappearance alone is complete response.
		return in.Baseline.NonTarget == domain.NOT_EVALUATED
	default:
		return false
	}
}

func matchPD(in ClassificationInput, th thresholds, cfg domain.DerivationConfig) bool {
	if in.Assessment.NewLesion {
		return true
	}

	// Unequivocal non-target progression is an input signal, not derived here.
	if in.Assessment.NonTarget == domain.PROGRESSED {
		return true
	}

	if !in.Assessment.TargetsEvaluated || !in.Nadir.Observed {
		return false
	}

	sum := in.Assessment.TargetSum

	// Percent change from a zero nadir is undefined, but reappearance of
	// target disease after complete disappearance is progression.
	if in.Nadir.Sum <= 0 {
		return sum > 0
	}

	pctFromNadir := (sum - in.Nadir.Sum) / in.Nadir.Sum * 100
	absFromNadir := sum - in.Nadir.Sum

	if pctFromNadir < th.pdPctFromNadir {
		return false
	}

	if absFromNadir >= th.pdAbsoluteMM {
		return true
	}

	// Enaworu rule: an alternate absolute-sum floor for small-nadir cases
	// that cannot produce the standard 5mm increase. Strictly an additional
	// sufficient condition; the standard rule is never weakened.
	return cfg.ApplyEnaworuRule && sum >= th.enaworuFloorMM
}

func matchPR(in ClassificationInput, th thresholds, _ domain.DerivationConfig) bool {
	if in.Assessment.NewLesion || in.Assessment.NonTarget == domain.PROGRESSED {
		return false
	}

	if !in.Assessment.TargetsEvaluated || !in.Baseline.TargetsEvaluated || in.Baseline.TargetSum <= 0 {
		return false
	}

	pct := (in.Assessment.TargetSum - in.Baseline.TargetSum) / in.Baseline.TargetSum * 100
	return pct <= th.prPctFromBaseline
}

func matchSD(in ClassificationInput, _ thresholds, _ domain.DerivationConfig) bool {
	// SD requires an evaluable target assessment; without one, and with no
	// qualitative signal already caught above, the timepoint is NE.
	return in.Assessment.TargetsEvaluated
}
