package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recist-derivation-server/internal/domain"
)

func classify(t *testing.T, in ClassificationInput, cfg domain.DerivationConfig) ClassificationOutcome {
	t.Helper()
	return NewRuleEngine(testLogger()).Classify(in, cfg)
}

func TestRuleEngine_CompleteResponse(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	in := ClassificationInput{
		Assessment: assessment("S", 42, 0, true, domain.ABSENT_CR_EVAL, false),
		Baseline:   assessment("S", 1, 50, true, domain.PRESENT, false),
		Nadir:      observedNadir("S", 50, 1),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.CR, out.Category)
}

func TestRuleEngine_CRRequiresNonTargetAbsence(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	// Target sum of zero with non-target lesions still present: a -100%
	// change from baseline, so PR, not CR.
	in := ClassificationInput{
		Assessment: assessment("S", 42, 0, true, domain.PRESENT, false),
		Baseline:   assessment("S", 1, 50, true, domain.PRESENT, false),
		Nadir:      observedNadir("S", 50, 1),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.PR, out.Category)
}

func TestRuleEngine_CRWithoutNonTargetDisease(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	// No non-target lesions were ever recorded, so target disappearance is
	// complete response on its own.
	in := ClassificationInput{
		Assessment: assessment("S", 42, 0, true, domain.NOT_EVALUATED, false),
		Baseline:   assessment("S", 1, 50, true, domain.NOT_EVALUATED, false),
		Nadir:      observedNadir("S", 50, 1),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.CR, out.Category)

	// With non-target disease documented at baseline, a visit that skips the
	// non-target evaluation cannot establish CR.
	in.Baseline = assessment("S", 1, 50, true, domain.PRESENT, false)

	out = classify(t, in, cfg)
	assert.Equal(t, domain.PR, out.Category)
}

func TestRuleEngine_ReappearanceAfterCompleteResponse(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	baseline := assessment("S", 1, 50, true, domain.PRESENT, false)

	// Target disease regrowing from a zero nadir is progression even though
	// percent change from nadir is undefined.
	in := ClassificationInput{
		Assessment: assessment("S", 90, 3, true, domain.PRESENT, false),
		Baseline:   baseline,
		Nadir:      observedNadir("S", 0, 60),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.PD, out.Category)
	assert.Nil(t, out.PctFromNadir)

	// A sum still at zero is not regrowth.
	in.Assessment = assessment("S", 90, 0, true, domain.ABSENT_CR_EVAL, false)

	out = classify(t, in, cfg)
	assert.Equal(t, domain.CR, out.Category)
}

func TestRuleEngine_ProgressiveDisease(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	baseline := assessment("S", 1, 30, true, domain.PRESENT, false)

	tests := []struct {
		name       string
		assessment domain.TimepointAssessment
		nadir      domain.NadirState
		want       domain.ResponseCategory
	}{
		{
			name:       "new lesion forces PD regardless of shrinkage",
			assessment: assessment("S", 30, 26, true, domain.PRESENT, true),
			nadir:      observedNadir("S", 30, 1),
			want:       domain.PD,
		},
		{
			name:       "unequivocal non-target progression",
			assessment: assessment("S", 30, 28, true, domain.PROGRESSED, false),
			nadir:      observedNadir("S", 30, 1),
			want:       domain.PD,
		},
		{
			name:       "twenty percent and five millimeters from nadir",
			assessment: assessment("S", 60, 36, true, domain.PRESENT, false),
			nadir:      observedNadir("S", 30, 30),
			want:       domain.PD,
		},
		{
			name:       "twenty percent but under five millimeters",
			assessment: assessment("S", 60, 24, true, domain.PRESENT, false),
			nadir:      observedNadir("S", 20, 30),
			want:       domain.SD,
		},
		{
			name:       "five millimeters but under twenty percent",
			assessment: assessment("S", 60, 34, true, domain.PRESENT, false),
			nadir:      observedNadir("S", 29, 30),
			want:       domain.SD,
		},
		{
			name:       "no nadir observed yet",
			assessment: assessment("S", 30, 33, true, domain.PRESENT, false),
			nadir:      domain.NadirState{SubjectID: "S"},
			want:       domain.SD,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(t, ClassificationInput{
				Assessment: tt.assessment,
				Baseline:   baseline,
				Nadir:      tt.nadir,
			}, cfg)
			assert.Equal(t, tt.want, out.Category)
		})
	}
}

func TestRuleEngine_EnaworuRule(t *testing.T) {
	baseline := assessment("S", 1, 30, true, domain.PRESENT, false)

	tests := []struct {
		name    string
		enaworu bool
		sum     float64
		nadir   float64
		want    domain.ResponseCategory
	}{
		// Scenario from the 25mm-floor protocol note: +20% but +4mm, and the
		// 24mm sum is below the alternate floor, so the rule adds nothing.
		{"disabled small nadir stays SD", false, 24, 20, domain.SD},
		{"enabled but floor unmet stays SD", true, 24, 20, domain.SD},
		// Sum crosses the 25mm floor with +20% but under 5mm absolute: PD
		// only when the rule is enabled.
		{"enabled and floor met is PD", true, 25.5, 21, domain.PD},
		{"disabled and floor met stays SD", false, 25.5, 21, domain.SD},
		// The standard rule is never weakened by enabling the alternate.
		{"standard rule still applies when enabled", true, 36, 30, domain.PD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultDerivationConfig()
			cfg.ApplyEnaworuRule = tt.enaworu

			out := classify(t, ClassificationInput{
				Assessment: assessment("S", 60, tt.sum, true, domain.PRESENT, false),
				Baseline:   baseline,
				Nadir:      observedNadir("S", tt.nadir, 30),
			}, cfg)
			assert.Equal(t, tt.want, out.Category)
		})
	}
}

func TestRuleEngine_PartialResponse(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	baseline := assessment("S", 1, 50, true, domain.PRESENT, false)

	tests := []struct {
		name string
		sum  float64
		want domain.ResponseCategory
	}{
		{"forty percent decrease", 30, domain.PR},
		{"exactly thirty percent decrease", 35, domain.PR},
		{"twenty nine percent decrease", 35.5, domain.SD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(t, ClassificationInput{
				Assessment: assessment("S", 42, tt.sum, true, domain.PRESENT, false),
				Baseline:   baseline,
				Nadir:      observedNadir("S", 50, 1),
			}, cfg)
			assert.Equal(t, tt.want, out.Category)
		})
	}
}

func TestRuleEngine_PDCheckedBeforePR(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	// A timepoint meeting PR from baseline while carrying a new lesion must
	// classify as PD: the protocol's conservative bias toward progression.
	in := ClassificationInput{
		Assessment: assessment("S", 42, 30, true, domain.PRESENT, true),
		Baseline:   assessment("S", 1, 50, true, domain.PRESENT, false),
		Nadir:      observedNadir("S", 50, 1),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.PD, out.Category)
}

func TestRuleEngine_NotEvaluable(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	in := ClassificationInput{
		Assessment: assessment("S", 42, 0, false, domain.NOT_EVALUATED, false),
		Baseline:   assessment("S", 1, 50, true, domain.PRESENT, false),
		Nadir:      observedNadir("S", 50, 1),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.NE, out.Category)
	assert.Nil(t, out.TargetSum)
}

func TestRuleEngine_ZeroBaselineDisablesBaselineRules(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	// Baseline sum of zero: percent change from baseline is undefined, so PR
	// can never fire; nadir-based and qualitative rules still apply.
	in := ClassificationInput{
		Assessment: assessment("S", 42, 12, true, domain.PRESENT, false),
		Baseline:   assessment("S", 1, 0, true, domain.ABSENT_CR_EVAL, false),
		Nadir:      observedNadir("S", 5, 20),
	}

	out := classify(t, in, cfg)
	assert.Equal(t, domain.PD, out.Category)
	assert.Nil(t, out.PctFromBaseline)
}

func TestRuleEngine_RECIST10Thresholds(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	cfg.RECISTVersion = domain.RECIST10
	baseline := assessment("S", 1, 50, true, domain.PRESENT, false)

	tests := []struct {
		name  string
		sum   float64
		nadir float64
		want  domain.ResponseCategory
	}{
		{"thirty percent decrease is only SD under 1.0", 35, 35, domain.SD},
		{"fifty percent decrease is PR under 1.0", 25, 25, domain.PR},
		{"twenty percent increase is SD under 1.0", 48, 40, domain.SD},
		{"twenty five percent increase is PD with no absolute floor", 50, 40, domain.PD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(t, ClassificationInput{
				Assessment: assessment("S", 42, tt.sum, true, domain.PRESENT, false),
				Baseline:   baseline,
				Nadir:      observedNadir("S", tt.nadir, 28),
			}, cfg)
			assert.Equal(t, tt.want, out.Category)
		})
	}
}

func TestRuleEngine_ChangeFieldsRoundTrip(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()

	in := ClassificationInput{
		Assessment: assessment("S", 42, 36, true, domain.PRESENT, false),
		Baseline:   assessment("S", 1, 50, true, domain.PRESENT, false),
		Nadir:      observedNadir("S", 30, 28),
	}

	out := classify(t, in, cfg)
	require.NotNil(t, out.PctFromNadir)
	require.NotNil(t, out.NadirSum)
	require.NotNil(t, out.TargetSum)

	recomputed := (*out.TargetSum - *out.NadirSum) / *out.NadirSum * 100
	assert.InDelta(t, recomputed, *out.PctFromNadir, 1e-9)

	require.NotNil(t, out.PctFromBaseline)
	assert.InDelta(t, -28.0, *out.PctFromBaseline, 1e-9)
}
