package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recist-derivation-server/internal/domain"
)

func TestConfirmationEngine_ConfirmsRepeatAtWindow(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 77, domain.PR, false), // 35 days later, window is 28
	}

	out := e.Confirm(records, cfg)
	assert.True(t, out[0].Confirmed)
	assert.False(t, out[1].Confirmed, "the trailing PR has no later repeat")
}

func TestConfirmationEngine_RepeatInsideWindowDoesNotConfirm(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 56, domain.PR, false), // only 14 days later
	}

	out := e.Confirm(records, cfg)
	assert.False(t, out[0].Confirmed)
}

func TestConfirmationEngine_EarlyRepeatThenQualifyingRepeat(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	// The day-56 PR is too early but does not invalidate; the day-84 PR
	// satisfies the window.
	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 56, domain.PR, false),
		record("S", 84, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	assert.True(t, out[0].Confirmed)
	assert.True(t, out[1].Confirmed, "the day-56 PR is confirmed by the day-84 repeat")
}

func TestConfirmationEngine_BetterCategoryConfirms(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 84, domain.CR, false),
	}

	out := e.Confirm(records, cfg)
	assert.True(t, out[0].Confirmed, "CR is same-or-better for a raw PR")
}

func TestConfirmationEngine_CRNotConfirmedByPR(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.CR, false),
		record("S", 84, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	assert.False(t, out[0].Confirmed)
}

func TestConfirmationEngine_InterveningPDInvalidates(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 63, domain.PD, false),
		record("S", 98, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	assert.False(t, out[0].Confirmed, "a PD between the PR and its repeat invalidates confirmation")
}

func TestConfirmationEngine_InterveningSDAndNESkipped(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 56, domain.NE, false),
		record("S", 63, domain.SD, false),
		record("S", 84, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	assert.True(t, out[0].Confirmed, "non-PD interim assessments do not invalidate")
}

func TestConfirmationEngine_SDAndPDNeverConfirmed(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.SD, false),
		record("S", 84, domain.SD, false),
		record("S", 120, domain.PD, false),
	}

	out := e.Confirm(records, cfg)
	for _, rec := range out {
		assert.False(t, rec.Confirmed)
	}
}

func TestConfirmationEngine_ZeroWindowConfirmsNextAssessment(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()
	cfg.ConfirmationWindowDays = 0

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 49, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	assert.True(t, out[0].Confirmed)
}

func TestConfirmationEngine_DoesNotMutateInput(t *testing.T) {
	e := NewConfirmationEngine(testLogger())
	cfg := domain.DefaultDerivationConfig()

	records := []domain.ResponseRecord{
		record("S", 42, domain.PR, false),
		record("S", 77, domain.PR, false),
	}

	out := e.Confirm(records, cfg)
	require.True(t, out[0].Confirmed)
	assert.False(t, records[0].Confirmed, "input records are read-only")
}
