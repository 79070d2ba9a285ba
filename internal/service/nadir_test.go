package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recist-derivation-server/internal/domain"
)

func TestNadirTracker_ExcludesCurrentTimepoint(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	tracker := NewNadirTracker("SUBJ-001", cfg)

	baseline := assessment("SUBJ-001", 1, 50, true, domain.PRESENT, false)
	tracker.Observe(&baseline)

	// The nadir read before observing the day-42 timepoint must not include
	// that timepoint's own sum.
	tp := assessment("SUBJ-001", 42, 20, true, domain.PRESENT, false)
	before := tracker.Current()
	require.True(t, before.Observed)
	assert.Equal(t, 50.0, before.Sum)

	tracker.Observe(&tp)
	assert.Equal(t, 20.0, tracker.Current().Sum)
}

func TestNadirTracker_BaselineExclusionPolicy(t *testing.T) {
	tests := []struct {
		name            string
		excludeBaseline bool
		wantObserved    bool
		wantSum         float64
	}{
		{"baseline eligible", false, true, 50.0},
		{"baseline excluded", true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultDerivationConfig()
			cfg.NadirExcludeBaseline = tt.excludeBaseline

			tracker := NewNadirTracker("SUBJ-002", cfg)
			baseline := assessment("SUBJ-002", 1, 50, true, domain.PRESENT, false)
			tracker.Observe(&baseline)

			state := tracker.Current()
			assert.Equal(t, tt.wantObserved, state.Observed)
			if tt.wantObserved {
				assert.Equal(t, tt.wantSum, state.Sum)
			}
		})
	}
}

func TestNadirTracker_MonotonicNonIncreasing(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	tracker := NewNadirTracker("SUBJ-003", cfg)

	sums := []float64{50, 42, 45, 30, 38, 30, 25}
	previous := -1.0

	for i, sum := range sums {
		tp := assessment("SUBJ-003", i*28+1, sum, true, domain.PRESENT, false)
		tracker.Observe(&tp)

		state := tracker.Current()
		require.True(t, state.Observed)
		if previous >= 0 {
			assert.LessOrEqual(t, state.Sum, previous, "nadir sequence must be non-increasing")
		}
		previous = state.Sum
	}

	assert.Equal(t, 25.0, tracker.Current().Sum)
}

func TestNadirTracker_SkipsUnevaluatedTimepoints(t *testing.T) {
	cfg := domain.DefaultDerivationConfig()
	tracker := NewNadirTracker("SUBJ-004", cfg)

	baseline := assessment("SUBJ-004", 1, 40, true, domain.PRESENT, false)
	tracker.Observe(&baseline)

	notEvaluated := assessment("SUBJ-004", 30, 0, false, domain.NOT_EVALUATED, false)
	tracker.Observe(&notEvaluated)

	assert.Equal(t, 40.0, tracker.Current().Sum, "an unevaluated timepoint cannot lower the nadir")
}
