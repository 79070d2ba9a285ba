package service

import (
	"github.com/recist-derivation-server/internal/domain"
)

// NadirTracker maintains the running minimum target-lesion sum across a
// subject's eligible timepoints, walked in chronological order.
//
// The value returned by Current for timepoint N never includes timepoint N
// itself: callers read the pre-timepoint nadir, classify, and only then
// call Observe. Folding the current sum into its own nadir would make
// progression undetectable by construction.
type NadirTracker struct {
	state           domain.NadirState
	excludeBaseline bool
	baselineSeen    bool
}

// NewNadirTracker creates a tracker for one subject. When the configuration
// excludes the baseline, the first observed timepoint is skipped and the
// nadir accumulates from the second onward.
func NewNadirTracker(subjectID string, cfg domain.DerivationConfig) *NadirTracker {
	return &NadirTracker{
		state:           domain.NadirState{SubjectID: subjectID},
		excludeBaseline: cfg.NadirExcludeBaseline,
	}
}

// Current returns the nadir as of immediately before the timepoint about to
// be classified. Observed is false until an eligible timepoint has been seen.
func (t *NadirTracker) Current() domain.NadirState {
	return t.state
}

// Observe folds a timepoint into the running minimum. The first call is
// treated as the baseline for eligibility purposes.
func (t *NadirTracker) Observe(tp *domain.TimepointAssessment) {
	if !t.baselineSeen {
		t.baselineSeen = true
		if t.excludeBaseline {
			return
		}
	}
	t.state.Update(tp)
}
