package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

// MetricsAggregator rolls best-overall-response values up into objective
// response rate and disease control rate summaries. Pure aggregation:
// deterministic given the BOR table, no side effects.
type MetricsAggregator struct {
	logger *logrus.Logger
}

// NewMetricsAggregator creates a new response metrics aggregator.
func NewMetricsAggregator(logger *logrus.Logger) *MetricsAggregator {
	return &MetricsAggregator{logger: logger}
}

// Aggregate computes overall and per-stratum response rates. Subjects with
// BOR = NE are excluded from the denominators and reported separately.
func (m *MetricsAggregator) Aggregate(bors []domain.BestOverallResponse) domain.ResponseMetrics {
	metrics := domain.ResponseMetrics{
		Overall: tally("", bors),
	}

	strata := make(map[string][]domain.BestOverallResponse)
	for _, bor := range bors {
		if bor.Stratum != "" {
			strata[bor.Stratum] = append(strata[bor.Stratum], bor)
		}
	}

	if len(strata) > 0 {
		names := make([]string, 0, len(strata))
		for name := range strata {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			metrics.ByStratum = append(metrics.ByStratum, tally(name, strata[name]))
		}
	}

	m.logger.WithFields(logrus.Fields{
		"subjects":  len(bors),
		"evaluable": metrics.Overall.Evaluable,
		"orr":       metrics.Overall.ORR,
		"dcr":       metrics.Overall.DCR,
	}).Info("Aggregated response metrics")

	return metrics
}

// tally counts one group of BOR values into rate metrics.
func tally(stratum string, bors []domain.BestOverallResponse) domain.StratumMetrics {
	sm := domain.StratumMetrics{Stratum: stratum}

	for _, bor := range bors {
		if bor.Category == domain.NE {
			sm.NotEvaluable++
			continue
		}

		sm.Evaluable++
		if bor.Category.IsObjectiveResponse() {
			sm.Responders++
		}
		if bor.Category.IsDiseaseControl() {
			sm.DiseaseControl++
		}
	}

	if sm.Evaluable > 0 {
		sm.ORR = float64(sm.Responders) / float64(sm.Evaluable)
		sm.DCR = float64(sm.DiseaseControl) / float64(sm.Evaluable)
	}

	return sm
}
