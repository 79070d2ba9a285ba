package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recist-derivation-server/internal/domain"
)

func bor(subject string, category domain.ResponseCategory, stratum string) domain.BestOverallResponse {
	return domain.BestOverallResponse{SubjectID: subject, Category: category, Stratum: stratum}
}

func TestMetricsAggregator_RatesAndDenominators(t *testing.T) {
	m := NewMetricsAggregator(testLogger())

	bors := []domain.BestOverallResponse{
		bor("S1", domain.CR, ""),
		bor("S2", domain.PR, ""),
		bor("S3", domain.SD, ""),
		bor("S4", domain.PD, ""),
		bor("S5", domain.NE, ""),
	}

	metrics := m.Aggregate(bors)

	assert.Equal(t, 4, metrics.Overall.Evaluable, "NE subjects are excluded from the denominator")
	assert.Equal(t, 1, metrics.Overall.NotEvaluable)
	assert.Equal(t, 2, metrics.Overall.Responders)
	assert.Equal(t, 3, metrics.Overall.DiseaseControl)
	assert.InDelta(t, 0.5, metrics.Overall.ORR, 1e-9)
	assert.InDelta(t, 0.75, metrics.Overall.DCR, 1e-9)
}

func TestMetricsAggregator_AllNotEvaluable(t *testing.T) {
	m := NewMetricsAggregator(testLogger())

	metrics := m.Aggregate([]domain.BestOverallResponse{
		bor("S1", domain.NE, ""),
		bor("S2", domain.NE, ""),
	})

	assert.Equal(t, 0, metrics.Overall.Evaluable)
	assert.Equal(t, 2, metrics.Overall.NotEvaluable)
	assert.Zero(t, metrics.Overall.ORR)
	assert.Zero(t, metrics.Overall.DCR)
}

func TestMetricsAggregator_Stratified(t *testing.T) {
	m := NewMetricsAggregator(testLogger())

	bors := []domain.BestOverallResponse{
		bor("S1", domain.PR, "ARM-A"),
		bor("S2", domain.PD, "ARM-A"),
		bor("S3", domain.CR, "ARM-B"),
		bor("S4", domain.SD, "ARM-B"),
	}

	metrics := m.Aggregate(bors)
	require.Len(t, metrics.ByStratum, 2)

	// Strata are emitted in sorted order for reproducible output.
	assert.Equal(t, "ARM-A", metrics.ByStratum[0].Stratum)
	assert.InDelta(t, 0.5, metrics.ByStratum[0].ORR, 1e-9)
	assert.InDelta(t, 0.5, metrics.ByStratum[0].DCR, 1e-9)

	assert.Equal(t, "ARM-B", metrics.ByStratum[1].Stratum)
	assert.InDelta(t, 0.5, metrics.ByStratum[1].ORR, 1e-9)
	assert.InDelta(t, 1.0, metrics.ByStratum[1].DCR, 1e-9)
}

func TestMetricsAggregator_NoStrataOmitsBreakdown(t *testing.T) {
	m := NewMetricsAggregator(testLogger())

	metrics := m.Aggregate([]domain.BestOverallResponse{
		bor("S1", domain.PR, ""),
	})

	assert.Empty(t, metrics.ByStratum)
}
