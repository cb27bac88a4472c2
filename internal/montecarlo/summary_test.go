package montecarlo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{1, 10},
		{0.5, 5.5},
		{0.05, 1.45},
		{0.95, 9.55},
		{-0.1, 1},
		{1.2, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 3.0, Percentile([]float64{3}, 0.95))
}

func TestSummarizeKnownEnsemble(t *testing.T) {
	ens, err := NewEnsemble([][]float64{
		{4, 1, 3, 2},
		{10, 10, 10, 10},
	})
	require.NoError(t, err)

	tbl := Summarize(ens)
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, 1, tbl.Rows[0].Day)
	assert.InDelta(t, 2.5, tbl.Rows[0].MeanPrice, 1e-12)
	assert.InDelta(t, 1.15, tbl.Rows[0].P5, 1e-12)
	assert.InDelta(t, 3.85, tbl.Rows[0].P95, 1e-12)

	assert.Equal(t, 2, tbl.Rows[1].Day)
	assert.Equal(t, DaySummary{Day: 2, MeanPrice: 10, P5: 10, P95: 10}, tbl.Rows[1])
	assert.Equal(t, tbl.Rows[1], tbl.Final())

	// the ensemble keeps its original, unsorted layout
	assert.Equal(t, []float64{4, 1, 3, 2}, ens.Day(0))
	assert.Same(t, ens, tbl.Ensemble)
}

func TestSummarizeBandsContainMean(t *testing.T) {
	ens, err := NewSimulator(Options{}).Simulate(context.Background(), testParams, 250, 200, 60, PCGGenerator{Seed: 99})
	require.NoError(t, err)
	before := mat.DenseCopyOf(ens.Matrix())

	tbl := Summarize(ens)
	require.Len(t, tbl.Rows, 60)
	for i, row := range tbl.Rows {
		assert.Equal(t, i+1, row.Day)
		assert.LessOrEqual(t, row.P5, row.MeanPrice)
		assert.LessOrEqual(t, row.MeanPrice, row.P95)
	}
	assert.True(t, mat.Equal(before, ens.Matrix()))
}

func TestSummaryFinalEmpty(t *testing.T) {
	assert.Equal(t, DaySummary{}, SummaryTable{}.Final())
}
