package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"montecarloBot/internal/montecarlo"
)

func TestCalculateHistoryStats(t *testing.T) {
	s, err := CalculateHistoryStats([]float64{100, 110, 99, 121})
	require.NoError(t, err)

	assert.InDelta(t, 21.0, s.TotalReturn, 1e-9)
	assert.InDelta(t, 10.0, s.MaxDrawdown, 1e-9)
	assert.Equal(t, 4, s.NumDays)
	assert.Greater(t, s.Volatility, 0.0)
	assert.InDelta(t, s.AnnualReturn/s.Volatility, s.SharpeRatio, 1e-9)
	assert.Contains(t, s.String(), "Return: 21.00%")
	assert.Contains(t, s.String(), "MaxDD: 10.00%")
}

func TestCalculateHistoryStatsFlatSeries(t *testing.T) {
	s, err := CalculateHistoryStats([]float64{50, 50, 50})
	require.NoError(t, err)
	assert.Zero(t, s.Volatility)
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.MaxDrawdown)
}

func TestCalculateHistoryStatsTooShort(t *testing.T) {
	_, err := CalculateHistoryStats([]float64{100, 101})
	assert.ErrorIs(t, err, montecarlo.ErrInsufficientData)

	_, err = CalculateHistoryStats([]float64{100})
	assert.ErrorIs(t, err, montecarlo.ErrInsufficientData)
}

func TestValueIndex(t *testing.T) {
	got := ValueIndex(montecarlo.ReturnSeries{0.1, -0.5})
	assert.InDeltaSlice(t, []float64{100, 110, 55}, got, 1e-9)
}

func TestCorrelationRows(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, -0.456, -0.456, 1})
	rows := CorrelationRows([]string{"NVDA", "AAPL"}, corr)
	assert.Equal(t, [][]string{{"NVDA", "1.00", "-0.46"}, {"AAPL", "-0.46", "1.00"}}, rows)

	corr.SetSym(0, 1, math.NaN())
	assert.Equal(t, "n/a", CorrelationRows([]string{"NVDA", "AAPL"}, corr)[1][1])
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([]float64{100, 120}, []float64{110})
	assert.InDelta(t, 99, lo, 1e-9)
	assert.InDelta(t, 121, hi, 1e-9)

	lo, hi = paddedRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, _ = paddedRange([]float64{0.1, 50})
	assert.Equal(t, 0.0, lo)
}
