package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"montecarloBot/internal/montecarlo"
)

func day(n int) time.Time { return jan2.AddDate(0, 0, n) }

func TestAlignIntersect(t *testing.T) {
	a := montecarlo.PriceSeries{Symbol: "SAP.DE", Timestamps: []time.Time{day(0), day(1), day(2), day(3)}, Prices: []float64{1, 2, 3, 4}}
	b := montecarlo.PriceSeries{Symbol: "AAPL", Timestamps: []time.Time{day(0), day(2), day(3), day(4)}, Prices: []float64{10, 30, 40, 50}}

	out := AlignIntersect([]montecarlo.PriceSeries{a, b})
	require.Len(t, out, 2)
	want := []time.Time{day(0), day(2), day(3)}
	assert.Equal(t, want, out[0].Timestamps)
	assert.Equal(t, want, out[1].Timestamps)
	assert.Equal(t, []float64{1, 3, 4}, out[0].Prices)
	assert.Equal(t, []float64{10, 30, 40}, out[1].Prices)
	assert.Equal(t, "AAPL", out[1].Symbol)

	// inputs untouched
	assert.Len(t, a.Prices, 4)

	_, err := montecarlo.Aggregate(out, montecarlo.Weights{0.5, 0.5})
	assert.NoError(t, err)
}

func TestAlignIntersectSingleSeries(t *testing.T) {
	a := montecarlo.PriceSeries{Symbol: "X", Timestamps: []time.Time{day(0)}, Prices: []float64{1}}
	assert.Equal(t, []montecarlo.PriceSeries{a}, AlignIntersect([]montecarlo.PriceSeries{a}))
}
