package montecarlo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"

	"montecarloBot/internal/logger"
)

type fakeSource struct {
	series map[string]PriceSeries
	calls  int
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol string, _, _ time.Time) (PriceSeries, error) {
	f.calls++
	s, ok := f.series[symbol]
	if !ok {
		return PriceSeries{}, fmt.Errorf("%w: %s", ErrDataUnavailable, symbol)
	}
	return s, nil
}

func (f *fakeSource) FetchPortfolio(ctx context.Context, symbols []string, start, end time.Time) ([]PriceSeries, error) {
	out := make([]PriceSeries, 0, len(symbols))
	for _, s := range symbols {
		ps, err := f.FetchHistory(ctx, s, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{series: map[string]PriceSeries{
		"NVDA": series("NVDA", day0, 100, 102, 101, 105, 107, 104, 110, 111, 108, 115),
		"AAPL": series("AAPL", day0, 180, 181, 179, 183, 185, 184, 186, 188, 187, 190),
		"MSFT": series("MSFT", day0, 400, 398, 405, 410, 402, 407, 415, 412, 420, 418),
		"LATE": series("LATE", day0.AddDate(0, 0, 3), 10, 11, 12, 13, 12, 11, 12, 13, 14, 15),
	}}
}

func newTestPipeline(t *testing.T, src PriceSource, opts ...PipelineOption) *Pipeline {
	return NewPipeline(src, NewSimulator(Options{Workers: 3}), logger.Wrap(zaptest.NewLogger(t)), opts...)
}

func baseConfig(symbols ...string) RunConfig {
	return RunConfig{
		Symbols:        symbols,
		Start:          day0,
		End:            day0.AddDate(1, 0, 0),
		NumSimulations: 40,
		NumDays:        15,
		Seed:           42,
	}
}

func TestPipelineSingleAsset(t *testing.T) {
	p := newTestPipeline(t, newFakeSource())
	res, err := p.Run(context.Background(), baseConfig("NVDA"))
	require.NoError(t, err)

	assert.Nil(t, res.Portfolio)
	assert.Nil(t, res.Correlation)
	assert.Equal(t, 115.0, res.StartPrice)
	assert.Len(t, res.Returns, 9)
	require.Len(t, res.Summary.Rows, 15)
	days, sims := res.Summary.Ensemble.Dims()
	assert.Equal(t, 15, days)
	assert.Equal(t, 40, sims)
	for _, row := range res.Summary.Rows {
		assert.LessOrEqual(t, row.P5, row.MeanPrice)
		assert.LessOrEqual(t, row.MeanPrice, row.P95)
	}
}

func TestPipelineSeedReproducible(t *testing.T) {
	p := newTestPipeline(t, newFakeSource())
	a, err := p.Run(context.Background(), baseConfig("NVDA"))
	require.NoError(t, err)
	b, err := p.Run(context.Background(), baseConfig("NVDA"))
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Summary.Ensemble.Matrix(), b.Summary.Ensemble.Matrix()))
	assert.Equal(t, a.Summary.Rows, b.Summary.Rows)
}

func TestPipelineUnitWeightMatchesSingleAsset(t *testing.T) {
	p := newTestPipeline(t, newFakeSource())
	single, err := p.Run(context.Background(), baseConfig("AAPL"))
	require.NoError(t, err)

	cfg := baseConfig("NVDA", "AAPL", "MSFT")
	cfg.Weights = Weights{0, 1, 0}
	port, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.NotNil(t, port.Portfolio)
	assert.InDelta(t, single.StartPrice, port.StartPrice, 1e-9)
	assert.InDelta(t, single.Params.Volatility, port.Params.Volatility, 1e-9)
	assert.InDelta(t, single.Params.Drift, port.Params.Drift, 1e-9)
	require.Len(t, port.Summary.Rows, len(single.Summary.Rows))
	for i := range single.Summary.Rows {
		assert.InDelta(t, single.Summary.Rows[i].MeanPrice, port.Summary.Rows[i].MeanPrice, 1e-9)
		assert.InDelta(t, single.Summary.Rows[i].P5, port.Summary.Rows[i].P5, 1e-9)
		assert.InDelta(t, single.Summary.Rows[i].P95, port.Summary.Rows[i].P95, 1e-9)
	}
	require.NotNil(t, port.Correlation)
	assert.Equal(t, 3, port.Correlation.SymmetricDim())
}

func TestPipelineErrors(t *testing.T) {
	weighted := func(w Weights, syms ...string) RunConfig {
		c := baseConfig(syms...)
		c.Weights = w
		return c
	}
	noWindow := baseConfig("NVDA")
	noWindow.End = noWindow.Start

	tests := []struct {
		name      string
		cfg       RunConfig
		want      error
		wantFetch bool
	}{
		{"unknown symbol", baseConfig("NOPE"), ErrDataUnavailable, true},
		{"bad weights", weighted(Weights{0.5, 0.5, 0.1}, "NVDA", "AAPL", "MSFT"), ErrInvalidWeights, false},
		{"weights length", weighted(Weights{1}, "NVDA", "AAPL"), ErrInvalidWeights, false},
		{"misaligned", weighted(Weights{0.5, 0.5}, "NVDA", "LATE"), ErrMisalignedSeries, true},
		{"no symbols", baseConfig(), ErrInvalidParameter, false},
		{"duplicate symbols", weighted(Weights{0.5, 0.5}, "NVDA", "NVDA"), ErrInvalidParameter, false},
		{"empty window", noWindow, ErrInvalidParameter, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			res, err := newTestPipeline(t, src).Run(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantFetch, src.calls > 0)
		})
	}
}

func TestPipelineInsufficientHistory(t *testing.T) {
	src := &fakeSource{series: map[string]PriceSeries{"TINY": series("TINY", day0, 10, 11)}}
	_, err := newTestPipeline(t, src).Run(context.Background(), baseConfig("TINY"))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPipelineAlignmentOption(t *testing.T) {
	trim := func(in []PriceSeries) []PriceSeries {
		out := make([]PriceSeries, len(in))
		for i, s := range in {
			// last four prices of each asset on a shared grid
			out[i] = PriceSeries{Symbol: s.Symbol, Timestamps: dailyGrid(day0, 4), Prices: s.Prices[len(s.Prices)-4:]}
		}
		return out
	}
	cfg := baseConfig("NVDA", "LATE")
	cfg.Weights = Weights{0.5, 0.5}
	res, err := newTestPipeline(t, newFakeSource(), WithAlignment(trim)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, res.Returns, 3)
	assert.InDelta(t, 0.5*115+0.5*15, res.StartPrice, 1e-12)
}

func TestRunConfigLabel(t *testing.T) {
	assert.Equal(t, "NVDA", baseConfig("NVDA").Label())
	cfg := baseConfig("NVDA", "AAPL")
	cfg.Weights = Weights{0.6, 0.4}
	assert.Equal(t, "NVDA 60%, AAPL 40%", cfg.Label())
}
