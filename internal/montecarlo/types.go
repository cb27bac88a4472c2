package montecarlo

import (
	"fmt"
	"math"
	"time"
)

// PriceSeries is the observed history of one instrument. Timestamps are
// strictly increasing and line up one-to-one with Prices.
type PriceSeries struct {
	Symbol     string
	Timestamps []time.Time
	Prices     []float64
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.Prices) }

// Last returns the most recent observed price.
func (s PriceSeries) Last() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	return s.Prices[len(s.Prices)-1]
}

// Validate checks the structural invariants of the series.
func (s PriceSeries) Validate() error {
	if len(s.Timestamps) != len(s.Prices) {
		return fmt.Errorf("%w: %s has %d timestamps but %d prices",
			ErrInvalidParameter, s.Symbol, len(s.Timestamps), len(s.Prices))
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return fmt.Errorf("%w: %s timestamps not strictly increasing at index %d",
				ErrInvalidParameter, s.Symbol, i)
		}
	}
	return nil
}

// ReturnSeries holds simple daily returns p[t]/p[t-1] - 1.
type ReturnSeries []float64

// EstimatedParameters are the GBM inputs derived from a return series.
type EstimatedParameters struct {
	MeanDailyReturn float64
	Volatility      float64
	Drift           float64
}

func (p EstimatedParameters) String() string {
	return fmt.Sprintf("Mean Daily Return: %.6f, Volatility: %.6f, Drift: %.6f",
		p.MeanDailyReturn, p.Volatility, p.Drift)
}

// Validate rejects parameters the simulator cannot use.
func (p EstimatedParameters) Validate() error {
	if !finite(p.Volatility) || !finite(p.Drift) {
		return fmt.Errorf("%w: volatility=%v drift=%v", ErrInvalidParameter, p.Volatility, p.Drift)
	}
	if p.Volatility < 0 {
		return fmt.Errorf("%w: negative volatility %v", ErrInvalidParameter, p.Volatility)
	}
	return nil
}

// Weights are portfolio allocations, one per asset.
type Weights []float64

// WeightTolerance is the allowed deviation of the weight sum from one.
const WeightTolerance = 1e-6

// Validate checks that the weights are usable for n assets.
func (w Weights) Validate(n int) error {
	if len(w) != n {
		return fmt.Errorf("%w: got %d weights for %d assets", ErrInvalidWeights, len(w), n)
	}
	sum := 0.0
	for i, v := range w {
		if !finite(v) {
			return fmt.Errorf("%w: weight %d is not finite", ErrInvalidWeights, i)
		}
		if v < 0 {
			return fmt.Errorf("%w: weight %d is negative (%v)", ErrInvalidWeights, i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
