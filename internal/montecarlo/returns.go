package montecarlo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear sets the simulation time step dt = 1/TradingDaysPerYear.
	TradingDaysPerYear = 252

	// VolatilitySpan is the span of the exponentially weighted volatility.
	VolatilitySpan = 30
)

// DailyReturns converts prices into simple daily returns.
func DailyReturns(prices []float64) (ReturnSeries, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", ErrInsufficientData, len(prices))
	}
	for i, p := range prices {
		if !finite(p) || p <= 0 {
			return nil, fmt.Errorf("%w: price %d is %v", ErrInvalidParameter, i, p)
		}
	}
	out := make(ReturnSeries, len(prices)-1)
	for t := 1; t < len(prices); t++ {
		out[t-1] = prices[t]/prices[t-1] - 1
	}
	return out, nil
}

// Estimate derives GBM parameters from a return series: the arithmetic mean,
// the latest exponentially weighted standard deviation and the Itô-corrected
// drift.
func Estimate(returns ReturnSeries) (EstimatedParameters, error) {
	if len(returns) < 2 {
		return EstimatedParameters{}, fmt.Errorf("%w: need at least 2 returns, got %d",
			ErrInsufficientData, len(returns))
	}
	for i, r := range returns {
		if !finite(r) {
			return EstimatedParameters{}, fmt.Errorf("%w: return %d is %v", ErrInvalidParameter, i, r)
		}
	}

	mean := stat.Mean(returns, nil)
	vol := ewmStd(returns, VolatilitySpan)
	if math.IsNaN(vol) {
		return EstimatedParameters{}, fmt.Errorf("%w: volatility undefined", ErrInsufficientData)
	}
	return EstimatedParameters{
		MeanDailyReturn: mean,
		Volatility:      vol,
		Drift:           mean - 0.5*vol*vol,
	}, nil
}

// ewmStd returns the last value of the recursive exponentially weighted
// standard deviation with smoothing factor 2/(span+1). Weights are renormalised
// after every step and the variance carries the unbiased correction
// (Σw)² / ((Σw)² - Σw²), which is undefined for a single observation.
func ewmStd(x []float64, span int) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	alpha := 2 / (float64(span) + 1)
	decay := 1 - alpha

	mean := x[0]
	cov := 0.0
	sumW, sumW2, oldW := 1.0, 1.0, 1.0
	for _, cur := range x[1:] {
		sumW *= decay
		sumW2 *= decay * decay
		oldW *= decay

		oldMean := mean
		if mean != cur {
			mean = (oldW*oldMean + alpha*cur) / (oldW + alpha)
		}
		cov = (oldW*(cov+(oldMean-mean)*(oldMean-mean)) + alpha*(cur-mean)*(cur-mean)) / (oldW + alpha)

		sumW += alpha
		sumW2 += alpha * alpha
		oldW += alpha

		sumW /= oldW
		sumW2 /= oldW * oldW
		oldW = 1
	}

	num := sumW * sumW
	den := num - sumW2
	if den <= 0 {
		return math.NaN()
	}
	v := num / den * cov
	if v < 0 {
		// rounding on constant input
		v = 0
	}
	return math.Sqrt(v)
}
