package finance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"montecarloBot/internal/montecarlo"
)

// HistoryStats summarises the realised behaviour of the estimation window.
// Percentages are expressed as percent, not fractions.
type HistoryStats struct {
	TotalReturn  float64
	AnnualReturn float64
	Volatility   float64 // annualised, sample std of daily returns
	SharpeRatio  float64 // risk-free rate assumed to be 0
	MaxDrawdown  float64
	NumDays      int
}

func (s HistoryStats) String() string {
	return fmt.Sprintf("Return: %.2f%% | Sharpe: %.2f | Vol: %.2f%% | MaxDD: %.2f%%",
		s.TotalReturn, s.SharpeRatio, s.Volatility, s.MaxDrawdown)
}

// ValueIndex compounds returns into a value path starting at 100.
func ValueIndex(returns montecarlo.ReturnSeries) []float64 {
	out := make([]float64, len(returns)+1)
	out[0] = 100
	for i, r := range returns {
		out[i+1] = out[i] * (1 + r)
	}
	return out
}

// CalculateHistoryStats computes realised statistics for a value path using
// 252 trading days per year and geometric annualisation.
func CalculateHistoryStats(values []float64) (HistoryStats, error) {
	returns, err := montecarlo.DailyReturns(values)
	if err != nil {
		return HistoryStats{}, err
	}
	if len(returns) < 2 {
		return HistoryStats{}, fmt.Errorf("%w: need at least 2 return observations for statistics",
			montecarlo.ErrInsufficientData)
	}

	initial, final := values[0], values[len(values)-1]
	years := float64(len(returns)) / montecarlo.TradingDaysPerYear
	annualReturn := math.Pow(final/initial, 1/years) - 1
	annualVol := stat.StdDev(returns, nil) * math.Sqrt(montecarlo.TradingDaysPerYear)

	sharpe := 0.0
	if annualVol > 0 {
		sharpe = annualReturn / annualVol
	}

	s := HistoryStats{
		TotalReturn:  (final - initial) / initial * 100,
		AnnualReturn: annualReturn * 100,
		Volatility:   annualVol * 100,
		SharpeRatio:  sharpe,
		MaxDrawdown:  maxDrawdown(values) * 100,
		NumDays:      len(values),
	}
	for _, v := range []float64{s.TotalReturn, s.AnnualReturn, s.Volatility, s.SharpeRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return HistoryStats{}, fmt.Errorf("%w: non-finite history statistic", montecarlo.ErrInvalidParameter)
		}
	}
	return s, nil
}

// maxDrawdown is the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	worst := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-v)/peak)
		}
	}
	return worst
}
