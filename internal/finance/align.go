package finance

import (
	"slices"
	"time"

	"montecarloBot/internal/montecarlo"
)

// AlignIntersect restricts every series to the dates present in all of them.
// Exchanges with different holiday calendars otherwise fail the strict grid
// check of the portfolio aggregator.
func AlignIntersect(series []montecarlo.PriceSeries) []montecarlo.PriceSeries {
	if len(series) < 2 {
		return series
	}
	count := map[int64]int{}
	for _, s := range series {
		for _, t := range s.Timestamps {
			count[t.Unix()]++
		}
	}
	common := make([]int64, 0, len(count))
	for t, c := range count {
		if c == len(series) {
			common = append(common, t)
		}
	}
	slices.Sort(common)

	out := make([]montecarlo.PriceSeries, len(series))
	for i, s := range series {
		byTime := make(map[int64]float64, len(s.Timestamps))
		for k, t := range s.Timestamps {
			byTime[t.Unix()] = s.Prices[k]
		}
		aligned := montecarlo.PriceSeries{
			Symbol:     s.Symbol,
			Timestamps: make([]time.Time, len(common)),
			Prices:     make([]float64, len(common)),
		}
		for k, t := range common {
			aligned.Timestamps[k] = time.Unix(t, 0).UTC()
			aligned.Prices[k] = byTime[t]
		}
		out[i] = aligned
	}
	return out
}
