package finance

import (
	"math"
	"time"

	"montecarloBot/internal/montecarlo"
)

// toSeries turns a Yahoo result into a daily PriceSeries inside [start, end).
// Adjusted closes are preferred over raw closes. Null, non-finite and
// non-positive points are dropped, bars are keyed by exchange-local calendar
// date and a repeated date keeps the later bar.
func toSeries(symbol string, res yahooChartResult, start, end time.Time) montecarlo.PriceSeries {
	closes := pickCloses(res, len(res.Timestamp))
	first, last := dayOf(start), dayOf(end)

	out := montecarlo.PriceSeries{Symbol: symbol}
	n := min(len(res.Timestamp), len(closes))
	for i := 0; i < n; i++ {
		c := closes[i]
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) || *c <= 0 {
			continue
		}
		d := dayOf(time.Unix(res.Timestamp[i]+res.Meta.GmtOffset, 0).UTC())
		if d.Before(first) || !d.Before(last) {
			continue
		}
		if k := len(out.Timestamps); k > 0 {
			prev := out.Timestamps[k-1]
			if d.Equal(prev) {
				out.Prices[k-1] = *c
				continue
			}
			if d.Before(prev) {
				continue
			}
		}
		out.Timestamps = append(out.Timestamps, d)
		out.Prices = append(out.Prices, *c)
	}
	return out
}

func pickCloses(res yahooChartResult, n int) []*float64 {
	if adj := res.Indicators.AdjClose; len(adj) > 0 && len(adj[0].AdjClose) == n && n > 0 {
		return adj[0].AdjClose
	}
	if q := res.Indicators.Quote; len(q) > 0 {
		return q[0].Close
	}
	return nil
}

// dayOf truncates t to its calendar date in UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
