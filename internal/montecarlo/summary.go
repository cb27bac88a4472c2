package montecarlo

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DaySummary is the cross-sectional reduction of one simulated day.
type DaySummary struct {
	Day       int
	MeanPrice float64
	P5        float64
	P95       float64
}

// SummaryTable holds one DaySummary per simulated day in ascending order,
// together with the ensemble it was computed from.
type SummaryTable struct {
	Rows     []DaySummary
	Ensemble *Ensemble
}

// Summarize reduces each day of the ensemble to its mean and 5th/95th
// percentiles. The ensemble is not modified.
func Summarize(e *Ensemble) SummaryTable {
	days, _ := e.Dims()
	rows := make([]DaySummary, days)
	for t := 0; t < days; t++ {
		vals := e.Day(t)
		mean := stat.Mean(vals, nil)
		sort.Float64s(vals)
		rows[t] = DaySummary{
			Day:       t + 1,
			MeanPrice: mean,
			P5:        Percentile(vals, 0.05),
			P95:       Percentile(vals, 0.95),
		}
	}
	return SummaryTable{Rows: rows, Ensemble: e}
}

// Percentile interpolates linearly between the order statistics of sorted at
// position p*(n-1), with p in [0,1].
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Final returns the summary of the last simulated day.
func (t SummaryTable) Final() DaySummary {
	if len(t.Rows) == 0 {
		return DaySummary{}
	}
	return t.Rows[len(t.Rows)-1]
}
