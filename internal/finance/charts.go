package finance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vicanso/go-charts/v2"
	"gonum.org/v1/gonum/mat"

	"montecarloBot/internal/montecarlo"
)

// ChartOptions controls rendered image size and how many paths are drawn.
type ChartOptions struct {
	Width    int
	Height   int
	MaxPaths int
}

// DefaultChartOptions matches the size of the bot's other charts.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 900, Height: 500, MaxPaths: 50}
}

func (o ChartOptions) size() charts.OptionFunc {
	return func(opt *charts.ChartOption) {
		if o.Width > 0 {
			opt.Width = o.Width
		}
		if o.Height > 0 {
			opt.Height = o.Height
		}
	}
}

// RenderPaths draws up to opts.MaxPaths simulated paths.
func RenderPaths(name string, e *montecarlo.Ensemble, opts ChartOptions) ([]byte, error) {
	if e == nil {
		return nil, errors.New("no ensemble")
	}
	days, sims := e.Dims()
	n := sims
	if opts.MaxPaths > 0 && n > opts.MaxPaths {
		n = opts.MaxPaths
	}
	values := make([][]float64, n)
	for j := range values {
		values[j] = e.Path(j)
	}
	yMin, yMax := paddedRange(values...)

	subtitle := fmt.Sprintf("%d of %d paths • %d trading days", n, sims, days)
	p, err := charts.LineRender(values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Monte Carlo Simulation - %s Price Scenarios", name), subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: dayLabels(days), BoundaryGap: charts.FalseFlag(), SplitNumber: splitFor(days)}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		opts.size(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render paths chart: %w", err)
	}
	return p.Bytes()
}

// RenderBands draws the daily mean with its 5th and 95th percentile band.
func RenderBands(name string, t montecarlo.SummaryTable, opts ChartOptions) ([]byte, error) {
	if len(t.Rows) == 0 {
		return nil, errors.New("empty summary")
	}
	mean := make([]float64, len(t.Rows))
	p5 := make([]float64, len(t.Rows))
	p95 := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		mean[i], p5[i], p95[i] = r.MeanPrice, r.P5, r.P95
	}
	yMin, yMax := paddedRange(p5, p95)
	names := []string{"Mean", "5th Percentile", "95th Percentile"}

	final := t.Final()
	subtitle := fmt.Sprintf("Day %d: mean %.2f • 90%% band %.2f - %.2f", final.Day, final.MeanPrice, final.P5, final.P95)
	p, err := charts.LineRender([][]float64{mean, p5, p95},
		charts.TitleTextOptionFunc(fmt.Sprintf("Monte Carlo Simulation - %s with Confidence Intervals", name), subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: dayLabels(len(t.Rows)), BoundaryGap: charts.FalseFlag(), SplitNumber: splitFor(len(t.Rows))}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		opts.size(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render bands chart: %w", err)
	}
	return p.Bytes()
}

// RenderHistory draws the estimation window. Several series are indexed to
// 100 at their first observation so they share one axis.
func RenderHistory(series []montecarlo.PriceSeries, opts ChartOptions) ([]byte, error) {
	if len(series) == 0 || series[0].Len() < 2 {
		return nil, errors.New("not enough data points")
	}
	values := make([][]float64, len(series))
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Symbol
		if len(series) == 1 {
			values[i] = s.Prices
			continue
		}
		base := s.Prices[0]
		values[i] = make([]float64, s.Len())
		for k, v := range s.Prices {
			values[i][k] = v / base * 100
		}
	}

	base := series[0]
	labels := make([]string, base.Len())
	for i, ts := range base.Timestamps {
		if base.Len() <= 60 {
			labels[i] = ts.Format("Jan 02")
		} else {
			labels[i] = ts.Format("Jan '06")
		}
	}
	yMin, yMax := paddedRange(values...)

	title := strings.Join(names, ", ") + " • 1D"
	subtitle := base.Timestamps[0].Format("2006-01-02") + " - " + base.Timestamps[base.Len()-1].Format("2006-01-02")
	if len(series) > 1 {
		subtitle += " • indexed to 100"
	}
	fns := []charts.OptionFunc{
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: splitFor(len(labels))}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		opts.size(),
	}
	if len(series) > 1 {
		fns = append(fns, charts.LegendOptionFunc(charts.LegendOption{Data: names}))
	}
	p, err := charts.LineRender(values, fns...)
	if err != nil {
		return nil, fmt.Errorf("failed to render history chart: %w", err)
	}
	return p.Bytes()
}

// RenderCorrelation renders the asset return correlation matrix as a table.
func RenderCorrelation(symbols []string, corr *mat.SymDense) ([]byte, error) {
	if corr == nil || corr.SymmetricDim() != len(symbols) {
		return nil, errors.New("correlation matrix does not match symbols")
	}
	header := append([]string{""}, symbols...)
	data := CorrelationRows(symbols, corr)
	p, err := charts.TableRender(header, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render correlation table: %w", err)
	}
	return p.Bytes()
}

// CorrelationRows formats the matrix with one row per symbol, two decimals.
func CorrelationRows(symbols []string, corr *mat.SymDense) [][]string {
	rows := make([][]string, len(symbols))
	for i, s := range symbols {
		row := []string{s}
		for j := range symbols {
			v := corr.At(i, j)
			if math.IsNaN(v) {
				row = append(row, "n/a")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		}
		rows[i] = row
	}
	return rows
}

func dayLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func splitFor(n int) int {
	switch {
	case n <= 10:
		return n
	case n <= 30:
		return max(n/3, 3)
	default:
		return 10
	}
}

// paddedRange returns a y-axis range around all values with 5% padding.
func paddedRange(series ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad < hi*0.002 {
		pad = hi * 0.002
	}
	lo -= pad
	if lo < 0 {
		lo = 0
	}
	return lo, hi + pad
}
