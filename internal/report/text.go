package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"montecarloBot/internal/montecarlo"
)

// Money formats a price with two decimals and a dollar sign.
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Change formats the relative move from start to end as a signed percentage.
func Change(start, end float64) string {
	if start == 0 {
		return "n/a"
	}
	pct := decimal.NewFromFloat(end).Sub(decimal.NewFromFloat(start)).
		Div(decimal.NewFromFloat(start)).
		Mul(decimal.NewFromInt(100))
	s := pct.StringFixed(1) + "%"
	if pct.IsPositive() {
		s = "+" + s
	}
	return s
}

// Caption is the short text sent with the band chart.
func Caption(res *montecarlo.Result) string {
	cfg := res.Config
	final := res.Summary.Final()

	var b strings.Builder
	fmt.Fprintf(&b, "%s • %d paths × %d days\n", cfg.Label(), cfg.NumSimulations, cfg.NumDays)
	fmt.Fprintf(&b, "Window: %s → %s\n", cfg.Start.Format("2006-01-02"), cfg.End.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Fprintf(&b, "Start: %s\n", Money(res.StartPrice))
	fmt.Fprintf(&b, "Day %d mean: %s (%s)\n", final.Day, Money(final.MeanPrice), Change(res.StartPrice, final.MeanPrice))
	fmt.Fprintf(&b, "90%% band: %s - %s\n", Money(final.P5), Money(final.P95))
	b.WriteString(res.Params.String())
	return b.String()
}

// WriteTable prints every step-th day of the summary plus the final day.
func WriteTable(w io.Writer, t montecarlo.SummaryTable, step int) error {
	if step < 1 {
		step = 1
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Day\tMean\t5th\t95th\t")
	for i, r := range t.Rows {
		if i%step != 0 && i != len(t.Rows)-1 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t\n", r.Day, r.MeanPrice, r.P5, r.P95)
	}
	return tw.Flush()
}

// WriteParameters prints the estimated parameters the way the run log reports them.
func WriteParameters(w io.Writer, label string, p montecarlo.EstimatedParameters) error {
	_, err := fmt.Fprintf(w, "%s\nMean Daily Return: %.6f\nVolatility: %.6f\nDrift: %.6f\n",
		label, p.MeanDailyReturn, p.Volatility, p.Drift)
	return err
}
