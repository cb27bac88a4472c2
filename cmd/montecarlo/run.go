package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"montecarloBot/internal/finance"
	"montecarloBot/internal/metrics"
	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/openai"
	"montecarloBot/internal/report"
	"montecarloBot/internal/storage"
)

const defaultCSV = "monte_carlo_simulation_results.csv"

type runOptions struct {
	symbol   string
	symbols  []string
	weights  []float64
	start    string
	end      string
	window   string
	sims     int
	days     int
	seed     uint64
	out      string
	chartDir string
	workers  int
	db       string
	align    string
	explain  bool
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.StringVar(&o.start, "start", "", "history start date YYYY-MM-DD (with --end)")
	f.StringVar(&o.end, "end", "", "history end date YYYY-MM-DD, exclusive")
	f.StringVar(&o.window, "window", "", "history lookback such as 6m or 2y when no dates are given")
	f.IntVar(&o.sims, "sims", 0, "number of simulated paths (default from config)")
	f.IntVar(&o.days, "days", 0, "number of simulated trading days (default from config)")
	f.Uint64Var(&o.seed, "seed", 0, "random seed (default: time based)")
	f.StringVar(&o.out, "out", defaultCSV, "CSV output path, empty to skip")
	f.StringVar(&o.chartDir, "chart-dir", "", "directory for PNG charts")
	f.IntVar(&o.workers, "workers", 0, "simulation workers (default from config)")
	f.StringVar(&o.db, "db", "", "sqlite run history to append to")
	f.BoolVar(&o.explain, "explain", false, "ask OpenAI for a commentary (needs OPENAI_API_KEY)")
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Simulate one symbol",
		Example: "  montecarlo run --symbol NVDA --start 2020-01-01 --end 2024-02-02 --sims 150 --days 100",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.simulate(cmd, o, []string{strings.ToUpper(o.symbol)}, nil)
		},
	}
	cmd.Flags().StringVar(&o.symbol, "symbol", "NVDA", "ticker symbol")
	addRunFlags(cmd, o)
	return cmd
}

func newPortfolioCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:     "portfolio",
		Short:   "Simulate a weighted portfolio",
		Example: "  montecarlo portfolio --symbols NVDA,AAPL,MSFT --weights 0.4,0.3,0.3 --window 2y",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			symbols := make([]string, len(o.symbols))
			for i, s := range o.symbols {
				symbols[i] = strings.ToUpper(strings.TrimSpace(s))
			}
			return a.simulate(cmd, o, symbols, o.weights)
		},
	}
	cmd.Flags().StringSliceVar(&o.symbols, "symbols", nil, "comma separated ticker symbols")
	cmd.Flags().Float64SliceVar(&o.weights, "weights", nil, "comma separated weights summing to 1")
	cmd.Flags().StringVar(&o.align, "align", "strict", "date grid handling: strict or intersect")
	_ = cmd.MarkFlagRequired("symbols")
	_ = cmd.MarkFlagRequired("weights")
	addRunFlags(cmd, o)
	return cmd
}

func (a *app) simulate(cmd *cobra.Command, o *runOptions, symbols []string, weights []float64) error {
	ctx := cmd.Context()
	start, end, err := a.window(o)
	if err != nil {
		return err
	}
	cfg := montecarlo.RunConfig{
		Symbols:        symbols,
		Weights:        weights,
		Start:          start,
		End:            end,
		NumSimulations: orDefault(o.sims, a.cfg.Simulation.DefaultSimulations),
		NumDays:        orDefault(o.days, a.cfg.Simulation.DefaultDays),
		Seed:           o.seed,
	}
	if !cmd.Flags().Changed("seed") {
		cfg.Seed = uint64(a.now().UnixNano())
	}

	if o.explain && a.cfg.OpenAI.APIKey == "" {
		return errors.New("--explain needs OPENAI_API_KEY")
	}

	var opts []montecarlo.PipelineOption
	switch o.align {
	case "", "strict":
	case "intersect":
		opts = append(opts, montecarlo.WithAlignment(finance.AlignIntersect))
	default:
		return fmt.Errorf("unknown --align %q: use strict or intersect", o.align)
	}
	sim := montecarlo.NewSimulator(montecarlo.Options{
		Workers:  orDefault(o.workers, a.cfg.Simulation.Workers),
		MaxCells: a.cfg.Simulation.MaxCells,
	})
	pipe := montecarlo.NewPipeline(a.source, sim, a.log, opts...)

	mode := "single"
	if cfg.IsPortfolio() {
		mode = "portfolio"
	}
	began := time.Now()
	res, err := pipe.Run(ctx, cfg)
	metrics.ObserveRun(mode, err, time.Since(began), cfg.NumSimulations*cfg.NumDays)
	if err != nil {
		return err
	}
	return a.emit(ctx, o, res)
}

// emit prints the report, then renders every requested sink in memory before
// anything touches disk. If a later sink fails the files already written are
// removed again.
func (a *app) emit(ctx context.Context, o *runOptions, res *montecarlo.Result) error {
	label := res.Config.Label()
	if err := report.WriteParameters(a.out, label, res.Params); err != nil {
		return err
	}
	if stats, err := finance.CalculateHistoryStats(finance.ValueIndex(res.Returns)); err == nil {
		a.printf("History: %s\n", stats)
	}
	if res.Portfolio != nil && res.Correlation != nil {
		a.printf("\nCorrelation of daily returns:\n")
		for _, row := range finance.CorrelationRows(res.Portfolio.Symbols, res.Correlation) {
			a.printf("  %s\n", strings.Join(row, "\t"))
		}
	}
	a.printf("\nSimulation Results (seed %d):\n", res.Config.Seed)
	if err := report.WriteTable(a.out, res.Summary, max(1, res.Config.NumDays/10)); err != nil {
		return err
	}

	var files []outputFile
	if o.out != "" {
		b, err := report.CSVBytes(res.Summary)
		if err != nil {
			return err
		}
		files = append(files, outputFile{path: o.out, data: b})
	}
	if o.chartDir != "" {
		charts, err := a.renderCharts(o.chartDir, res)
		if err != nil {
			return err
		}
		files = append(files, charts...)
	}
	var commentary string
	if o.explain {
		text, err := a.narrator().Explain(ctx, res)
		if err != nil {
			return err
		}
		commentary = text
	}

	written, err := writeAll(files)
	if err != nil {
		removeAll(written)
		return err
	}
	for _, f := range files {
		a.log.Debugw("output written", "path", f.path, "bytes", len(f.data))
	}
	if o.out != "" {
		a.printf("CSV written to %s\n", o.out)
	}
	if o.chartDir != "" {
		a.printf("Charts written to %s\n", o.chartDir)
	}
	if o.db != "" {
		id, err := saveRun(ctx, o.db, res, a)
		if err != nil {
			removeAll(written)
			return err
		}
		a.printf("Run %s saved to %s\n", id, o.db)
	}
	if commentary != "" {
		a.printf("\n%s\n", commentary)
	}
	return nil
}

func (a *app) narrator() explainer {
	if a.explainer != nil {
		return a.explainer
	}
	return openai.NewNarrator(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.Model)
}

type outputFile struct {
	path string
	data []byte
}

func (a *app) renderCharts(dir string, res *montecarlo.Result) ([]outputFile, error) {
	opts := a.cfg.ChartOptions()
	label := res.Config.Label()
	base := strings.Join(res.Config.Symbols, "_")

	renders := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"paths", func() ([]byte, error) { return finance.RenderPaths(label, res.Summary.Ensemble, opts) }},
		{"bands", func() ([]byte, error) { return finance.RenderBands(label, res.Summary, opts) }},
		{"history", func() ([]byte, error) { return finance.RenderHistory(res.History, opts) }},
	}
	if res.Portfolio != nil && res.Correlation != nil {
		renders = append(renders, struct {
			name   string
			render func() ([]byte, error)
		}{"correlation", func() ([]byte, error) {
			return finance.RenderCorrelation(res.Portfolio.Symbols, res.Correlation)
		}})
	}
	out := make([]outputFile, 0, len(renders))
	for _, r := range renders {
		img, err := r.render()
		if err != nil {
			return nil, fmt.Errorf("%s chart: %w", r.name, err)
		}
		out = append(out, outputFile{path: filepath.Join(dir, base+"_"+r.name+".png"), data: img})
	}
	return out, nil
}

// writeAll writes files in order and returns the paths that made it to disk.
func writeAll(files []outputFile) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := report.WriteFile(f.path, f.data); err != nil {
			return written, err
		}
		written = append(written, f.path)
	}
	return written, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func saveRun(ctx context.Context, dsn string, res *montecarlo.Result, a *app) (string, error) {
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	if err := storage.InitSchema(ctx, db); err != nil {
		return "", err
	}
	id, err := storage.NewRunStore(db, a.log).Save(ctx, res, 0)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// window resolves explicit dates or a lookback into [start, end).
func (a *app) window(o *runOptions) (time.Time, time.Time, error) {
	if o.start == "" && o.end == "" {
		w := o.window
		if w == "" {
			w = a.cfg.Simulation.DefaultWindow
		}
		return finance.ParseWindow(w, a.now())
	}
	if o.start == "" || o.end == "" {
		return time.Time{}, time.Time{}, errors.New("--start and --end must be given together")
	}
	if o.window != "" {
		return time.Time{}, time.Time{}, errors.New("--window cannot be combined with --start/--end")
	}
	return finance.ParseWindow(o.start+":"+o.end, a.now())
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
