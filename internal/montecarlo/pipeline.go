package montecarlo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"montecarloBot/internal/logger"
)

// PriceSource supplies historical prices for the run window. Implementations
// return errors wrapping ErrDataUnavailable when a symbol has no usable history.
type PriceSource interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error)
	FetchPortfolio(ctx context.Context, symbols []string, start, end time.Time) ([]PriceSeries, error)
}

// RunConfig fully describes one simulation run. It is passed by value and never
// modified by the pipeline.
type RunConfig struct {
	Symbols        []string
	Weights        Weights
	Start          time.Time
	End            time.Time
	NumSimulations int
	NumDays        int
	Seed           uint64
}

// IsPortfolio reports whether the run blends several assets.
func (c RunConfig) IsPortfolio() bool {
	return len(c.Symbols) > 1 || len(c.Weights) > 0
}

// Label is a short human readable name for the simulated instrument.
func (c RunConfig) Label() string {
	if !c.IsPortfolio() {
		return strings.Join(c.Symbols, "")
	}
	parts := make([]string, len(c.Symbols))
	for i, s := range c.Symbols {
		w := 0.0
		if i < len(c.Weights) {
			w = c.Weights[i]
		}
		parts[i] = fmt.Sprintf("%s %.0f%%", s, w*100)
	}
	return strings.Join(parts, ", ")
}

// Validate checks the configuration before any data is fetched.
func (c RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", ErrInvalidParameter)
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty symbol", ErrInvalidParameter)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidParameter, s)
		}
		seen[s] = true
	}
	if c.IsPortfolio() {
		if err := c.Weights.Validate(len(c.Symbols)); err != nil {
			return err
		}
	}
	if c.Start.IsZero() || c.End.IsZero() || !c.End.After(c.Start) {
		return fmt.Errorf("%w: window %s..%s", ErrInvalidParameter,
			c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
	}
	if c.NumSimulations < 1 || c.NumDays < 1 {
		return fmt.Errorf("%w: simulations=%d days=%d", ErrInvalidParameter, c.NumSimulations, c.NumDays)
	}
	return nil
}

// Result is everything a run produced. Sinks read it after Run returns.
type Result struct {
	Config      RunConfig
	History     []PriceSeries
	Portfolio   *Portfolio
	Returns     ReturnSeries
	Params      EstimatedParameters
	StartPrice  float64
	Summary     SummaryTable
	Correlation *mat.SymDense
	Elapsed     time.Duration
}

// Pipeline wires a price source to the estimator, simulator and reporter.
type Pipeline struct {
	source PriceSource
	sim    *Simulator
	log    *logger.Logger
	align  func([]PriceSeries) []PriceSeries
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithAlignment transforms fetched portfolio series before aggregation,
// e.g. to intersect their date grids.
func WithAlignment(fn func([]PriceSeries) []PriceSeries) PipelineOption {
	return func(p *Pipeline) { p.align = fn }
}

func NewPipeline(source PriceSource, sim *Simulator, log *logger.Logger, opts ...PipelineOption) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	p := &Pipeline{source: source, sim: sim, log: log.Named("pipeline")}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes fetch, estimate, simulate and summarize for cfg. It either
// returns a complete Result or an error; nothing is written anywhere.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	began := time.Now()
	res := &Result{Config: cfg}

	if cfg.IsPortfolio() {
		series, err := p.source.FetchPortfolio(ctx, cfg.Symbols, cfg.Start, cfg.End)
		if err != nil {
			return nil, err
		}
		if p.align != nil {
			series = p.align(series)
		}
		port, err := Aggregate(series, cfg.Weights)
		if err != nil {
			return nil, err
		}
		res.History = series
		res.Portfolio = &port
		res.Returns = port.Returns
		res.StartPrice = port.LastPrice
		res.Correlation = port.Correlation()
	} else {
		series, err := p.source.FetchHistory(ctx, cfg.Symbols[0], cfg.Start, cfg.End)
		if err != nil {
			return nil, err
		}
		if err := series.Validate(); err != nil {
			return nil, err
		}
		r, err := DailyReturns(series.Prices)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", series.Symbol, err)
		}
		res.History = []PriceSeries{series}
		res.Returns = r
		res.StartPrice = series.Last()
	}

	params, err := Estimate(res.Returns)
	if err != nil {
		return nil, err
	}
	res.Params = params
	p.log.Infow("parameters estimated",
		"instrument", cfg.Label(),
		"observations", len(res.Returns),
		"mean_daily_return", params.MeanDailyReturn,
		"volatility", params.Volatility)

	ens, err := p.sim.Simulate(ctx, params, res.StartPrice, cfg.NumSimulations, cfg.NumDays,
		PCGGenerator{Seed: cfg.Seed})
	if err != nil {
		return nil, err
	}
	res.Summary = Summarize(ens)
	res.Elapsed = time.Since(began)

	final := res.Summary.Final()
	p.log.Infow("simulation finished",
		"instrument", cfg.Label(),
		"paths", cfg.NumSimulations,
		"days", cfg.NumDays,
		"seed", cfg.Seed,
		"final_mean", final.MeanPrice,
		"elapsed", res.Elapsed)
	return res, nil
}
