package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// NormalSource yields standard-normal variates. *rand.Rand satisfies it.
type NormalSource interface {
	NormFloat64() float64
}

// Generator hands out the random stream used for one simulated path.
type Generator interface {
	Stream(path int) NormalSource
}

// PCGGenerator gives every path its own PCG stream keyed by (Seed, path), so
// the ensemble does not depend on how paths are split across workers.
type PCGGenerator struct {
	Seed uint64
}

func (g PCGGenerator) Stream(path int) NormalSource {
	return rand.New(rand.NewPCG(g.Seed, uint64(path)))
}

// SharedStream draws every path from one source in path order, day by day.
// Simulations using it always run on a single worker.
type SharedStream struct {
	Source NormalSource
}

func (s SharedStream) Stream(int) NormalSource { return s.Source }

// Options bound the resources used by a Simulator.
type Options struct {
	// Workers is the number of goroutines filling path columns.
	// Zero means GOMAXPROCS.
	Workers int
	// MaxCells caps num_days*num_simulations. Zero disables the cap.
	MaxCells int
}

// Simulator generates GBM path ensembles.
type Simulator struct {
	opts Options
}

func NewSimulator(opts Options) *Simulator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{opts: opts}
}

// Simulate produces a [numDays, numSimulations] ensemble of prices starting
// from s0. Day t of path j is s0*exp(Σ_{k<=t} r[k,j]) with
// r = drift*dt + vol*sqrt(dt)*z.
func (s *Simulator) Simulate(ctx context.Context, params EstimatedParameters, s0 float64,
	numSimulations, numDays int, gen Generator) (*Ensemble, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !finite(s0) || s0 <= 0 {
		return nil, fmt.Errorf("%w: start price %v", ErrInvalidParameter, s0)
	}
	if numSimulations < 1 || numDays < 1 {
		return nil, fmt.Errorf("%w: simulations=%d days=%d", ErrInvalidParameter, numSimulations, numDays)
	}
	if s.opts.MaxCells > 0 && numSimulations > s.opts.MaxCells/numDays {
		return nil, fmt.Errorf("%w: %d days x %d simulations exceeds %d cells",
			ErrInvalidParameter, numDays, numSimulations, s.opts.MaxCells)
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: nil generator", ErrInvalidParameter)
	}

	dt := 1.0 / TradingDaysPerYear
	driftDt, volSqrtDt := params.Drift*dt, params.Volatility*math.Sqrt(dt)
	m := mat.NewDense(numDays, numSimulations, nil)

	workers := s.opts.Workers
	if _, shared := gen.(SharedStream); shared {
		workers = 1
	}
	if workers > numSimulations {
		workers = numSimulations
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (numSimulations + workers - 1) / workers
	for lo := 0; lo < numSimulations; lo += chunk {
		hi := min(lo+chunk, numSimulations)
		g.Go(func() error {
			col := make([]float64, numDays)
			for j := lo; j < hi; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				fillPath(col, s0, gen.Stream(j), driftDt, volSqrtDt)
				m.SetCol(j, col)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	return &Ensemble{m: m}, nil
}

// fillPath writes one path into col using a running cumulative log-return.
func fillPath(col []float64, s0 float64, src NormalSource, driftDt, volSqrtDt float64) {
	cum := 0.0
	for t := range col {
		cum += driftDt + volSqrtDt*src.NormFloat64()
		col[t] = s0 * math.Exp(cum)
	}
}

// Ensemble is a read-only [days, simulations] matrix of simulated prices.
// Row t is day t+1; column j is path j.
type Ensemble struct {
	m *mat.Dense
}

// NewEnsemble copies a day-major matrix into an Ensemble.
func NewEnsemble(days [][]float64) (*Ensemble, error) {
	if len(days) == 0 || len(days[0]) == 0 {
		return nil, fmt.Errorf("%w: empty ensemble", ErrInvalidParameter)
	}
	sims := len(days[0])
	m := mat.NewDense(len(days), sims, nil)
	for t, row := range days {
		if len(row) != sims {
			return nil, fmt.Errorf("%w: ragged ensemble row %d", ErrInvalidParameter, t)
		}
		m.SetRow(t, row)
	}
	return &Ensemble{m: m}, nil
}

// Dims returns (numDays, numSimulations).
func (e *Ensemble) Dims() (int, int) { return e.m.Dims() }

// At returns the price of path j on day t+1.
func (e *Ensemble) At(t, j int) float64 { return e.m.At(t, j) }

// Day returns a copy of the cross-section for day t+1.
func (e *Ensemble) Day(t int) []float64 {
	return mat.Row(nil, t, e.m)
}

// Path returns a copy of path j.
func (e *Ensemble) Path(j int) []float64 {
	return mat.Col(nil, j, e.m)
}

// Matrix exposes the ensemble as a read-only gonum matrix.
func (e *Ensemble) Matrix() mat.Matrix { return e.m }
