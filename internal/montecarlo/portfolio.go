package montecarlo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Portfolio is a weighted blend of aligned assets reduced to a single return
// series and starting price.
type Portfolio struct {
	Symbols      []string
	Weights      Weights
	Returns      ReturnSeries
	AssetReturns []ReturnSeries
	LastPrice    float64
}

// Aggregate blends aligned price series into one portfolio return series.
// The blend is the weighted sum of simple returns and the starting price is the
// weighted sum of the last observed prices. Weights and date grids are checked
// before any return is computed.
func Aggregate(series []PriceSeries, weights Weights) (Portfolio, error) {
	if len(series) == 0 {
		return Portfolio{}, fmt.Errorf("%w: no assets", ErrDataUnavailable)
	}
	if err := weights.Validate(len(series)); err != nil {
		return Portfolio{}, err
	}
	if err := checkAligned(series); err != nil {
		return Portfolio{}, err
	}

	assetReturns := make([]ReturnSeries, len(series))
	for i, s := range series {
		r, err := DailyReturns(s.Prices)
		if err != nil {
			return Portfolio{}, fmt.Errorf("%s: %w", s.Symbol, err)
		}
		assetReturns[i] = r
	}

	blended := make(ReturnSeries, len(assetReturns[0]))
	for t := range blended {
		sum := 0.0
		for i, r := range assetReturns {
			sum += weights[i] * r[t]
		}
		blended[t] = sum
	}

	last := 0.0
	symbols := make([]string, len(series))
	for i, s := range series {
		last += weights[i] * s.Last()
		symbols[i] = s.Symbol
	}

	return Portfolio{
		Symbols:      symbols,
		Weights:      append(Weights(nil), weights...),
		Returns:      blended,
		AssetReturns: assetReturns,
		LastPrice:    last,
	}, nil
}

func checkAligned(series []PriceSeries) error {
	base := series[0]
	if err := base.Validate(); err != nil {
		return err
	}
	for _, s := range series[1:] {
		if err := s.Validate(); err != nil {
			return err
		}
		if len(s.Timestamps) != len(base.Timestamps) {
			return fmt.Errorf("%w: %s has %d observations, %s has %d",
				ErrMisalignedSeries, s.Symbol, len(s.Timestamps), base.Symbol, len(base.Timestamps))
		}
		for t := range s.Timestamps {
			if !s.Timestamps[t].Equal(base.Timestamps[t]) {
				return fmt.Errorf("%w: %s and %s differ at %s",
					ErrMisalignedSeries, s.Symbol, base.Symbol, base.Timestamps[t].Format("2006-01-02"))
			}
		}
	}
	return nil
}

// Correlation returns the Pearson correlation matrix of the per-asset returns.
func (p Portfolio) Correlation() *mat.SymDense {
	n := len(p.AssetReturns)
	if n == 0 {
		return nil
	}
	obs := len(p.AssetReturns[0])
	x := mat.NewDense(obs, n, nil)
	for i, r := range p.AssetReturns {
		x.SetCol(i, r)
	}
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, x, nil)
	return corr
}
