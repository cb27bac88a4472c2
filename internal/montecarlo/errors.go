package montecarlo

import "errors"

// Sentinel errors returned by the simulation pipeline. Callers match them with
// errors.Is. Every returned error wraps exactly one of these, except context
// cancellation and deadline errors, which match context.Canceled or
// context.DeadlineExceeded.
var (
	// ErrDataUnavailable indicates the price source had no usable history.
	ErrDataUnavailable = errors.New("montecarlo: price history unavailable")

	// ErrInsufficientData indicates fewer than two return observations.
	ErrInsufficientData = errors.New("montecarlo: insufficient data")

	// ErrMisalignedSeries indicates portfolio inputs with differing date grids.
	ErrMisalignedSeries = errors.New("montecarlo: misaligned price series")

	// ErrInvalidWeights indicates weights that are negative, non-finite,
	// of the wrong length, or do not sum to one.
	ErrInvalidWeights = errors.New("montecarlo: invalid weights")

	// ErrInvalidParameter indicates a non-finite or out-of-domain numeric input.
	ErrInvalidParameter = errors.New("montecarlo: invalid parameter")
)
