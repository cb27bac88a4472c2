// Package montecarlo projects future prices of a single instrument or a
// weighted portfolio under Geometric Brownian Motion.
//
// A run is a pipeline of pure steps:
//
//	prices -> DailyReturns -> Estimate -> Simulator.Simulate -> Summarize
//
// Portfolio runs insert Aggregate before estimation, blending aligned assets
// into one return series and one starting price.
//
// Estimation uses the arithmetic mean of simple daily returns and the latest
// exponentially weighted standard deviation (span 30). The drift carries the
// Itô correction mean - vol²/2. Simulation advances each path with
// r = drift*dt + vol*sqrt(dt)*z, dt = 1/252, and exponentiates the running sum.
//
// Randomness enters only through a Generator. PCGGenerator derives one stream
// per path from the run seed, so ensembles are bit-identical for a given seed
// whatever the worker count.
//
// All failures wrap one of the package sentinels (ErrDataUnavailable,
// ErrInsufficientData, ErrMisalignedSeries, ErrInvalidWeights,
// ErrInvalidParameter), except a cancelled or expired context, which surfaces
// as context.Canceled or context.DeadlineExceeded. A run never returns a
// partial result.
package montecarlo
