package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "montecarlo_runs_total",
			Help: "Simulation runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "montecarlo_run_duration_seconds",
			Help:    "Wall time of a full simulation run including the price fetch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"mode"},
	)

	EnsembleCells = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "montecarlo_last_ensemble_cells",
			Help: "num_days*num_simulations of the most recent run",
		},
	)

	YahooRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "montecarlo_yahoo_requests_total",
			Help: "Yahoo Finance requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	BotCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "montecarlo_bot_commands_total",
			Help: "Telegram commands handled",
		},
		[]string{"command"},
	)
)

// ObserveRun records the outcome of one simulation run.
func ObserveRun(mode string, err error, elapsed time.Duration, cells int) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RunsTotal.WithLabelValues(mode, outcome).Inc()
	RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err == nil {
		EnsembleCells.Set(float64(cells))
	}
}
