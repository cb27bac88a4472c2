package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"montecarloBot/internal/config"
	"montecarloBot/internal/finance"
	"montecarloBot/internal/logger"
	"montecarloBot/internal/montecarlo"
)

// app carries what every subcommand needs. Tests preset cfg and source.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	source    montecarlo.PriceSource
	explainer explainer
	now       func() time.Time
	out       io.Writer
}

type explainer interface {
	Explain(ctx context.Context, res *montecarlo.Result) (string, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{now: time.Now, out: os.Stdout}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "montecarlo",
		Short:        "Monte Carlo price simulations from Yahoo Finance history",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(a.out)
	root.AddCommand(newRunCmd(a), newPortfolioCmd(a), newHistoryCmd(a))
	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = &cfg
	}
	if a.log == nil {
		c := a.cfg.Log
		a.log = logger.New(c.Level, a.cfg.Environment, logger.FileConfig{
			Path:       c.File,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
		})
	}
	if a.source == nil {
		a.source = finance.NewYahooClient(a.cfg.YahooClientConfig(), a.log)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
