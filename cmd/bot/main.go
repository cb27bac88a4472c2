package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"montecarloBot/internal/config"
	"montecarloBot/internal/finance"
	"montecarloBot/internal/logger"
	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/openai"
	"montecarloBot/internal/server"
	"montecarloBot/internal/storage"
	"montecarloBot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Environment, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Sync()

	if err := cfg.ValidateBot(); err != nil {
		log.Fatalw("invalid bot configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.Storage.DBPath + "?_fk=1")
	if err != nil {
		log.Fatalw("db: open failed", "error", err)
	}
	defer db.Close()
	if err := storage.InitSchema(ctx, db); err != nil {
		log.Fatalw("db: schema failed", "error", err)
	}
	log.Infow("db: opened sqlite", "path", cfg.Storage.DBPath)

	yahoo := finance.NewYahooClient(cfg.YahooClientConfig(), log)
	sim := montecarlo.NewSimulator(montecarlo.Options{
		Workers:  cfg.Simulation.Workers,
		MaxCells: cfg.Simulation.MaxCells,
	})
	// chat users mix exchanges freely, so portfolio histories are intersected
	pipe := montecarlo.NewPipeline(yahoo, sim, log, montecarlo.WithAlignment(finance.AlignIntersect))

	deps := telegram.Deps{
		Runner:  pipe,
		History: storage.NewRunStore(db, log),
		Defaults: telegram.Defaults{
			Simulations: cfg.Simulation.DefaultSimulations,
			Days:        cfg.Simulation.DefaultDays,
			Window:      cfg.Simulation.DefaultWindow,
			MaxCells:    cfg.Simulation.MaxCells,
		},
		Charts: cfg.ChartOptions(),
	}
	if cfg.OpenAI.APIKey != "" {
		deps.Narrator = openai.NewNarrator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Infow("openai: no api key, commentary disabled")
	}

	tg, err := telegram.NewBot(ctx, cfg.Telegram.Token, cfg.Telegram.WebhookPublicURL, deps, log)
	if err != nil {
		log.Fatalw("telegram: init failed", "error", err)
	}

	mux := server.NewHTTPMux(tg.WebhookHandler) // registers /telegram/webhook
	if err := server.ListenAndServe(ctx, ":"+cfg.Server.Port, mux, log); err != nil {
		log.Errorw("server error", "error", err)
		stop()
		tg.Wait()
		os.Exit(1)
	}
	tg.Wait()
	log.Infow("bot stopped")
}
