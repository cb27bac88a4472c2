package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"montecarloBot/internal/logger"
	"montecarloBot/internal/montecarlo"
)

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("storage: run not found")

// Run is one stored simulation run.
type Run struct {
	ID         uuid.UUID
	ChatID     int64
	Config     montecarlo.RunConfig
	Params     montecarlo.EstimatedParameters
	StartPrice float64
	Final      montecarlo.DaySummary
	Elapsed    time.Duration
	CreatedAt  time.Time

	// Days is only filled by Get.
	Days []montecarlo.DaySummary
}

type runRow struct {
	ID              string  `db:"id"`
	ChatID          int64   `db:"chat_id"`
	Symbols         string  `db:"symbols"`
	Weights         string  `db:"weights"`
	WindowStart     string  `db:"window_start"`
	WindowEnd       string  `db:"window_end"`
	NumSimulations  int     `db:"num_simulations"`
	NumDays         int     `db:"num_days"`
	Seed            int64   `db:"seed"`
	MeanDailyReturn float64 `db:"mean_daily_return"`
	Volatility      float64 `db:"volatility"`
	Drift           float64 `db:"drift"`
	StartPrice      float64 `db:"start_price"`
	FinalMean       float64 `db:"final_mean"`
	FinalP5         float64 `db:"final_p5"`
	FinalP95        float64 `db:"final_p95"`
	ElapsedMs       int64   `db:"elapsed_ms"`
	CreatedAt       int64   `db:"created_at"`
}

type dayRow struct {
	RunID     string  `db:"run_id"`
	Day       int     `db:"day"`
	MeanPrice float64 `db:"mean_price"`
	P5        float64 `db:"p5"`
	P95       float64 `db:"p95"`
}

// RunStore keeps completed runs in sqlite: the configuration, estimated
// parameters and daily summary as rows, and every path as an XOR chunk.
type RunStore struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

func NewRunStore(db *sqlx.DB, log *logger.Logger) *RunStore {
	if log == nil {
		log = logger.Nop()
	}
	return &RunStore{db: db, log: log.Named("storage"), now: time.Now}
}

// Save stores a finished run in one transaction and returns its id.
func (s *RunStore) Save(ctx context.Context, res *montecarlo.Result, chatID int64) (uuid.UUID, error) {
	if res == nil || res.Summary.Ensemble == nil {
		return uuid.Nil, errors.New("storage: nothing to save")
	}
	id := uuid.New()
	row, err := toRow(id, chatID, res, s.now())
	if err != nil {
		return uuid.Nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO runs(
		id, chat_id, symbols, weights, window_start, window_end, num_simulations, num_days, seed,
		mean_daily_return, volatility, drift, start_price, final_mean, final_p5, final_p95,
		elapsed_ms, created_at
	) VALUES (
		:id, :chat_id, :symbols, :weights, :window_start, :window_end, :num_simulations, :num_days, :seed,
		:mean_daily_return, :volatility, :drift, :start_price, :final_mean, :final_p5, :final_p95,
		:elapsed_ms, :created_at
	)`, row); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	dayStmt, err := tx.PreparexContext(ctx, `INSERT INTO run_days(run_id, day, mean_price, p5, p95) VALUES(?,?,?,?,?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer dayStmt.Close()
	for _, d := range res.Summary.Rows {
		if _, err := dayStmt.ExecContext(ctx, row.ID, d.Day, d.MeanPrice, d.P5, d.P95); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert day %d: %w", d.Day, err)
		}
	}

	pathStmt, err := tx.PreparexContext(ctx, `INSERT INTO run_paths(run_id, path, data) VALUES(?,?,?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer pathStmt.Close()
	_, sims := res.Summary.Ensemble.Dims()
	size := 0
	for j := 0; j < sims; j++ {
		blob, err := EncodePath(res.Summary.Ensemble.Path(j))
		if err != nil {
			return uuid.Nil, err
		}
		size += len(blob)
		if _, err := pathStmt.ExecContext(ctx, row.ID, j, blob); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert path %d: %w", j, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit run: %w", err)
	}
	s.log.Infow("run saved", "run_id", row.ID, "instrument", res.Config.Label(), "paths", sims, "path_bytes", size)
	return id, nil
}

// List returns the most recent runs first. chatID 0 lists runs of every chat.
func (s *RunStore) List(ctx context.Context, chatID int64, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT * FROM runs`
	args := []any{}
	if chatID != 0 {
		q += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.toRun()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// Get loads one run together with its daily summary.
func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	run, err := row.toRun()
	if err != nil {
		return Run{}, err
	}

	var days []dayRow
	if err := s.db.SelectContext(ctx, &days, `SELECT * FROM run_days WHERE run_id = ? ORDER BY day`, row.ID); err != nil {
		return Run{}, fmt.Errorf("failed to get run days: %w", err)
	}
	run.Days = make([]montecarlo.DaySummary, len(days))
	for i, d := range days {
		run.Days[i] = montecarlo.DaySummary{Day: d.Day, MeanPrice: d.MeanPrice, P5: d.P5, P95: d.P95}
	}
	return run, nil
}

// LoadPaths decodes the stored paths back into an ensemble.
func (s *RunStore) LoadPaths(ctx context.Context, id uuid.UUID) (*montecarlo.Ensemble, error) {
	var meta struct {
		NumSimulations int `db:"num_simulations"`
		NumDays        int `db:"num_days"`
	}
	err := s.db.GetContext(ctx, &meta, `SELECT num_simulations, num_days FROM runs WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var blobs []struct {
		Path int    `db:"path"`
		Data []byte `db:"data"`
	}
	if err := s.db.SelectContext(ctx, &blobs, `SELECT path, data FROM run_paths WHERE run_id = ? ORDER BY path`, id.String()); err != nil {
		return nil, fmt.Errorf("failed to load paths: %w", err)
	}
	if len(blobs) != meta.NumSimulations {
		return nil, fmt.Errorf("storage: run %s has %d of %d paths", id, len(blobs), meta.NumSimulations)
	}

	days := make([][]float64, meta.NumDays)
	for t := range days {
		days[t] = make([]float64, meta.NumSimulations)
	}
	for _, b := range blobs {
		values, err := DecodePath(b.Data)
		if err != nil {
			return nil, fmt.Errorf("path %d: %w", b.Path, err)
		}
		if len(values) != meta.NumDays || b.Path < 0 || b.Path >= meta.NumSimulations {
			return nil, fmt.Errorf("storage: path %d has %d days, want %d", b.Path, len(values), meta.NumDays)
		}
		for t, v := range values {
			days[t][b.Path] = v
		}
	}
	return montecarlo.NewEnsemble(days)
}

func toRow(id uuid.UUID, chatID int64, res *montecarlo.Result, now time.Time) (runRow, error) {
	cfg := res.Config
	weights := ""
	if len(cfg.Weights) > 0 {
		b, err := json.Marshal([]float64(cfg.Weights))
		if err != nil {
			return runRow{}, err
		}
		weights = string(b)
	}
	final := res.Summary.Final()
	return runRow{
		ID:              id.String(),
		ChatID:          chatID,
		Symbols:         strings.Join(cfg.Symbols, ","),
		Weights:         weights,
		WindowStart:     cfg.Start.Format(time.DateOnly),
		WindowEnd:       cfg.End.Format(time.DateOnly),
		NumSimulations:  cfg.NumSimulations,
		NumDays:         cfg.NumDays,
		Seed:            int64(cfg.Seed),
		MeanDailyReturn: res.Params.MeanDailyReturn,
		Volatility:      res.Params.Volatility,
		Drift:           res.Params.Drift,
		StartPrice:      res.StartPrice,
		FinalMean:       final.MeanPrice,
		FinalP5:         final.P5,
		FinalP95:        final.P95,
		ElapsedMs:       res.Elapsed.Milliseconds(),
		CreatedAt:       now.UnixMilli(),
	}, nil
}

func (r runRow) toRun() (Run, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Run{}, fmt.Errorf("storage: bad run id %q: %w", r.ID, err)
	}
	start, err := time.Parse(time.DateOnly, r.WindowStart)
	if err != nil {
		return Run{}, err
	}
	end, err := time.Parse(time.DateOnly, r.WindowEnd)
	if err != nil {
		return Run{}, err
	}
	var weights montecarlo.Weights
	if r.Weights != "" {
		if err := json.Unmarshal([]byte(r.Weights), &weights); err != nil {
			return Run{}, fmt.Errorf("storage: bad weights for run %s: %w", r.ID, err)
		}
	}
	return Run{
		ID:     id,
		ChatID: r.ChatID,
		Config: montecarlo.RunConfig{
			Symbols:        strings.Split(r.Symbols, ","),
			Weights:        weights,
			Start:          start,
			End:            end,
			NumSimulations: r.NumSimulations,
			NumDays:        r.NumDays,
			Seed:           uint64(r.Seed),
		},
		Params: montecarlo.EstimatedParameters{
			MeanDailyReturn: r.MeanDailyReturn,
			Volatility:      r.Volatility,
			Drift:           r.Drift,
		},
		StartPrice: r.StartPrice,
		Final:      montecarlo.DaySummary{Day: r.NumDays, MeanPrice: r.FinalMean, P5: r.FinalP5, P95: r.FinalP95},
		Elapsed:    time.Duration(r.ElapsedMs) * time.Millisecond,
		CreatedAt:  time.UnixMilli(r.CreatedAt),
	}, nil
}
