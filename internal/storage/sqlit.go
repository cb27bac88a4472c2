package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens the run history database. sqlite serialises writers, so
// the pool is limited to one connection.
func OpenSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", dsn, err)
	}
	return db, nil
}

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL DEFAULT 0,
		symbols TEXT NOT NULL,
		weights TEXT NOT NULL DEFAULT '',
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		num_simulations INTEGER NOT NULL,
		num_days INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		mean_daily_return REAL NOT NULL,
		volatility REAL NOT NULL,
		drift REAL NOT NULL,
		start_price REAL NOT NULL,
		final_mean REAL NOT NULL,
		final_p5 REAL NOT NULL,
		final_p95 REAL NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_chat_created ON runs(chat_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS run_days(
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		day INTEGER NOT NULL,
		mean_price REAL NOT NULL,
		p5 REAL NOT NULL,
		p95 REAL NOT NULL,
		PRIMARY KEY(run_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS run_paths(
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY(run_id, path)
	)`,
}

// InitSchema creates the run history tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}
