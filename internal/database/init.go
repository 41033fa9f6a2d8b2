package database

import (
	"context"
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
)

// Schema creates the result table used by the postgres result store and the
// view holding each symbol's best record per result kind
const Schema = `
CREATE TABLE IF NOT EXISTS grid_results (
	seq               BIGSERIAL,
	symbol            TEXT NOT NULL,
	kind              TEXT NOT NULL DEFAULT 'grid',
	task_key          TEXT NOT NULL,
	run_id            UUID NOT NULL,
	start_date        DATE NOT NULL,
	end_date          DATE NOT NULL,
	macd_fast         INTEGER NOT NULL,
	macd_slow         INTEGER NOT NULL,
	macd_signal       INTEGER NOT NULL,
	rsi_window        INTEGER NOT NULL,
	rsi_buy           DOUBLE PRECISION NOT NULL,
	rsi_sell          DOUBLE PRECISION NOT NULL,
	final_value       DOUBLE PRECISION NOT NULL,
	annual_return     DOUBLE PRECISION NOT NULL,
	annual_volatility DOUBLE PRECISION NOT NULL,
	sharpe_ratio      DOUBLE PRECISION NOT NULL,
	max_drawdown      DOUBLE PRECISION NOT NULL,
	high_performer    BOOLEAN NOT NULL DEFAULT FALSE,
	recorded_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (symbol, kind, task_key)
);
CREATE INDEX IF NOT EXISTS grid_results_symbol_final_value_idx ON grid_results (symbol, kind, final_value DESC);
CREATE OR REPLACE VIEW grid_best_results AS
	SELECT DISTINCT ON (symbol, kind) *
	FROM grid_results
	ORDER BY symbol, kind, final_value DESC, seq;
`

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema idempotently
func Migrate(ctx context.Context, db *DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
