package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/database"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const upsertResultQuery = `
	INSERT INTO grid_results (
		symbol, kind, task_key, run_id, start_date, end_date,
		macd_fast, macd_slow, macd_signal, rsi_window, rsi_buy, rsi_sell,
		final_value, annual_return, annual_volatility, sharpe_ratio, max_drawdown, high_performer
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	ON CONFLICT (symbol, kind, task_key) DO UPDATE SET
		final_value = EXCLUDED.final_value,
		annual_return = EXCLUDED.annual_return,
		annual_volatility = EXCLUDED.annual_volatility,
		sharpe_ratio = EXCLUDED.sharpe_ratio,
		max_drawdown = EXCLUDED.max_drawdown,
		high_performer = EXCLUDED.high_performer
`

const resultColumns = `start_date, end_date, macd_fast, macd_slow, macd_signal, rsi_window, rsi_buy, rsi_sell,
		final_value, annual_return, annual_volatility, sharpe_ratio, max_drawdown`

const selectResultsQuery = `
	SELECT ` + resultColumns + `
	FROM grid_results WHERE symbol = $1 AND kind = $2 ORDER BY seq
`

const selectBestQuery = `
	SELECT ` + resultColumns + `
	FROM grid_best_results WHERE symbol = $1 AND kind = $2
`

const errScanResult = "failed to scan grid result: %w"

// PostgresResultStore keeps grid results in the grid_results table, keyed by
// symbol, result kind and task key
type PostgresResultStore struct {
	db     *database.DB
	symbol string
	kind   ResultKind
	runID  uuid.UUID

	mu    sync.Mutex
	saved map[string]struct{}
}

// NewPostgresResultStore creates a result store for one symbol and result kind
func NewPostgresResultStore(db *database.DB, symbol string, kind ResultKind, runID uuid.UUID) *PostgresResultStore {
	if kind == "" {
		kind = GridResults
	}
	return &PostgresResultStore{
		db:     db,
		symbol: symbol,
		kind:   kind,
		runID:  runID,
		saved:  make(map[string]struct{}),
	}
}

// Load reads every stored record for the symbol and kind in insertion order
func (s *PostgresResultStore) Load(ctx context.Context) ([]models.ResultRecord, error) {
	rows, err := s.db.Query(ctx, selectResultsQuery, s.symbol, string(s.kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query grid results: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.ResultRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		s.saved[r.Key().String()] = struct{}{}
	}
	return records, rows.Err()
}

// Save upserts the records not yet written in one transaction
func (s *PostgresResultStore) Save(ctx context.Context, snapshot *models.ResultSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	high := CompletedKeys(snapshot.HighPerformers)
	pending := make([]models.ResultRecord, 0)
	for _, r := range snapshot.Records {
		if _, ok := s.saved[r.Key().String()]; !ok {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range pending {
			key := r.Key().String()
			_, isHigh := high[key]
			batch.Queue(upsertResultQuery, s.upsertArgs(key, r, isHigh)...)
		}
		results := tx.SendBatch(ctx, batch)
		for range pending {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert grid result: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return err
	}

	for _, r := range pending {
		s.saved[r.Key().String()] = struct{}{}
	}
	return nil
}

// Best returns the stored record with the highest final value, the earliest
// one on ties, or nil when nothing is stored
func (s *PostgresResultStore) Best(ctx context.Context) (*models.ResultRecord, error) {
	r, err := scanRecord(s.db.QueryRow(ctx, selectBestQuery, s.symbol, string(s.kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRecord(row pgx.Row) (models.ResultRecord, error) {
	var r models.ResultRecord
	p := &r.Params
	if err := row.Scan(
		&r.StartDate, &r.EndDate, &p.MACDFast, &p.MACDSlow, &p.MACDSignal, &p.RSIWindow,
		&p.RSIBuyThreshold, &p.RSISellThreshold,
		&r.FinalValue, &r.AnnualReturn, &r.AnnualVolatility, &r.SharpeRatio, &r.MaxDrawdown,
	); err != nil {
		return r, fmt.Errorf(errScanResult, err)
	}
	return r, nil
}

func (s *PostgresResultStore) upsertArgs(key string, r models.ResultRecord, highPerformer bool) []interface{} {
	p := r.Params
	return []interface{}{
		s.symbol, string(s.kind), key, s.runID, r.StartDate, r.EndDate,
		p.MACDFast, p.MACDSlow, p.MACDSignal, p.RSIWindow, p.RSIBuyThreshold, p.RSISellThreshold,
		r.FinalValue, r.AnnualReturn, r.AnnualVolatility, r.SharpeRatio, r.MaxDrawdown, highPerformer,
	}
}
