package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/database"
	"github.com/google/uuid"
)

// NewResultStore builds the store selected by cfg.Store.Driver. CSV stores
// separate kinds by file name, postgres by the kind column. The returned
// close function releases any database pool.
func NewResultStore(ctx context.Context, cfg *config.Config, kind ResultKind, runID uuid.UUID) (ResultStore, func(), error) {
	switch cfg.Store.Driver {
	case "", "csv":
		store := NewCSVResultStore(
			filepath.Join(cfg.Store.OutputDir, cfg.Store.ResultsFile),
			filepath.Join(cfg.Store.OutputDir, cfg.Store.BestFile),
			filepath.Join(cfg.Store.OutputDir, cfg.Store.HighPerformersFile),
		)
		return store, func() {}, nil
	case "postgres":
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresResultStore(db, cfg.Data.Symbol, kind, runID), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
