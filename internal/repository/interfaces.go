package repository

import (
	"context"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// ResultStore persists grid results and reads them back for resume.
// Save is a full snapshot; stores may write only what changed.
type ResultStore interface {
	Load(ctx context.Context) ([]models.ResultRecord, error)
	Save(ctx context.Context, snapshot *models.ResultSnapshot) error
}

// ResultKind separates result sets that share a symbol
type ResultKind string

const (
	GridResults  ResultKind = "grid"
	SweepResults ResultKind = "sweep"
)

// CompletedKeys indexes records by task key
func CompletedKeys(records []models.ResultRecord) map[string]struct{} {
	keys := make(map[string]struct{}, len(records))
	for _, r := range records {
		keys[r.Key().String()] = struct{}{}
	}
	return keys
}
