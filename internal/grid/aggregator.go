package grid

import (
	"math"
	"sort"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/samber/lo"
)

// Aggregator accumulates results, the best record and the high performers.
// It is owned by the goroutine draining outcomes and is not safe for concurrent use.
type Aggregator struct {
	threshold      float64
	records        []models.ResultRecord
	best           *models.ResultRecord
	highPerformers []models.ResultRecord
	unsaved        int
}

// NewAggregator creates an aggregator flagging records at or above initialCash*multiple
func NewAggregator(initialCash, multiple float64) *Aggregator {
	return &Aggregator{threshold: initialCash * multiple}
}

// Threshold returns the high performer final value threshold
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Seed loads previously persisted records without marking them unsaved
func (a *Aggregator) Seed(records []models.ResultRecord) {
	for _, r := range records {
		a.add(r)
	}
}

// Add appends a new record and reports whether it became the best
// and whether it is a high performer.
func (a *Aggregator) Add(r models.ResultRecord) (isBest, isHigh bool) {
	a.unsaved++
	return a.add(r)
}

func (a *Aggregator) add(r models.ResultRecord) (bool, bool) {
	a.records = append(a.records, r)

	isBest := false
	if a.best == nil || r.FinalValue > a.best.FinalValue {
		best := r
		a.best = &best
		isBest = true
	}

	isHigh := r.FinalValue >= a.threshold
	if isHigh {
		a.highPerformers = append(a.highPerformers, r)
	}
	return isBest, isHigh
}

// Len returns the number of records held
func (a *Aggregator) Len() int {
	return len(a.records)
}

// Unsaved returns the number of records added since the last MarkSaved
func (a *Aggregator) Unsaved() int {
	return a.unsaved
}

// MarkSaved records that the current collection has been persisted
func (a *Aggregator) MarkSaved() {
	a.unsaved = 0
}

// Best returns a copy of the best record, or nil
func (a *Aggregator) Best() *models.ResultRecord {
	if a.best == nil {
		return nil
	}
	best := *a.best
	return &best
}

// BestFinalValue returns the best final value, or 0 when empty
func (a *Aggregator) BestFinalValue() float64 {
	if a.best == nil {
		return 0
	}
	return a.best.FinalValue
}

// HighPerformerCount returns the size of the high performer subset
func (a *Aggregator) HighPerformerCount() int {
	return len(a.highPerformers)
}

// Snapshot copies the current state for persistence
func (a *Aggregator) Snapshot() *models.ResultSnapshot {
	return &models.ResultSnapshot{
		Records:        append([]models.ResultRecord(nil), a.records...),
		Best:           a.Best(),
		HighPerformers: append([]models.ResultRecord(nil), a.highPerformers...),
	}
}

// Rank selects the ordering used by TopN
type Rank string

// Rankings
const (
	RankFinalValue Rank = "final_value"
	RankSharpe     Rank = "sharpe"
)

// ParseRank validates a rank name
func ParseRank(s string) (Rank, bool) {
	switch Rank(s) {
	case RankFinalValue, RankSharpe:
		return Rank(s), true
	}
	return "", false
}

func (r Rank) value(rec models.ResultRecord) float64 {
	if r == RankSharpe {
		return rec.SharpeRatio
	}
	return rec.FinalValue
}

// TopN returns the n highest records by rank; records with an undefined
// rank value are excluded. Ties keep their input order.
func TopN(records []models.ResultRecord, n int, rank Rank) []models.ResultRecord {
	ranked := lo.Filter(records, func(r models.ResultRecord, _ int) bool {
		return !math.IsNaN(rank.value(r))
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return rank.value(ranked[i]) > rank.value(ranked[j])
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
