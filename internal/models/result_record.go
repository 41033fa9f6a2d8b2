package models

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format used in stores and config
const DateLayout = "2006-01-02"

// TaskKey identifies one (window, parameters) grid task
type TaskKey struct {
	WindowStart time.Time
	Params      StrategyParameters
}

// String returns the stable key used by checkpoint stores
func (k TaskKey) String() string {
	p := k.Params
	return fmt.Sprintf("%s|%d|%d|%d|%d|%g|%g",
		k.WindowStart.Format(DateLayout),
		p.MACDFast, p.MACDSlow, p.MACDSignal, p.RSIWindow, p.RSIBuyThreshold, p.RSISellThreshold)
}

// GridTask is the unit of work handed to a grid worker
type GridTask struct {
	WindowIndex int
	WindowStart time.Time
	WindowEnd   time.Time
	Params      StrategyParameters
}

// Key returns the resume key for the task
func (t GridTask) Key() TaskKey {
	return TaskKey{WindowStart: t.WindowStart, Params: t.Params}
}

// ResultRecord is the flattened row persisted per evaluated task.
// AnnualReturn, AnnualVolatility and SharpeRatio hold NaN when undefined.
type ResultRecord struct {
	StartDate        time.Time          `json:"start_date"`
	EndDate          time.Time          `json:"end_date"`
	Params           StrategyParameters `json:"params"`
	FinalValue       float64            `json:"final_value"`
	AnnualReturn     float64            `json:"annual_return"`
	AnnualVolatility float64            `json:"annual_volatility"`
	SharpeRatio      float64            `json:"sharpe_ratio"`
	MaxDrawdown      float64            `json:"max_drawdown"`
}

// Key returns the resume key for the record
func (r ResultRecord) Key() TaskKey {
	return TaskKey{WindowStart: r.StartDate, Params: r.Params}
}

// Multiple returns final value relative to the starting cash
func (r ResultRecord) Multiple(initialCash float64) float64 {
	if initialCash == 0 {
		return math.NaN()
	}
	return r.FinalValue / initialCash
}
