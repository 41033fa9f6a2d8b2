// Package grid runs the sliding-window parameter search.
package grid

import (
	"context"
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// Plan summarises the work a run will do
type Plan struct {
	Windows        int
	Combinations   int
	SkippedInvalid int
	Resumed        int
	Pending        int
}

// Total returns the number of valid tasks, resumed ones included
func (p Plan) Total() int {
	return p.Windows * p.Combinations
}

// Enumerator produces grid tasks over every window of a series
type Enumerator struct {
	series       *models.PriceSeries
	windowLength int
	combinations []models.StrategyParameters
	invalid      int
}

// NewEnumerator creates an enumerator for the series and parameter grid
func NewEnumerator(series *models.PriceSeries, windowLength int, grid models.ParameterGrid) (*Enumerator, error) {
	if series.Len() == 0 {
		return nil, models.ErrEmptySeries
	}
	if windowLength < 1 {
		return nil, fmt.Errorf("window length must be at least 1, got %d", windowLength)
	}
	valid, invalid := grid.Combinations()
	return &Enumerator{
		series:       series,
		windowLength: windowLength,
		combinations: valid,
		invalid:      invalid,
	}, nil
}

// WindowCount returns the number of window starts, len(series) - windowLength
func (e *Enumerator) WindowCount() int {
	n := e.series.Len() - e.windowLength
	if n < 0 {
		return 0
	}
	return n
}

// Combinations returns the valid parameter tuples
func (e *Enumerator) Combinations() []models.StrategyParameters {
	return e.combinations
}

// Task builds the task for a window index and parameter tuple
func (e *Enumerator) Task(window int, params models.StrategyParameters) models.GridTask {
	return models.GridTask{
		WindowIndex: window,
		WindowStart: e.series.Bars[window].Date,
		WindowEnd:   e.series.Bars[window+e.windowLength-1].Date,
		Params:      params,
	}
}

// Plan counts the tasks left once completed keys are excluded
func (e *Enumerator) Plan(completed map[string]struct{}) Plan {
	plan := Plan{
		Windows:        e.WindowCount(),
		Combinations:   len(e.combinations),
		SkippedInvalid: e.WindowCount() * e.invalid,
	}
	e.each(func(task models.GridTask) bool {
		if _, done := completed[task.Key().String()]; done {
			plan.Resumed++
		} else {
			plan.Pending++
		}
		return true
	})
	return plan
}

// Tasks streams every pending task in window order. The channel is closed
// once enumeration finishes or ctx is cancelled.
func (e *Enumerator) Tasks(ctx context.Context, completed map[string]struct{}) <-chan models.GridTask {
	tasks := make(chan models.GridTask)
	go func() {
		defer close(tasks)
		e.each(func(task models.GridTask) bool {
			if _, done := completed[task.Key().String()]; done {
				return true
			}
			select {
			case tasks <- task:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return tasks
}

func (e *Enumerator) each(fn func(models.GridTask) bool) {
	for w := 0; w < e.WindowCount(); w++ {
		for _, params := range e.combinations {
			if !fn(e.Task(w, params)) {
				return
			}
		}
	}
}

// FixedGrid returns a grid holding exactly one parameter tuple
func FixedGrid(p models.StrategyParameters) models.ParameterGrid {
	return models.ParameterGrid{
		MACDFast:   []int{p.MACDFast},
		MACDSlow:   []int{p.MACDSlow},
		MACDSignal: []int{p.MACDSignal},
		RSIWindow:  []int{p.RSIWindow},
		RSIBuy:     []float64{p.RSIBuyThreshold},
		RSISell:    []float64{p.RSISellThreshold},
	}
}
