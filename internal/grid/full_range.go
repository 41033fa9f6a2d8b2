package grid

import (
	"context"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// EvaluateAll runs every valid combination of grid once, returning the
// succeeded records in completion order and the failed outcomes.
// evaluate decides what range each task covers, see FullRangeEvaluator.
func EvaluateAll(ctx context.Context, series *models.PriceSeries, grid models.ParameterGrid, evaluate Evaluator, workers int) ([]models.ResultRecord, []Outcome, error) {
	if series.Len() == 0 {
		return nil, nil, models.ErrEmptySeries
	}
	combinations, _ := grid.Combinations()
	first, last := series.First(), series.Last()

	tasks := make(chan models.GridTask)
	go func() {
		defer close(tasks)
		for _, params := range combinations {
			task := models.GridTask{WindowStart: first, WindowEnd: last, Params: params}
			select {
			case tasks <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	outcomes, wait := NewPool(workers, evaluate).Run(ctx, tasks)
	var records []models.ResultRecord
	var failures []Outcome
	for outcome := range outcomes {
		if outcome.Status == StatusSucceeded {
			records = append(records, *outcome.Record)
		} else {
			failures = append(failures, outcome)
		}
	}
	return records, failures, wait()
}
