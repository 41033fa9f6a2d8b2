package grid

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/backtest"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome class of one task
type Status string

// Task statuses
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TaskError wraps a failure with the key of the task that raised it
type TaskError struct {
	Key models.TaskKey
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Key, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Outcome is the result of evaluating one task
type Outcome struct {
	Task     models.GridTask
	Status   Status
	Record   *models.ResultRecord
	Err      error
	Duration time.Duration
}

// Evaluator runs the full pipeline for one task
type Evaluator func(task models.GridTask) (models.ResultRecord, error)

// WindowEvaluator evaluates tasks over their sliding window of series
func WindowEvaluator(engine *backtest.Engine, series *models.PriceSeries) Evaluator {
	return func(task models.GridTask) (models.ResultRecord, error) {
		result, err := engine.RunWindow(series, task.WindowIndex, task.Params)
		if err != nil {
			return models.ResultRecord{}, err
		}
		return result.Record(), nil
	}
}

// FullRangeEvaluator evaluates tasks over the whole series, ignoring the window
func FullRangeEvaluator(engine *backtest.Engine, series *models.PriceSeries) Evaluator {
	return func(task models.GridTask) (models.ResultRecord, error) {
		result, err := engine.Run(series, task.Params)
		if err != nil {
			return models.ResultRecord{}, err
		}
		return result.Record(), nil
	}
}

// DefaultWorkers returns max(NumCPU-1, 2)
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 2 {
		return 2
	}
	return n
}

// Pool is a fixed-size set of workers evaluating tasks
type Pool struct {
	workers  int
	evaluate Evaluator
}

// NewPool creates a pool; workers <= 0 selects DefaultWorkers
func NewPool(workers int, evaluate Evaluator) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{workers: workers, evaluate: evaluate}
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Run starts the workers. The outcome channel is closed after tasks is
// drained and every worker has returned; wait reports cancellation.
func (p *Pool) Run(ctx context.Context, tasks <-chan models.GridTask) (outcomes <-chan Outcome, wait func() error) {
	out := make(chan Outcome, p.workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for task := range tasks {
				outcome := p.execute(task)
				select {
				case out <- outcome:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(out)
	}()

	var result error
	var waited bool
	return out, func() error {
		if !waited {
			result = <-done
			waited = true
		}
		return result
	}
}

func (p *Pool) execute(task models.GridTask) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Task: task}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFailed
			outcome.Record = nil
			outcome.Err = &TaskError{Key: task.Key(), Err: fmt.Errorf("panic: %v", r)}
		}
		outcome.Duration = time.Since(start)
	}()

	record, err := p.evaluate(task)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = &TaskError{Key: task.Key(), Err: err}
		return outcome
	}
	outcome.Status = StatusSucceeded
	outcome.Record = &record
	return outcome
}
