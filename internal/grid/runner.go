package grid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/repository"
	"github.com/google/uuid"
)

// RunnerConfig holds the settings of one grid run
type RunnerConfig struct {
	RunID                 uuid.UUID
	Symbol                string
	WindowLength          int
	InitialCash           float64
	HighPerformerMultiple float64
	Workers               int
	CheckpointEvery       int
	CheckpointInterval    time.Duration
	ProgressEvery         int
}

// Validate validates runner settings
func (c RunnerConfig) Validate() error {
	if c.WindowLength < 1 {
		return fmt.Errorf("window length must be at least 1")
	}
	if c.InitialCash <= 0 {
		return models.ErrNonPositiveCash
	}
	if c.HighPerformerMultiple <= 0 {
		return fmt.Errorf("high performer multiple must be positive")
	}
	if c.CheckpointEvery < 0 || c.CheckpointInterval < 0 || c.ProgressEvery < 0 {
		return fmt.Errorf("checkpoint and progress cadences must not be negative")
	}
	return nil
}

// Summary reports what a run did
type Summary struct {
	RunID              uuid.UUID
	Plan               Plan
	Succeeded          int
	Failed             int
	Records            int
	HighPerformers     int
	Best               *models.ResultRecord
	Checkpoints        int
	CheckpointFailures int
	Duration           time.Duration
}

// Runner drives enumeration, evaluation, aggregation and checkpointing
type Runner struct {
	config   RunnerConfig
	store    repository.ResultStore
	evaluate Evaluator
	logger   *logger.GridLogger
	progress *Progress
}

// NewRunner creates a runner. A nil RunID is replaced with a fresh one.
func NewRunner(cfg RunnerConfig, store repository.ResultStore, evaluate Evaluator, gl *logger.GridLogger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || evaluate == nil || gl == nil {
		return nil, errors.New("store, evaluator and logger are required")
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	return &Runner{
		config:   cfg,
		store:    store,
		evaluate: evaluate,
		logger:   gl,
		progress: NewProgress(),
	}, nil
}

// RunID returns the run identifier
func (r *Runner) RunID() uuid.UUID {
	return r.config.RunID
}

// Progress returns the live progress tracker
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run evaluates every pending task of grid over the sliding windows of series.
// Records already in the store are skipped. Task failures are logged and
// counted; a failed checkpoint keeps the records for the next attempt.
// The summary is returned even when the final checkpoint fails.
func (r *Runner) Run(ctx context.Context, series *models.PriceSeries, grid models.ParameterGrid) (*Summary, error) {
	start := time.Now()
	runID := r.config.RunID.String()

	existing, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous results: %w", err)
	}

	enum, err := NewEnumerator(series, r.config.WindowLength, grid)
	if err != nil {
		return nil, err
	}

	agg := NewAggregator(r.config.InitialCash, r.config.HighPerformerMultiple)
	agg.Seed(existing)
	completed := repository.CompletedKeys(existing)
	plan := enum.Plan(completed)

	pool := NewPool(r.config.Workers, r.evaluate)
	r.logger.LogRunStart(runID, series.Symbol, plan.Windows, plan.Combinations, plan.Pending, plan.Resumed, pool.Workers())
	metrics.RecordGridTasksNotRun(metrics.TaskSkippedInvalid, plan.SkippedInvalid)
	metrics.RecordGridTasksNotRun(metrics.TaskResumed, plan.Resumed)
	metrics.UpdateGridPending(plan.Pending)
	metrics.UpdateGridBest(agg.BestFinalValue(), agg.HighPerformerCount())

	r.progress.Start(runID, plan.Pending)
	defer r.progress.Finish()

	summary := &Summary{RunID: r.config.RunID, Plan: plan}
	policy := NewCheckpointPolicy(r.config.CheckpointEvery, r.config.CheckpointInterval)
	saveCtx := context.WithoutCancel(ctx)

	var tick <-chan time.Time
	if policy.Interval() > 0 {
		ticker := time.NewTicker(policy.Interval())
		defer ticker.Stop()
		tick = ticker.C
	}

	outcomes, wait := pool.Run(ctx, enum.Tasks(ctx, completed))
	done := 0

drain:
	for {
		select {
		case outcome, ok := <-outcomes:
			if !ok {
				break drain
			}
			done++
			r.handle(outcome, agg, summary)
			metrics.UpdateGridPending(plan.Pending - done)

			if r.config.ProgressEvery > 0 && done%r.config.ProgressEvery == 0 {
				snap := r.progress.Snapshot()
				r.logger.LogProgress(snap.Completed, snap.Total, snap.RatePerSecond, snap.ETA)
			}
			if policy.Observe() {
				r.checkpoint(saveCtx, agg, policy, summary)
			}
		case <-tick:
			if policy.Due() {
				r.checkpoint(saveCtx, agg, policy, summary)
			}
		}
	}
	poolErr := wait()

	var saveErr error
	if agg.Unsaved() > 0 || summary.Checkpoints == 0 {
		saveErr = r.checkpoint(saveCtx, agg, policy, summary)
	}

	summary.Records = agg.Len()
	summary.HighPerformers = agg.HighPerformerCount()
	summary.Best = agg.Best()
	summary.Duration = time.Since(start)

	metrics.RecordGridRun(summary.Duration.Seconds())
	r.logger.LogRunSummary(runID, summary.Succeeded, plan.SkippedInvalid, summary.Failed, plan.Resumed,
		agg.BestFinalValue(), summary.Duration)

	if poolErr != nil {
		return summary, fmt.Errorf("grid run interrupted: %w", poolErr)
	}
	if saveErr != nil {
		return summary, fmt.Errorf("final checkpoint failed: %w", saveErr)
	}
	return summary, nil
}

func (r *Runner) handle(outcome Outcome, agg *Aggregator, summary *Summary) {
	r.progress.Record(outcome.Status)

	if outcome.Status != StatusSucceeded {
		summary.Failed++
		metrics.RecordGridTask(metrics.TaskFailed, outcome.Duration.Seconds())
		err := outcome.Err
		var taskErr *TaskError
		if errors.As(err, &taskErr) {
			err = taskErr.Err
		}
		r.logger.LogTaskFailure(outcome.Task.Key(), err)
		return
	}

	summary.Succeeded++
	metrics.RecordGridTask(metrics.TaskSucceeded, outcome.Duration.Seconds())
	isBest, isHigh := agg.Add(*outcome.Record)
	if isBest || isHigh {
		metrics.UpdateGridBest(agg.BestFinalValue(), agg.HighPerformerCount())
	}
	if isHigh {
		r.logger.WithField("task_key", outcome.Task.Key().String()).
			WithField("final_value", outcome.Record.FinalValue).
			Info("High performer found")
	}
}

func (r *Runner) checkpoint(ctx context.Context, agg *Aggregator, policy *CheckpointPolicy, summary *Summary) error {
	start := time.Now()
	snapshot := agg.Snapshot()
	err := r.store.Save(ctx, snapshot)
	elapsed := time.Since(start)
	metrics.RecordCheckpoint(err == nil, elapsed.Seconds())
	policy.Reset()

	if err != nil {
		summary.CheckpointFailures++
		r.logger.LogCheckpointFailure(snapshot.Len(), err)
		return err
	}
	summary.Checkpoints++
	agg.MarkSaved()
	r.logger.LogCheckpoint(snapshot.Len(), len(snapshot.HighPerformers), agg.BestFinalValue(), elapsed)
	return nil
}
