package grid

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/backtest"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeries(n int) *models.PriceSeries {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/5)
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return &models.PriceSeries{Symbol: "TQQQ", Bars: bars}
}

func smallGrid() models.ParameterGrid {
	return models.ParameterGrid{
		MACDFast:   []int{3, 10},
		MACDSlow:   []int{5, 6},
		MACDSignal: []int{2},
		RSIWindow:  []int{4},
		RSIBuy:     []float64{90},
		RSISell:    []float64{10},
	}
}

func testGridLogger() *logger.GridLogger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return logger.NewGridLogger(base, nil)
}

// memoryStore keeps the last saved snapshot and can fail a number of saves
type memoryStore struct {
	mu       sync.Mutex
	saved    []models.ResultRecord
	saves    int
	failures int
}

func (m *memoryStore) Load(ctx context.Context) ([]models.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResultRecord(nil), m.saved...), nil
}

func (m *memoryStore) Save(ctx context.Context, snapshot *models.ResultSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failures > 0 {
		m.failures--
		return errors.New("disk full")
	}
	m.saved = append([]models.ResultRecord(nil), snapshot.Records...)
	return nil
}

func fakeRecord(task models.GridTask, finalValue float64) models.ResultRecord {
	return models.ResultRecord{
		StartDate:        task.WindowStart,
		EndDate:          task.WindowEnd,
		Params:           task.Params,
		FinalValue:       finalValue,
		AnnualReturn:     math.NaN(),
		AnnualVolatility: math.NaN(),
		SharpeRatio:      math.NaN(),
	}
}

func countingEvaluator(calls *int64) Evaluator {
	return func(task models.GridTask) (models.ResultRecord, error) {
		atomic.AddInt64(calls, 1)
		return fakeRecord(task, 10000+float64(task.WindowIndex)), nil
	}
}

func testRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Symbol:                "TQQQ",
		WindowLength:          63,
		InitialCash:           10000,
		HighPerformerMultiple: 16,
		Workers:               3,
		CheckpointEvery:       10,
	}
}

func TestEnumeratorWindowCount(t *testing.T) {
	enum, err := NewEnumerator(testSeries(100), 63, smallGrid())
	require.NoError(t, err)

	assert.Equal(t, 37, enum.WindowCount())
	plan := enum.Plan(nil)
	assert.Equal(t, 37, plan.Windows)
	assert.Equal(t, 2, plan.Combinations)
	assert.Equal(t, 74, plan.SkippedInvalid)
	assert.Equal(t, 74, plan.Pending)
	assert.Equal(t, plan.Total(), plan.Pending)

	short, err := NewEnumerator(testSeries(50), 63, smallGrid())
	require.NoError(t, err)
	assert.Equal(t, 0, short.WindowCount())
}

func TestEnumeratorNeverYieldsFastAboveSlow(t *testing.T) {
	enum, err := NewEnumerator(testSeries(70), 63, smallGrid())
	require.NoError(t, err)

	count := 0
	for task := range enum.Tasks(context.Background(), nil) {
		count++
		assert.Less(t, task.Params.MACDFast, task.Params.MACDSlow)
		assert.NotEqual(t, 10, task.Params.MACDFast)
		assert.Equal(t, task.WindowStart.AddDate(0, 0, 62), task.WindowEnd)
	}
	assert.Equal(t, 7*2, count)
}

func TestEnumeratorSkipsCompletedKeys(t *testing.T) {
	series := testSeries(66)
	enum, err := NewEnumerator(series, 63, smallGrid())
	require.NoError(t, err)

	done := enum.Task(1, enum.Combinations()[0])
	completed := map[string]struct{}{done.Key().String(): {}}

	plan := enum.Plan(completed)
	assert.Equal(t, 1, plan.Resumed)
	assert.Equal(t, 5, plan.Pending)

	for task := range enum.Tasks(context.Background(), completed) {
		assert.NotEqual(t, done.Key(), task.Key())
	}
}

func TestEnumeratorRejectsBadInput(t *testing.T) {
	_, err := NewEnumerator(&models.PriceSeries{}, 63, smallGrid())
	assert.ErrorIs(t, err, models.ErrEmptySeries)

	_, err = NewEnumerator(testSeries(10), 0, smallGrid())
	assert.Error(t, err)
}

func TestPoolIsolatesFailuresAndPanics(t *testing.T) {
	enum, err := NewEnumerator(testSeries(70), 63, smallGrid())
	require.NoError(t, err)

	boom := errors.New("boom")
	evaluate := func(task models.GridTask) (models.ResultRecord, error) {
		switch task.WindowIndex {
		case 2:
			return models.ResultRecord{}, boom
		case 4:
			panic("index out of range")
		}
		return fakeRecord(task, 10000), nil
	}

	outcomes, wait := NewPool(4, evaluate).Run(context.Background(), enum.Tasks(context.Background(), nil))
	var succeeded, failed int
	for outcome := range outcomes {
		if outcome.Status == StatusSucceeded {
			succeeded++
			require.NotNil(t, outcome.Record)
			continue
		}
		failed++
		assert.Nil(t, outcome.Record)
		var taskErr *TaskError
		require.ErrorAs(t, outcome.Err, &taskErr)
		assert.Equal(t, outcome.Task.Key(), taskErr.Key)
		if outcome.Task.WindowIndex == 2 {
			assert.ErrorIs(t, outcome.Err, boom)
		} else {
			assert.Contains(t, outcome.Err.Error(), "panic")
		}
	}
	require.NoError(t, wait())
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 4, failed)
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 2)
	assert.Equal(t, DefaultWorkers(), NewPool(0, nil).Workers())
}

func TestAggregatorBestAndHighPerformers(t *testing.T) {
	agg := NewAggregator(10000, 16)
	task := models.GridTask{WindowStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}

	isBest, isHigh := agg.Add(fakeRecord(task, 12000))
	assert.True(t, isBest)
	assert.False(t, isHigh)

	task.Params.MACDFast = 1
	isBest, _ = agg.Add(fakeRecord(task, 12000))
	assert.False(t, isBest, "ties keep the earlier best")
	assert.Equal(t, 0, agg.Best().Params.MACDFast)

	task.Params.MACDFast = 2
	isBest, isHigh = agg.Add(fakeRecord(task, 160000))
	assert.True(t, isBest)
	assert.True(t, isHigh)

	snap := agg.Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Len(t, snap.HighPerformers, 1)
	assert.Equal(t, 160000.0, snap.Best.FinalValue)
	assert.Equal(t, 3, agg.Unsaved())

	agg.MarkSaved()
	agg.Seed([]models.ResultRecord{fakeRecord(task, 1)})
	assert.Equal(t, 0, agg.Unsaved())
	assert.Equal(t, 4, agg.Len())
}

func TestTopN(t *testing.T) {
	records := []models.ResultRecord{
		{FinalValue: 100, SharpeRatio: 0.5},
		{FinalValue: 300, SharpeRatio: math.NaN()},
		{FinalValue: 200, SharpeRatio: 2},
	}

	byValue := TopN(records, 2, RankFinalValue)
	require.Len(t, byValue, 2)
	assert.Equal(t, 300.0, byValue[0].FinalValue)
	assert.Equal(t, 200.0, byValue[1].FinalValue)

	bySharpe := TopN(records, 5, RankSharpe)
	require.Len(t, bySharpe, 2)
	assert.Equal(t, 2.0, bySharpe[0].SharpeRatio)

	_, ok := ParseRank("sharpe")
	assert.True(t, ok)
	_, ok = ParseRank("sortino")
	assert.False(t, ok)
}

func TestCheckpointPolicy(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewCheckpointPolicy(3, time.Minute)
	p.now = func() time.Time { return now }
	p.Reset()

	assert.False(t, p.Due())
	assert.False(t, p.Observe())
	assert.False(t, p.Observe())
	assert.True(t, p.Observe())

	p.Reset()
	assert.False(t, p.Observe())
	now = now.Add(2 * time.Minute)
	assert.True(t, p.Due())

	p.Reset()
	now = now.Add(2 * time.Minute)
	assert.False(t, p.Due(), "nothing completed since the last snapshot")
}

func TestProgressSnapshot(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgress()
	p.now = func() time.Time { return now }

	p.Start("run-1", 10)
	now = now.Add(2 * time.Second)
	for i := 0; i < 3; i++ {
		p.Record(StatusSucceeded)
	}
	p.Record(StatusFailed)

	snap := p.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, 4, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
	assert.InDelta(t, 2.0, snap.RatePerSecond, 1e-9)
	assert.Equal(t, 3*time.Second, snap.ETA)

	p.Finish()
	assert.False(t, p.Snapshot().Running)
}

func TestRunnerResumeIsIdempotent(t *testing.T) {
	store := &memoryStore{}
	series := testSeries(100)
	var calls int64

	runner, err := NewRunner(testRunnerConfig(), store, countingEvaluator(&calls), testGridLogger())
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), series, smallGrid())
	require.NoError(t, err)

	assert.Equal(t, int64(74), calls)
	assert.Equal(t, 74, summary.Succeeded)
	assert.Equal(t, 74, summary.Plan.SkippedInvalid)
	assert.Len(t, store.saved, 74)
	first := repository.CompletedKeys(store.saved)

	calls = 0
	runner, err = NewRunner(testRunnerConfig(), store, countingEvaluator(&calls), testGridLogger())
	require.NoError(t, err)
	summary, err = runner.Run(context.Background(), series, smallGrid())
	require.NoError(t, err)

	assert.Equal(t, int64(0), calls)
	assert.Equal(t, 74, summary.Plan.Resumed)
	assert.Equal(t, 0, summary.Plan.Pending)
	assert.Equal(t, first, repository.CompletedKeys(store.saved))
	assert.Len(t, store.saved, 74)
}

func TestRunnerRecordsFailuresAsMissing(t *testing.T) {
	store := &memoryStore{}
	evaluate := func(task models.GridTask) (models.ResultRecord, error) {
		if task.WindowIndex%2 == 0 {
			return models.ResultRecord{}, errors.New("bad window")
		}
		return fakeRecord(task, 10000), nil
	}

	runner, err := NewRunner(testRunnerConfig(), store, evaluate, testGridLogger())
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), testSeries(70), smallGrid())
	require.NoError(t, err)

	assert.Equal(t, 4*2, summary.Failed)
	assert.Equal(t, 3*2, summary.Succeeded)
	assert.Len(t, store.saved, 6)
}

func TestRunnerCheckpointFailureRetainsRecords(t *testing.T) {
	store := &memoryStore{failures: 2}
	var calls int64

	runner, err := NewRunner(testRunnerConfig(), store, countingEvaluator(&calls), testGridLogger())
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), testSeries(100), smallGrid())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.CheckpointFailures)
	assert.Positive(t, summary.Checkpoints)
	assert.Len(t, store.saved, 74)
}

func TestRunnerFinalCheckpointFailure(t *testing.T) {
	store := &memoryStore{failures: 1000}
	var calls int64

	runner, err := NewRunner(testRunnerConfig(), store, countingEvaluator(&calls), testGridLogger())
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), testSeries(70), smallGrid())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 14, summary.Records)
}

func TestRunnerWithEngineAndCSVStore(t *testing.T) {
	dir := t.TempDir()
	store := repository.NewCSVResultStore(
		filepath.Join(dir, "all.csv"), filepath.Join(dir, "best.csv"), filepath.Join(dir, "high.csv"))
	series := testSeries(70)

	engine, err := backtest.NewEngine(backtest.BacktestConfig{
		InitialCash: 10000, WindowLength: 63, HighPerformerX: 16,
	}, nil, nil)
	require.NoError(t, err)

	runner, err := NewRunner(testRunnerConfig(), store, WindowEvaluator(engine, series), testGridLogger())
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), series, models.DefaultParameterGrid())
	require.NoError(t, err)

	valid, _ := models.DefaultParameterGrid().Combinations()
	assert.Equal(t, 7*len(valid), summary.Succeeded)
	assert.Zero(t, summary.Failed)
	require.NotNil(t, summary.Best)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, summary.Succeeded)
	for _, r := range loaded {
		assert.Less(t, r.Params.MACDFast, r.Params.MACDSlow)
		assert.LessOrEqual(t, r.MaxDrawdown, 0.0)
	}
}

func TestEvaluateAllFullRange(t *testing.T) {
	series := testSeries(120)
	engine, err := backtest.NewEngine(backtest.BacktestConfig{
		InitialCash: 10000, WindowLength: 63, HighPerformerX: 16,
	}, nil, nil)
	require.NoError(t, err)

	records, failures, err := EvaluateAll(context.Background(), series, smallGrid(), FullRangeEvaluator(engine, series), 2)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, series.First(), r.StartDate)
		assert.Equal(t, series.Last(), r.EndDate)
	}
}

func TestFixedGrid(t *testing.T) {
	params := models.StrategyParameters{MACDFast: 3, MACDSlow: 6, MACDSignal: 2, RSIWindow: 4, RSIBuyThreshold: 90, RSISellThreshold: 10}
	valid, skipped := FixedGrid(params).Combinations()
	assert.Equal(t, []models.StrategyParameters{params}, valid)
	assert.Zero(t, skipped)
}
