package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/backtest"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/datasource"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/grid"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Output names of the fixed-parameter sweep
const (
	SweepResultsFile        = "fixed_param_window_backtest.csv"
	SweepBestFile           = "fixed_param_best.csv"
	SweepHighPerformersFile = "fixed_param_high_performers.csv"
	TopStrategiesDir        = "top_strategies"
)

const indicatorCacheTTL = 10 * time.Minute

// SearchService runs the grid workflows from configuration
type SearchService struct {
	cfg    *config.Config
	logger *logrus.Logger
	calc   *indicator.Calculator
	onRun  func(*grid.Runner)
	now    func() time.Time
}

// NewSearchService creates a new search service
func NewSearchService(cfg *config.Config, logger *logrus.Logger) *SearchService {
	if logger == nil {
		logger = logrus.New()
	}
	return &SearchService{
		cfg:    cfg,
		logger: logger,
		calc:   indicator.NewCalculator(indicator.NewSeriesCache(indicatorCacheTTL)),
		now:    time.Now,
	}
}

// OnRun registers fn to receive each runner before it starts
func (s *SearchService) OnRun(fn func(*grid.Runner)) {
	s.onRun = fn
}

// LoadSeries reads the configured price CSV within the configured dates
func (s *SearchService) LoadSeries(ctx context.Context) (*models.PriceSeries, error) {
	req, err := datasource.NewFactory(s.cfg, s.logger).Request()
	if err != nil {
		return nil, err
	}
	return datasource.NewCSVFileSource(s.cfg.Data.CSVPath).FetchSeries(ctx, req)
}

// Engine builds a backtest engine from the grid section
func (s *SearchService) Engine() (*backtest.Engine, error) {
	bt, err := backtest.FromConfig(&s.cfg.Grid, s.cfg.Store.OutputDir)
	if err != nil {
		return nil, err
	}
	return backtest.NewEngine(bt, s.calc, s.logger)
}

// Search runs the configured grid over every sliding window of series
func (s *SearchService) Search(ctx context.Context, series *models.PriceSeries) (*grid.Summary, error) {
	return s.run(ctx, s.cfg, repository.GridResults, series, s.cfg.Grid.Candidates())
}

// Sweep runs one parameter tuple over every sliding window of series. Its
// results are stored apart from the grid results: in their own CSV files, or
// under the sweep kind in postgres.
func (s *SearchService) Sweep(ctx context.Context, series *models.PriceSeries, params models.StrategyParameters) (*grid.Summary, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	cfg := *s.cfg
	cfg.Store.ResultsFile = SweepResultsFile
	cfg.Store.BestFile = SweepBestFile
	cfg.Store.HighPerformersFile = SweepHighPerformersFile
	return s.run(ctx, &cfg, repository.SweepResults, series, grid.FixedGrid(params))
}

func (s *SearchService) run(ctx context.Context, cfg *config.Config, kind repository.ResultKind, series *models.PriceSeries, candidates models.ParameterGrid) (*grid.Summary, error) {
	runID := uuid.New()
	store, closeStore, err := repository.NewResultStore(ctx, cfg, kind, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	defer closeStore()

	errorLog, err := logger.NewFileLogger(cfg.OutputPath(cfg.Store.ErrorLogFile))
	if err != nil {
		return nil, err
	}
	defer errorLog.Close()

	engine, err := s.Engine()
	if err != nil {
		return nil, err
	}

	runner, err := grid.NewRunner(grid.RunnerConfig{
		RunID:                 runID,
		Symbol:                series.Symbol,
		WindowLength:          cfg.Grid.WindowLength,
		InitialCash:           cfg.Grid.InitialCash,
		HighPerformerMultiple: cfg.Grid.HighPerformerMultiple,
		Workers:               cfg.Grid.WorkerCount(),
		CheckpointEvery:       cfg.Checkpoint.EveryTasks,
		CheckpointInterval:    cfg.Checkpoint.CheckpointInterval(),
		ProgressEvery:         cfg.Checkpoint.ProgressEveryTasks,
	}, store, grid.WindowEvaluator(engine, series), logger.NewGridLogger(s.logger, errorLog.Logger))
	if err != nil {
		return nil, err
	}
	if s.onRun != nil {
		s.onRun(runner)
	}
	return runner.Run(ctx, series, candidates)
}

// FullRangeReport is the outcome of a full-range grid search
type FullRangeReport struct {
	Records []models.ResultRecord
	Top     []models.ResultRecord
	Failed  int
	Path    string
}

// FullRange evaluates every combination once over the whole series, saves
// all records to a timestamped CSV and returns the best topN by final value.
func (s *SearchService) FullRange(ctx context.Context, series *models.PriceSeries, topN int) (*FullRangeReport, error) {
	engine, err := s.Engine()
	if err != nil {
		return nil, err
	}

	errorLog, err := logger.NewFileLogger(s.cfg.OutputPath(s.cfg.Store.ErrorLogFile))
	if err != nil {
		return nil, err
	}
	defer errorLog.Close()
	gl := logger.NewGridLogger(s.logger, errorLog.Logger)

	records, failures, err := grid.EvaluateAll(ctx, series, s.cfg.Grid.Candidates(),
		grid.FullRangeEvaluator(engine, series), s.cfg.Grid.WorkerCount())
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		gl.LogTaskFailure(f.Task.Key(), f.Err)
	}

	name := fmt.Sprintf("%s_grid_search_results_%s.csv",
		strings.ToLower(series.Symbol), s.now().Format("20060102_150405"))
	path := s.cfg.OutputPath(name)
	if err := writeRecordsFile(path, records); err != nil {
		return nil, fmt.Errorf("failed to save grid results: %w", err)
	}

	gl.WithFields(logrus.Fields{
		"records": len(records),
		"failed":  len(failures),
		"path":    path,
	}).Info("Full-range grid search complete")

	return &FullRangeReport{
		Records: records,
		Top:     grid.TopN(records, topN, grid.RankFinalValue),
		Failed:  len(failures),
		Path:    path,
	}, nil
}

// LoadResults reads records from path, or from the configured store when
// path is empty.
func (s *SearchService) LoadResults(ctx context.Context, path string) ([]models.ResultRecord, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return repository.ReadRecords(f)
	}
	store, closeStore, err := repository.NewResultStore(ctx, s.cfg, repository.GridResults, uuid.Nil)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load(ctx)
}

// TopBacktests re-runs the n best distinct parameter tuples of records over
// the whole series and writes each run's trace CSV.
func (s *SearchService) TopBacktests(ctx context.Context, series *models.PriceSeries, records []models.ResultRecord, n int, rank grid.Rank) ([]*backtest.Result, error) {
	engine, err := s.Engine()
	if err != nil {
		return nil, err
	}

	ranked := grid.TopN(records, -1, rank)
	ranked = lo.UniqBy(ranked, func(r models.ResultRecord) models.StrategyParameters {
		return r.Params
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	dir := filepath.Join(s.cfg.Store.OutputDir, TopStrategiesDir)
	results := make([]*backtest.Result, 0, len(ranked))
	for i, rec := range ranked {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := engine.Run(series, rec.Params)
		if err != nil {
			return results, fmt.Errorf("backtest %s failed: %w", rec.Params, err)
		}
		if err := backtest.GenerateTraceCSV(result, filepath.Join(dir, backtest.TraceFileName(i+1, result))); err != nil {
			return results, fmt.Errorf("failed to write trace: %w", err)
		}
		results = append(results, result)
	}
	return results, nil
}

func writeRecordsFile(path string, records []models.ResultRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := repository.WriteRecords(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
