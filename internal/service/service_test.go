package service

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/datasource"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/grid"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/upload"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testSeries(n int) *models.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/3)
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return &models.PriceSeries{Symbol: "TQQQ", Bars: bars}
}

// testConfig yields 2 valid combinations per window: (3,5) and (3,6)
func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Data: config.DataConfig{
			Symbol:   "TQQQ",
			Source:   "csv",
			Interval: "1d",
			CSVPath:  filepath.Join(dir, "data", "tqqq.csv"),
		},
		Grid: config.GridConfig{
			WindowLength:          10,
			InitialCash:           10000,
			HighPerformerMultiple: 16,
			Workers:               2,
			MACDFast:              []int{3, 10},
			MACDSlow:              []int{5, 6},
			MACDSignal:            []int{2},
			RSIWindow:             []int{4},
			RSIBuy:                []float64{90},
			RSISell:               []float64{10},
		},
		Checkpoint: config.CheckpointConfig{EveryTasks: 5},
		Store: config.StoreConfig{
			Driver:             "csv",
			OutputDir:          filepath.Join(dir, "results"),
			ResultsFile:        "results.csv",
			BestFile:           "best.csv",
			HighPerformersFile: "high.csv",
			ErrorLogFile:       "error_log.txt",
		},
	}
}

type fakeSource struct {
	series *models.PriceSeries
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchSeries(ctx context.Context, req datasource.FetchRequest) (*models.PriceSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func TestIngestSavesNormalizedCSV(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{series: testSeries(30)}
	svc := NewIngestionService(source, nil, cfg.Data.CSVPath, quietLogger())

	series, metrics, err := svc.Ingest(context.Background(), datasource.FetchRequest{Symbol: "TQQQ"})
	require.NoError(t, err)
	assert.Equal(t, 30, series.Len())
	assert.Equal(t, 30, metrics.FetchedBars)
	assert.Equal(t, 30, metrics.ValidBars)
	assert.Zero(t, metrics.Errors)

	saved, err := datasource.NewCSVFileSource(cfg.Data.CSVPath).FetchSeries(context.Background(), datasource.FetchRequest{Symbol: "TQQQ"})
	require.NoError(t, err)
	assert.Equal(t, 30, saved.Len())
	assert.InDelta(t, series.Bars[7].Close, saved.Bars[7].Close, 1e-9)
}

func TestIngestFetchFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	svc := NewIngestionService(source, nil, "", quietLogger())

	_, metrics, err := svc.Ingest(context.Background(), datasource.FetchRequest{Symbol: "TQQQ"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch prices")
	assert.Equal(t, 1, metrics.Errors)
}

func TestLoadSeriesReadsConfiguredRange(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, datasource.SavePriceCSV(cfg.Data.CSVPath, testSeries(30)))
	cfg.Data.StartDate = "2024-01-05"
	cfg.Data.EndDate = "2024-01-14"

	series, err := NewSearchService(cfg, quietLogger()).LoadSeries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, series.Len())
	assert.Equal(t, "TQQQ", series.Symbol)
	assert.Equal(t, "2024-01-05", series.First().Format(models.DateLayout))
}

func TestSearchPersistsAndResumes(t *testing.T) {
	cfg := testConfig(t)
	svc := NewSearchService(cfg, quietLogger())
	series := testSeries(40)

	var runners []*grid.Runner
	svc.OnRun(func(r *grid.Runner) { runners = append(runners, r) })

	summary, err := svc.Search(context.Background(), series)
	require.NoError(t, err)
	// 30 windows x 2 valid combinations
	assert.Equal(t, 60, summary.Plan.Pending)
	assert.Equal(t, 60, summary.Records)
	assert.Zero(t, summary.Failed)
	assert.FileExists(t, cfg.OutputPath(cfg.Store.ResultsFile))
	assert.FileExists(t, cfg.OutputPath(cfg.Store.BestFile))

	again, err := svc.Search(context.Background(), series)
	require.NoError(t, err)
	assert.Zero(t, again.Plan.Pending)
	assert.Equal(t, 60, again.Plan.Resumed)
	assert.Equal(t, 60, again.Records)

	require.Len(t, runners, 2)
	assert.NotEqual(t, runners[0].RunID(), runners[1].RunID())
}

func TestSweepWritesSeparateFiles(t *testing.T) {
	cfg := testConfig(t)
	svc := NewSearchService(cfg, quietLogger())
	params := models.StrategyParameters{MACDFast: 3, MACDSlow: 5, MACDSignal: 2, RSIWindow: 4, RSIBuyThreshold: 90, RSISellThreshold: 10}

	summary, err := svc.Sweep(context.Background(), testSeries(40), params)
	require.NoError(t, err)
	assert.Equal(t, 30, summary.Records)
	assert.FileExists(t, cfg.OutputPath(SweepResultsFile))
	assert.NoFileExists(t, cfg.OutputPath(cfg.Store.ResultsFile))

	params.MACDSlow = 3
	_, err = svc.Sweep(context.Background(), testSeries(40), params)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestFullRangeWritesTimestampedResults(t *testing.T) {
	cfg := testConfig(t)
	svc := NewSearchService(cfg, quietLogger())
	svc.now = func() time.Time { return time.Date(2025, 7, 23, 23, 52, 5, 0, time.UTC) }

	report, err := svc.FullRange(context.Background(), testSeries(40), 1)
	require.NoError(t, err)
	assert.Len(t, report.Records, 2)
	assert.Len(t, report.Top, 1)
	assert.Zero(t, report.Failed)
	assert.Equal(t, cfg.OutputPath("tqqq_grid_search_results_20250723_235205.csv"), report.Path)

	loaded, err := svc.LoadResults(context.Background(), report.Path)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	for _, r := range report.Records {
		assert.GreaterOrEqual(t, report.Top[0].FinalValue, r.FinalValue)
	}
}

func TestTopBacktestsRunsDistinctParameters(t *testing.T) {
	cfg := testConfig(t)
	svc := NewSearchService(cfg, quietLogger())
	series := testSeries(40)

	a := models.StrategyParameters{MACDFast: 3, MACDSlow: 5, MACDSignal: 2, RSIWindow: 4, RSIBuyThreshold: 90, RSISellThreshold: 10}
	b := a
	b.MACDSlow = 6
	records := []models.ResultRecord{
		{Params: a, FinalValue: 12000},
		{Params: a, FinalValue: 11000},
		{Params: b, FinalValue: 10500},
	}

	results, err := svc.TopBacktests(context.Background(), series, records, 5, grid.RankFinalValue)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].Params)
	assert.Equal(t, b, results[1].Params)

	entries, err := os.ReadDir(filepath.Join(cfg.Store.OutputDir, TopStrategiesDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	results, err = svc.TopBacktests(context.Background(), series, records, 1, grid.RankFinalValue)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

type fakeIngester struct {
	series *models.PriceSeries
	err    error
	calls  *[]string
}

func (f *fakeIngester) Ingest(ctx context.Context, req datasource.FetchRequest) (*models.PriceSeries, *IngestionMetrics, error) {
	*f.calls = append(*f.calls, "fetch")
	return f.series, NewIngestionMetrics(), f.err
}

type fakeSearcher struct {
	err   error
	calls *[]string
}

func (f *fakeSearcher) Search(ctx context.Context, series *models.PriceSeries) (*grid.Summary, error) {
	*f.calls = append(*f.calls, "search")
	return &grid.Summary{Records: series.Len()}, f.err
}

type fakeUploader struct {
	report *upload.Report
	calls  *[]string
}

func (f *fakeUploader) UploadTargets(ctx context.Context, targets []config.UploadTarget) (*upload.Report, error) {
	*f.calls = append(*f.calls, "upload")
	return f.report, nil
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	var calls []string
	targets := []config.UploadTarget{{LocalDir: "results", Prefix: "results/"}}
	p := NewPipeline(
		&fakeIngester{series: testSeries(5), calls: &calls},
		datasource.FetchRequest{Symbol: "TQQQ"},
		&fakeSearcher{calls: &calls},
		&fakeUploader{report: &upload.Report{Uploaded: 3}, calls: &calls},
		targets, t.TempDir(), quietLogger(),
	)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "search", "upload"}, calls)
	assert.Equal(t, 5, result.Bars)
	assert.Equal(t, 5, result.Summary.Records)
	assert.Equal(t, 3, result.Upload.Uploaded)
}

func TestPipelineStopsOnFailure(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		var calls []string
		p := NewPipeline(&fakeIngester{err: errors.New("down"), calls: &calls}, datasource.FetchRequest{},
			&fakeSearcher{calls: &calls}, nil, nil, t.TempDir(), quietLogger())
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch step failed")
		assert.Equal(t, []string{"fetch"}, calls)
	})

	t.Run("search", func(t *testing.T) {
		var calls []string
		targets := []config.UploadTarget{{LocalDir: "results", Prefix: "results/"}}
		p := NewPipeline(&fakeIngester{series: testSeries(5), calls: &calls}, datasource.FetchRequest{},
			&fakeSearcher{err: errors.New("disk full"), calls: &calls},
			&fakeUploader{report: &upload.Report{}, calls: &calls}, targets, t.TempDir(), quietLogger())
		result, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search step failed")
		assert.NotNil(t, result.Summary)
		assert.Equal(t, []string{"fetch", "search"}, calls)
	})

	t.Run("no uploader", func(t *testing.T) {
		var calls []string
		p := NewPipeline(&fakeIngester{series: testSeries(5), calls: &calls}, datasource.FetchRequest{},
			&fakeSearcher{calls: &calls}, nil, nil, t.TempDir(), quietLogger())
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Nil(t, result.Upload)
		assert.Equal(t, []string{"fetch", "search"}, calls)
	})
}

func TestPipelineWritesUploadFailureLog(t *testing.T) {
	var calls []string
	logDir := t.TempDir()
	report := &upload.Report{
		Uploaded: 1,
		Failed:   []upload.FailedFile{{LocalPath: "results/a.csv", Key: "results/a.csv", Err: errors.New("denied")}},
	}
	targets := []config.UploadTarget{{LocalDir: "results", Prefix: "results/"}}
	p := NewPipeline(&fakeIngester{series: testSeries(5), calls: &calls}, datasource.FetchRequest{},
		&fakeSearcher{calls: &calls}, &fakeUploader{report: report, calls: &calls}, targets, logDir, quietLogger())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload step failed for 1 files")

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "upload_failed_log_")
}
