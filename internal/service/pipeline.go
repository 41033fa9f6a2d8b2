package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/datasource"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/grid"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/upload"
	"github.com/sirupsen/logrus"
)

// PriceIngester fetches and saves a price series
type PriceIngester interface {
	Ingest(ctx context.Context, req datasource.FetchRequest) (*models.PriceSeries, *IngestionMetrics, error)
}

// GridSearcher runs the sliding-window grid over a series
type GridSearcher interface {
	Search(ctx context.Context, series *models.PriceSeries) (*grid.Summary, error)
}

// TargetUploader pushes result directories to object storage
type TargetUploader interface {
	UploadTargets(ctx context.Context, targets []config.UploadTarget) (*upload.Report, error)
}

// PipelineResult reports one pipeline run
type PipelineResult struct {
	Bars     int
	Summary  *grid.Summary
	Upload   *upload.Report
	Duration time.Duration
}

// Pipeline runs fetch, search and upload in order
type Pipeline struct {
	ingester PriceIngester
	request  datasource.FetchRequest
	searcher GridSearcher
	uploader TargetUploader
	targets  []config.UploadTarget
	logDir   string
	logger   *logrus.Entry
}

// NewPipeline creates a pipeline. A nil uploader skips the upload step;
// logDir receives the upload failure log.
func NewPipeline(ingester PriceIngester, req datasource.FetchRequest, searcher GridSearcher, uploader TargetUploader, targets []config.UploadTarget, logDir string, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		ingester: ingester,
		request:  req,
		searcher: searcher,
		uploader: uploader,
		targets:  targets,
		logDir:   logDir,
		logger:   logger.WithField("component", "pipeline"),
	}
}

// Run executes the pipeline. A failed step stops the steps after it.
func (p *Pipeline) Run(ctx context.Context) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{}
	defer func() { result.Duration = time.Since(start) }()

	series, metrics, err := p.ingester.Ingest(ctx, p.request)
	if err != nil {
		return result, fmt.Errorf("fetch step failed: %w", err)
	}
	result.Bars = series.Len()
	p.logger.WithField("metrics", metrics.String()).Info("Fetch step complete")

	summary, err := p.searcher.Search(ctx, series)
	result.Summary = summary
	if err != nil {
		return result, fmt.Errorf("search step failed: %w", err)
	}

	if p.uploader == nil || len(p.targets) == 0 {
		p.logger.Info("No upload targets, skipping upload step")
		return result, nil
	}

	report, err := p.uploader.UploadTargets(ctx, p.targets)
	result.Upload = report
	if err != nil {
		return result, fmt.Errorf("upload step failed: %w", err)
	}
	if report.FailedCount() > 0 {
		path, err := upload.WriteFailureLog(p.logDir, time.Now(), report)
		if err != nil {
			p.logger.WithError(err).Warn("Failed to write upload failure log")
		}
		return result, fmt.Errorf("upload step failed for %d files, see %s", report.FailedCount(), path)
	}

	p.logger.WithFields(logrus.Fields{
		"bars":     result.Bars,
		"records":  summary.Records,
		"uploaded": report.Uploaded,
	}).Info("Pipeline complete")
	return result, nil
}
