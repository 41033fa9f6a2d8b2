// Package service wires the data, grid and upload packages into the
// workflows run by the command line tools and the scheduler.
package service

import (
	"context"
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/datasource"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/sirupsen/logrus"
)

// IngestionService handles the price fetch workflow
type IngestionService struct {
	source    datasource.PriceSource
	validator *DataValidator
	metrics   *IngestionMetrics
	logger    *logrus.Entry
	csvPath   string
}

// NewIngestionService creates a new ingestion service. An empty csvPath
// skips saving.
func NewIngestionService(source datasource.PriceSource, validator *DataValidator, csvPath string, logger *logrus.Logger) *IngestionService {
	if logger == nil {
		logger = logrus.New()
	}
	if validator == nil {
		validator = NewDataValidator(logger)
	}
	return &IngestionService{
		source:    source,
		validator: validator,
		metrics:   NewIngestionMetrics(),
		logger:    logger.WithField("component", "ingestion"),
		csvPath:   csvPath,
	}
}

// Ingest fetches the requested series, drops invalid bars and saves the
// normalized CSV.
func (s *IngestionService) Ingest(ctx context.Context, req datasource.FetchRequest) (*models.PriceSeries, *IngestionMetrics, error) {
	s.metrics.Reset()
	defer s.metrics.Finish()

	log := s.logger.WithFields(logrus.Fields{
		"source": s.source.Name(),
		"symbol": req.Symbol,
	})
	log.Info("Starting price ingestion")

	series, err := s.source.FetchSeries(ctx, req)
	if err != nil {
		s.metrics.RecordError()
		log.WithError(err).Error("Failed to fetch prices")
		return nil, s.metrics, fmt.Errorf("failed to fetch prices: %w", err)
	}
	s.metrics.RecordFetched(series.Len())

	cleaned, issues, err := s.validator.ValidateSeries(series, s.metrics)
	if err != nil {
		s.metrics.RecordError()
		return nil, s.metrics, fmt.Errorf("price validation failed: %w", err)
	}
	if len(issues) > 0 {
		log.WithField("issues", len(issues)).Warn("Price series has validation issues")
	}

	if s.csvPath != "" {
		if err := datasource.SavePriceCSV(s.csvPath, cleaned); err != nil {
			s.metrics.RecordError()
			return cleaned, s.metrics, fmt.Errorf("failed to save prices: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"bars":  cleaned.Len(),
		"first": cleaned.First().Format(models.DateLayout),
		"last":  cleaned.Last().Format(models.DateLayout),
		"path":  s.csvPath,
	}).Info("Price ingestion complete")

	return cleaned, s.metrics, nil
}
