package service

import (
	"fmt"
	"math"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultMaxGap is the longest calendar gap between bars before a warning
const DefaultMaxGap = 10 * 24 * time.Hour

// DataValidator validates fetched price bars
type DataValidator struct {
	logger *logrus.Entry
	maxGap time.Duration
}

// NewDataValidator creates a new data validator
func NewDataValidator(logger *logrus.Logger) *DataValidator {
	if logger == nil {
		logger = logrus.New()
	}
	return &DataValidator{
		logger: logger.WithField("component", "validator"),
		maxGap: DefaultMaxGap,
	}
}

// ValidateBar validates one bar for required fields and constraints
func (v *DataValidator) ValidateBar(bar models.PriceBar) []string {
	var errors []string

	if bar.Date.IsZero() {
		errors = append(errors, "date is required")
	}

	if math.IsNaN(bar.Close) || bar.Close <= 0 {
		errors = append(errors, fmt.Sprintf("close must be positive, got %g", bar.Close))
	}

	if bar.Open < 0 || bar.High < 0 || bar.Low < 0 {
		errors = append(errors, "prices cannot be negative")
	}

	// High and Low are optional; zero means the provider did not send them
	if bar.High > 0 && bar.Low > 0 && bar.High < bar.Low {
		errors = append(errors, fmt.Sprintf("high %g below low %g", bar.High, bar.Low))
	}

	if bar.Volume < 0 {
		errors = append(errors, "volume cannot be negative")
	}

	return errors
}

// ValidateSeries drops invalid bars and reports what it found. Calendar gaps
// longer than the configured maximum are reported but kept.
func (v *DataValidator) ValidateSeries(series *models.PriceSeries, m *IngestionMetrics) (*models.PriceSeries, []string, error) {
	if series.Len() == 0 {
		return nil, nil, models.ErrEmptySeries
	}

	var issues []string
	kept := make([]models.PriceBar, 0, series.Len())
	for _, bar := range series.Bars {
		if problems := v.ValidateBar(bar); len(problems) > 0 {
			for _, p := range problems {
				issues = append(issues, fmt.Sprintf("%s: %s", bar.Date.Format(models.DateLayout), p))
			}
			v.logger.WithFields(logrus.Fields{
				"date":   bar.Date.Format(models.DateLayout),
				"errors": problems,
			}).Warn("Dropping invalid bar")
			if m != nil {
				m.RecordValidationError()
			}
			continue
		}
		kept = append(kept, bar)
	}

	for i := 1; i < len(kept); i++ {
		gap := kept[i].Date.Sub(kept[i-1].Date)
		if v.maxGap > 0 && gap > v.maxGap {
			issues = append(issues, fmt.Sprintf("%s: gap of %d days since previous bar",
				kept[i].Date.Format(models.DateLayout), int(gap.Hours()/24)))
			if m != nil {
				m.RecordGap()
			}
		}
	}

	if len(kept) == 0 {
		return nil, issues, models.ErrEmptySeries
	}

	cleaned, err := models.NewPriceSeries(series.Symbol, kept)
	if err != nil {
		return nil, issues, err
	}
	if m != nil {
		m.RecordValid(len(kept))
	}
	return cleaned, issues, nil
}
