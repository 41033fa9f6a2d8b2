// Package datasource fetches daily price bars from external providers.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/samber/lo"
)

// PriceSource supplies price bars for a symbol and date range
type PriceSource interface {
	// FetchSeries returns bars sorted ascending with unique dates
	FetchSeries(ctx context.Context, req FetchRequest) (*models.PriceSeries, error)

	// Name returns the name of the data source
	Name() string
}

// FetchRequest describes the bars to fetch. A zero End means today.
type FetchRequest struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
)

// Sentinel errors
var (
	ErrNoData        = errors.New("no price data returned")
	ErrMissingColumn = errors.New("missing required column")
	ErrCircuitOpen   = errors.New("circuit breaker open")
	ErrUnknownSource = errors.New("unknown data source")
	ErrBadInterval   = errors.New("unsupported bar interval")
)

// Intervals lists the bar intervals every source accepts. Bars are keyed by
// calendar date, so intraday intervals are rejected.
var Intervals = []string{"1d", "1wk", "1mo"}

// CheckInterval returns ErrBadInterval unless interval is empty or in Intervals
func CheckInterval(interval string) error {
	if interval == "" || lo.Contains(Intervals, interval) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrBadInterval, interval)
}

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err is a DataSourceError with the given code
func IsCode(err error, code string) bool {
	var dsErr DataSourceError
	return errors.As(err, &dsErr) && dsErr.Code == code
}
