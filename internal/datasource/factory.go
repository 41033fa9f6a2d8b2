package datasource

import (
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/sirupsen/logrus"
)

// SourceType represents the type of data source
type SourceType string

const (
	// YahooSourceType fetches from the Yahoo chart API
	YahooSourceType SourceType = "yahoo"
	// AlpacaSourceType fetches from Alpaca market data
	AlpacaSourceType SourceType = "alpaca"
	// CSVSourceType reads the configured csv_path
	CSVSourceType SourceType = "csv"
)

// Factory creates PriceSource implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	config *config.Config
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// Create creates a new data source based on the type
func (f *Factory) Create(sourceType SourceType) (PriceSource, error) {
	switch sourceType {
	case YahooSourceType:
		return NewYahooChartSource(f.NewHTTPClient(), f.config.Data.ProviderURL, f.logger), nil
	case AlpacaSourceType:
		broker := f.config.Broker
		if broker.APIKey == "" || broker.APISecret == "" {
			return nil, fmt.Errorf("alpaca source requires broker api_key and api_secret")
		}
		return NewAlpacaBarSource(NewAlpacaMarketDataClient(broker.APIKey, broker.APISecret, broker.DataURL)), nil
	case CSVSourceType:
		return NewCSVFileSource(f.config.Data.CSVPath), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceType)
	}
}

// NewHTTPClient builds the rate-limited client from the data section
func (f *Factory) NewHTTPClient() *RateLimitedHTTPClient {
	cfg := DefaultHTTPClientConfig()
	data := f.config.Data
	if data.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(data.TimeoutSeconds) * time.Second
	}
	if data.MaxRetries > 0 {
		cfg.MaxRetries = data.MaxRetries
	}
	if data.RateLimit > 0 {
		cfg.RateLimit = data.RateLimit
	}
	return NewRateLimitedHTTPClient(cfg, f.logger)
}

// Request builds a fetch request from the data section
func (f *Factory) Request() (FetchRequest, error) {
	start, end, err := f.config.Data.DateRange()
	if err != nil {
		return FetchRequest{}, err
	}
	return FetchRequest{
		Symbol:   f.config.Data.Symbol,
		Start:    start,
		End:      end,
		Interval: f.config.Data.Interval,
	}, nil
}

// ListAvailableSources returns the source types the config can serve
func (f *Factory) ListAvailableSources() []SourceType {
	available := []SourceType{YahooSourceType}
	if f.config.Data.CSVPath != "" {
		available = append(available, CSVSourceType)
	}
	if f.config.Broker.APIKey != "" && f.config.Broker.APISecret != "" {
		available = append(available, AlpacaSourceType)
	}
	return available
}
