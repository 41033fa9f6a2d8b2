package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const alpacaSourceName = "alpaca"

// BarsClient is the subset of the Alpaca market data client used here
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaBarSource fetches split-adjusted bars from Alpaca market data
type AlpacaBarSource struct {
	client BarsClient
}

// NewAlpacaBarSource wraps a market data client
func NewAlpacaBarSource(client BarsClient) *AlpacaBarSource {
	return &AlpacaBarSource{client: client}
}

// NewAlpacaMarketDataClient builds a market data client from credentials
func NewAlpacaMarketDataClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   dataURL,
	})
}

// Name returns the data source name
func (a *AlpacaBarSource) Name() string {
	return alpacaSourceName
}

// FetchSeries retrieves bars for the request's range
func (a *AlpacaBarSource) FetchSeries(ctx context.Context, req FetchRequest) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeFrame, err := alpacaTimeFrame(req.Interval)
	if err != nil {
		return nil, NewDataSourceError(alpacaSourceName, ErrCodeInvalidData, "unsupported interval", err)
	}

	start := time.Now()
	bars, err := a.client.GetBars(req.Symbol, marketdata.GetBarsRequest{
		TimeFrame:  timeFrame,
		Adjustment: marketdata.All,
		Start:      req.Start,
		End:        req.End,
	})
	metrics.RecordPriceRequest(alpacaSourceName, err == nil, time.Since(start).Seconds())
	if err != nil {
		return nil, NewDataSourceError(alpacaSourceName, ErrCodeNetworkError, "failed to fetch bars", err)
	}
	if len(bars) == 0 {
		return nil, NewDataSourceError(alpacaSourceName, ErrCodeNotFound, "no bars in range", ErrNoData)
	}

	out := make([]models.PriceBar, 0, len(bars))
	for _, bar := range bars {
		t := bar.Timestamp.UTC()
		out = append(out, models.PriceBar{
			Date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: float64(bar.Volume),
		})
	}
	return models.NewPriceSeries(req.Symbol, NormalizeBars(out))
}

func alpacaTimeFrame(interval string) (marketdata.TimeFrame, error) {
	if err := CheckInterval(interval); err != nil {
		return marketdata.TimeFrame{}, err
	}
	switch interval {
	case "", "1d":
		return marketdata.OneDay, nil
	case "1wk":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case "1mo":
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("interval %q", interval)
}
