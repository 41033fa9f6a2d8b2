package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultYahooURL is the public chart API host
const DefaultYahooURL = "https://query1.finance.yahoo.com"

const yahooSourceName = "yahoo"

// YahooChartSource fetches bars from the Yahoo Finance chart API
type YahooChartSource struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	logger     *logrus.Entry
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// NewYahooChartSource creates a Yahoo chart source; an empty baseURL selects DefaultYahooURL
func NewYahooChartSource(httpClient *RateLimitedHTTPClient, baseURL string, logger *logrus.Logger) *YahooChartSource {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &YahooChartSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.WithField("source", yahooSourceName),
	}
}

// Name returns the data source name
func (y *YahooChartSource) Name() string {
	return yahooSourceName
}

// FetchSeries retrieves bars for the request's range
func (y *YahooChartSource) FetchSeries(ctx context.Context, req FetchRequest) (*models.PriceSeries, error) {
	start := time.Now()
	series, err := y.fetch(ctx, req)
	metrics.RecordPriceRequest(yahooSourceName, err == nil, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	y.logger.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"bars":   series.Len(),
		"first":  series.First().Format(models.DateLayout),
		"last":   series.Last().Format(models.DateLayout),
	}).Info("Fetched price series")
	return series, nil
}

func (y *YahooChartSource) fetch(ctx context.Context, req FetchRequest) (*models.PriceSeries, error) {
	if err := CheckInterval(req.Interval); err != nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "unsupported interval", err)
	}
	resp, err := y.httpClient.Get(ctx, y.chartURL(req))
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNetworkError, "failed to fetch chart", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNotFound, fmt.Sprintf("symbol %s not found", req.Symbol), nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewDataSourceError(yahooSourceName, ErrCodeAuthenticationFailed, "request rejected", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewDataSourceError(yahooSourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewDataSourceError(yahooSourceName, ErrCodeServerError,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "failed to parse response", err)
	}
	if chart.Chart.Error != nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNotFound, chart.Chart.Error.Description, nil)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNotFound, "empty chart result", ErrNoData)
	}

	bars, err := convertChart(chart.Chart.Result[0])
	if err != nil {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeInvalidData, "malformed chart", err)
	}
	if len(bars) == 0 {
		return nil, NewDataSourceError(yahooSourceName, ErrCodeNotFound, "no bars in range", ErrNoData)
	}
	return models.NewPriceSeries(req.Symbol, NormalizeBars(bars))
}

func (y *YahooChartSource) chartURL(req FetchRequest) string {
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	interval := req.Interval
	if interval == "" {
		interval = "1d"
	}
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", req.Start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", interval)
	q.Set("events", "history")
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(req.Symbol), q.Encode())
}

// convertChart drops bars with a missing close
func convertChart(result yahooChartResult) ([]models.PriceBar, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote indicators")
	}
	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Close) != n {
		return nil, fmt.Errorf("close has %d values for %d timestamps", len(quote.Close), n)
	}

	value := func(col []*float64, i int) float64 {
		if i < len(col) && col[i] != nil {
			return *col[i]
		}
		return 0
	}

	bars := make([]models.PriceBar, 0, n)
	for i, ts := range result.Timestamp {
		if quote.Close[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		bars = append(bars, models.PriceBar{
			Date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Open:   value(quote.Open, i),
			High:   value(quote.High, i),
			Low:    value(quote.Low, i),
			Close:  *quote.Close[i],
			Volume: value(quote.Volume, i),
		})
	}
	return bars, nil
}
