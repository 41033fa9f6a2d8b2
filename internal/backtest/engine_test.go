package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioParams = models.StrategyParameters{
	MACDFast:         3,
	MACDSlow:         6,
	MACDSignal:       2,
	RSIWindow:        4,
	RSIBuyThreshold:  90,
	RSISellThreshold: 10,
}

func seriesFromCloses(closes []float64) *models.PriceSeries {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return &models.PriceSeries{Symbol: "TQQQ", Bars: bars}
}

// dipThenRally falls 2 per bar for 10 bars then rises 3 per bar for 30 bars
func dipThenRally() []float64 {
	closes := make([]float64, 0, 40)
	for i := 0; i < 10; i++ {
		closes = append(closes, 100-2*float64(i))
	}
	for i := 1; i <= 30; i++ {
		closes = append(closes, 82+3*float64(i))
	}
	return closes
}

func newTestEngine(t *testing.T, windowLength int) *Engine {
	t.Helper()
	cfg := BacktestConfig{InitialCash: 10000, WindowLength: windowLength, HighPerformerX: 16}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	engine, err := NewEngine(cfg, indicator.NewCalculator(nil), logger)
	require.NoError(t, err)
	return engine
}

func TestEngineFlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 64)
	for i := range closes {
		closes[i] = 50
	}
	engine := newTestEngine(t, 63)

	result, err := engine.Run(seriesFromCloses(closes), scenarioParams)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, result.Metrics.FinalValue)
	assert.Equal(t, 0, result.Metrics.Trades)
	assert.Equal(t, 0.0, result.Metrics.MaxDrawdown)
	assert.True(t, math.IsNaN(result.Metrics.SharpeRatio))
	assert.Equal(t, 0.0, result.Metrics.AnnualVolatility)
	assert.InDelta(t, 0.0, result.Metrics.AnnualReturn, 1e-12)
}

// Without a down bar the average loss is zero and RSI stays at 100, above the buy threshold.
func TestEngineRisingSeriesStaysFlat(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	engine := newTestEngine(t, 40)

	result, err := engine.Run(seriesFromCloses(closes), scenarioParams)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Metrics.Trades)
	assert.Equal(t, 10000.0, result.Metrics.FinalValue)
	assert.InDelta(t, 10000*49.0/10.0, result.Metrics.BuyHoldValue, 1e-9)
}

func TestEngineBuysOnceAndHolds(t *testing.T) {
	closes := dipThenRally()
	engine := newTestEngine(t, len(closes))

	result, err := engine.Run(seriesFromCloses(closes), scenarioParams)
	require.NoError(t, err)

	buyBar := -1
	for i, point := range result.Trace {
		if point.Position == PositionLong {
			buyBar = i
			break
		}
	}
	require.Equal(t, 10, buyBar)
	assert.Equal(t, 1, result.Metrics.Trades)

	last := closes[len(closes)-1]
	assert.InDelta(t, 10000*last/closes[buyBar], result.Metrics.FinalValue, 1e-6)
	assert.Equal(t, PositionLong, result.Trace[len(result.Trace)-1].Position)
}

func TestEngineSingleBarWindowRecordsSentinel(t *testing.T) {
	engine := newTestEngine(t, 1)
	series := seriesFromCloses([]float64{10, 11, 12})

	result, err := engine.RunWindow(series, 1, scenarioParams)
	require.NoError(t, err)

	record := result.Record()
	assert.Equal(t, 0, result.Metrics.ElapsedDays)
	assert.True(t, math.IsNaN(record.AnnualReturn))
	assert.True(t, math.IsNaN(record.SharpeRatio))
	assert.True(t, math.IsNaN(record.AnnualVolatility))
	assert.Equal(t, 10000.0, record.FinalValue)
	assert.Equal(t, series.Bars[1].Date, record.StartDate)
	assert.Equal(t, series.Bars[1].Date, record.EndDate)
}

func TestEngineRunWindowOutOfRange(t *testing.T) {
	engine := newTestEngine(t, 5)
	_, err := engine.RunWindow(seriesFromCloses([]float64{1, 2, 3}), 0, scenarioParams)
	assert.Error(t, err)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(BacktestConfig{InitialCash: 0, WindowLength: 63, HighPerformerX: 16}, nil, nil)
	assert.Error(t, err)
}

func TestSimulateHoldsExactlyOneOfCashOrShares(t *testing.T) {
	closes := []float64{10, 9, 8, 9, 11, 12, 10, 8, 7, 9, 12, 14, 13, 11, 10, 12, 15, 16, 14, 12}
	engine := newTestEngine(t, len(closes))
	params := models.StrategyParameters{MACDFast: 2, MACDSlow: 4, MACDSignal: 2, RSIWindow: 2, RSIBuyThreshold: 80, RSISellThreshold: 20}

	result, err := engine.Run(seriesFromCloses(closes), params)
	require.NoError(t, err)

	for i, point := range result.Trace {
		switch point.Position {
		case PositionFlat:
			assert.Zero(t, point.Shares, "bar %d", i)
			assert.Positive(t, point.Cash, "bar %d", i)
		case PositionLong:
			assert.Zero(t, point.Cash, "bar %d", i)
			assert.Positive(t, point.Shares, "bar %d", i)
		}
		assert.InDelta(t, point.Cash+point.Shares*point.Close, point.Value, 1e-9)
	}
}

func TestSimulateChecksBuyBeforeSell(t *testing.T) {
	frame := &indicator.Frame{
		Dates: seriesFromCloses([]float64{10, 20, 40}).Dates(),
		Close: []float64{10, 20, 40},
	}
	signals := &strategySignals{frame: frame, buy: []bool{true, true, true}, sell: []bool{true, true, false}}

	trace, state, err := Simulate(signals.build(), 1000)
	require.NoError(t, err)

	// bar 0 buys, bar 1 sells because buy is ignored while long, bar 2 buys again
	assert.Equal(t, PositionLong, trace[0].Position)
	assert.Equal(t, PositionFlat, trace[1].Position)
	assert.Equal(t, 2000.0, trace[1].Cash)
	assert.Equal(t, PositionLong, trace[2].Position)
	assert.Equal(t, 3, state.Trades)
	assert.Equal(t, 4000.0, trace[2].BuyHold)
}
