package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strategySignals struct {
	frame *indicator.Frame
	buy   []bool
	sell  []bool
}

func (s *strategySignals) build() *strategy.SignalFrame {
	return &strategy.SignalFrame{Frame: s.frame, Buy: s.buy, Sell: s.sell}
}

func traceFromValues(values []float64, step time.Duration) PortfolioTrace {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	trace := make(PortfolioTrace, len(values))
	for i, v := range values {
		trace[i] = TracePoint{Date: start.Add(time.Duration(i) * step), Value: v, BuyHold: v}
	}
	return trace
}

func TestCalculateMetrics(t *testing.T) {
	trace := traceFromValues([]float64{100, 110, 99, 121}, 24*time.Hour)

	metrics, err := CalculateMetrics(trace, 100)
	require.NoError(t, err)

	returns := []float64{0.1, -0.1, 121.0/99.0 - 1}
	mean := (returns[0] + returns[1] + returns[2]) / 3
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / 2)

	assert.Equal(t, 121.0, metrics.FinalValue)
	assert.Equal(t, 3, metrics.ElapsedDays)
	assert.InDelta(t, math.Pow(1.21, 365.0/3)-1, metrics.AnnualReturn, 1e-6*math.Pow(1.21, 365.0/3))
	assert.InDelta(t, std*math.Sqrt(252), metrics.AnnualVolatility, 1e-12)
	assert.InDelta(t, mean/std*math.Sqrt(252), metrics.SharpeRatio, 1e-12)
	assert.InDelta(t, -0.1, metrics.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.21, metrics.TotalReturn, 1e-12)
}

func TestCalculateMetricsErrors(t *testing.T) {
	_, err := CalculateMetrics(nil, 100)
	assert.Error(t, err)

	_, err = CalculateMetrics(traceFromValues([]float64{1}, time.Hour), 0)
	assert.Error(t, err)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "non-decreasing", values: []float64{1, 1, 2, 3, 3}, want: 0},
		{name: "single dip", values: []float64{10, 5, 20}, want: -0.5},
		{name: "deeper later", values: []float64{10, 8, 20, 5}, want: -0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateMaxDrawdown(tt.values)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestSharpeRatioSentinels(t *testing.T) {
	assert.True(t, math.IsNaN(calculateSharpeRatio([]float64{0, 0, 0})))
	assert.True(t, math.IsNaN(calculateSharpeRatio([]float64{0.1})))
	assert.False(t, math.IsNaN(calculateSharpeRatio([]float64{0.01, 0.02, -0.01, 0.03})))
}

func TestAnnualReturnZeroDays(t *testing.T) {
	assert.True(t, math.IsNaN(calculateAnnualReturn(100, 120, 0)))
}

func TestMetricsToJSONDropsNaN(t *testing.T) {
	trace := traceFromValues([]float64{100}, time.Hour)
	metrics, err := CalculateMetrics(trace, 100)
	require.NoError(t, err)

	out := metrics.ToJSON()
	assert.Contains(t, out, `"sharpe_ratio":null`)
	assert.Contains(t, out, `"final_value":100`)
}
