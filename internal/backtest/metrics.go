package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear annualizes daily return statistics
	TradingDaysPerYear = 252
	// CalendarDaysPerYear annualizes the compounded return
	CalendarDaysPerYear = 365.0
)

// Metrics represents the summary statistics of one simulated run.
// AnnualReturn, AnnualVolatility and SharpeRatio are NaN when undefined.
type Metrics struct {
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	ElapsedDays      int       `json:"elapsed_days"`
	InitialCash      float64   `json:"initial_cash"`
	FinalValue       float64   `json:"final_value"`
	BuyHoldValue     float64   `json:"buy_hold_value"`
	TotalReturn      float64   `json:"total_return"`
	AnnualReturn     float64   `json:"annual_return"`
	AnnualVolatility float64   `json:"annual_volatility"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	Trades           int       `json:"trades"`
}

// CalculateMetrics reduces a portfolio trace to its summary statistics
func CalculateMetrics(trace PortfolioTrace, initialCash float64) (Metrics, error) {
	if len(trace) == 0 {
		return Metrics{}, models.ErrEmptySeries
	}
	if initialCash <= 0 {
		return Metrics{}, models.ErrNonPositiveCash
	}

	last := trace[len(trace)-1]
	metrics := Metrics{
		StartDate:    trace[0].Date,
		EndDate:      last.Date,
		ElapsedDays:  trace.ElapsedDays(),
		InitialCash:  initialCash,
		FinalValue:   last.Value,
		BuyHoldValue: last.BuyHold,
		TotalReturn:  last.Value/initialCash - 1,
	}

	metrics.AnnualReturn = calculateAnnualReturn(initialCash, last.Value, metrics.ElapsedDays)
	returns := trace.GetReturns()
	metrics.AnnualVolatility = calculateAnnualVolatility(returns)
	metrics.SharpeRatio = calculateSharpeRatio(returns)
	metrics.MaxDrawdown = calculateMaxDrawdown(trace.Values())

	return metrics, nil
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(nanToNull(m))
	return string(data)
}

// Record flattens the metrics into a persisted result row
func (m Metrics) Record(params models.StrategyParameters) models.ResultRecord {
	return models.ResultRecord{
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		Params:           params,
		FinalValue:       m.FinalValue,
		AnnualReturn:     m.AnnualReturn,
		AnnualVolatility: m.AnnualVolatility,
		SharpeRatio:      m.SharpeRatio,
		MaxDrawdown:      m.MaxDrawdown,
	}
}

func calculateAnnualReturn(initial, final float64, days int) float64 {
	if days <= 0 {
		return math.NaN()
	}
	return math.Pow(final/initial, CalendarDaysPerYear/float64(days)) - 1
}

func calculateAnnualVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
}

func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// calculateMaxDrawdown returns min(value/runningMax - 1), always <= 0
func calculateMaxDrawdown(values []float64) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// nanToNull replaces NaN sentinels so the metrics marshal as JSON
func nanToNull(m Metrics) map[string]interface{} {
	field := func(v float64) interface{} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	return map[string]interface{}{
		"start_date":        m.StartDate.Format(models.DateLayout),
		"end_date":          m.EndDate.Format(models.DateLayout),
		"elapsed_days":      m.ElapsedDays,
		"initial_cash":      m.InitialCash,
		"final_value":       field(m.FinalValue),
		"buy_hold_value":    field(m.BuyHoldValue),
		"total_return":      field(m.TotalReturn),
		"annual_return":     field(m.AnnualReturn),
		"annual_volatility": field(m.AnnualVolatility),
		"sharpe_ratio":      field(m.SharpeRatio),
		"max_drawdown":      field(m.MaxDrawdown),
		"trades":            m.Trades,
	}
}
