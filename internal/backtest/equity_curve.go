package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// TracePoint is one bar of a simulated portfolio
type TracePoint struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	Buy      bool      `json:"buy"`
	Sell     bool      `json:"sell"`
	Cash     float64   `json:"cash"`
	Shares   float64   `json:"shares"`
	Position Position  `json:"position"`
	Value    float64   `json:"value"`
	BuyHold  float64   `json:"buy_hold"`
}

// PortfolioTrace is the per-bar portfolio series produced by the simulator
type PortfolioTrace []TracePoint

// Values returns the portfolio value column
func (p PortfolioTrace) Values() []float64 {
	values := make([]float64, len(p))
	for i, point := range p {
		values[i] = point.Value
	}
	return values
}

// GetReturns calculates bar-over-bar percentage changes, first bar excluded
func (p PortfolioTrace) GetReturns() []float64 {
	if len(p) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		returns = append(returns, p[i].Value/p[i-1].Value-1)
	}
	return returns
}

// ElapsedDays returns calendar days between the first and last bar
func (p PortfolioTrace) ElapsedDays() int {
	if len(p) == 0 {
		return 0
	}
	return int(p[len(p)-1].Date.Sub(p[0].Date).Hours() / 24)
}

// WriteCSV exports the trace with signals for charting
func (p PortfolioTrace) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Close", "Buy_Signal", "Sell_Signal", "Cash", "Shares", "Position", "Strategy", "BuyHold"}); err != nil {
		return err
	}
	for _, point := range p {
		row := []string{
			point.Date.Format(models.DateLayout),
			formatFloat(point.Close),
			strconv.FormatBool(point.Buy),
			strconv.FormatBool(point.Sell),
			formatFloat(point.Cash),
			formatFloat(point.Shares),
			strconv.Itoa(int(point.Position)),
			formatFloat(point.Value),
			formatFloat(point.BuyHold),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write trace row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
