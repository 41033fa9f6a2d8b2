package backtest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// GenerateConsoleReport formats metrics for terminal output
func GenerateConsoleReport(result *Result) string {
	m := result.Metrics
	var builder strings.Builder
	builder.WriteString("=== Strategy Performance ===\n")
	builder.WriteString(fmt.Sprintf("Parameters           : %s\n", result.Params))
	builder.WriteString(fmt.Sprintf("Period               : %s to %s\n", m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Initial Capital      : $%.2f\n", m.InitialCash))
	builder.WriteString(fmt.Sprintf("Final Portfolio Value: $%.2f\n", m.FinalValue))
	builder.WriteString(fmt.Sprintf("Buy & Hold Value     : $%.2f\n", m.BuyHoldValue))
	builder.WriteString(fmt.Sprintf("Annual Return        : %s\n", percent(m.AnnualReturn)))
	builder.WriteString(fmt.Sprintf("Annual Volatility    : %s\n", percent(m.AnnualVolatility)))
	builder.WriteString(fmt.Sprintf("Sharpe Ratio         : %s\n", decimal2(m.SharpeRatio)))
	builder.WriteString(fmt.Sprintf("Max Drawdown         : %s\n", percent(m.MaxDrawdown)))
	builder.WriteString(fmt.Sprintf("Trades               : %d\n", m.Trades))
	return builder.String()
}

// GenerateTraceCSV writes the run's signals and portfolio values to outputPath
func GenerateTraceCSV(result *Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := result.Trace.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TraceFileName names the trace export of a parameter tuple
func TraceFileName(rank int, result *Result) string {
	p := result.Params
	return fmt.Sprintf("top%02d_macd_%d_%d_%d_rsi_%d_%g_%g.csv",
		rank, p.MACDFast, p.MACDSlow, p.MACDSignal, p.RSIWindow, p.RSIBuyThreshold, p.RSISellThreshold)
}

func percent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func decimal2(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
