package backtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConsoleReport(t *testing.T) {
	engine := newTestEngine(t, 40)
	result, err := engine.Run(seriesFromCloses(dipThenRally()), scenarioParams)
	require.NoError(t, err)

	report := GenerateConsoleReport(result)
	assert.Contains(t, report, "MACD(3,6,2) RSI(4,90,10)")
	assert.Contains(t, report, "Buy & Hold Value")
	assert.Contains(t, report, "Trades               : 1")
}

func TestGenerateTraceCSV(t *testing.T) {
	engine := newTestEngine(t, 40)
	result, err := engine.Run(seriesFromCloses(dipThenRally()), scenarioParams)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "traces", TraceFileName(1, result))
	require.NoError(t, GenerateTraceCSV(result, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 41)
	assert.Equal(t, "Date,Close,Buy_Signal,Sell_Signal,Cash,Shares,Position,Strategy,BuyHold", lines[0])
	assert.Equal(t, "top01_macd_3_6_2_rsi_4_90_10.csv", filepath.Base(path))
}
