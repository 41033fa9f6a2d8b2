package strategy

import (
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// MACDRSIStrategy buys when MACD is above its signal line while RSI is below
// the buy threshold, and sells when MACD is below the signal line while RSI
// is above the sell threshold.
type MACDRSIStrategy struct {
	params     models.StrategyParameters
	calculator *indicator.Calculator
}

// NewMACDRSIStrategy creates the strategy; calc may be nil
func NewMACDRSIStrategy(params models.StrategyParameters, calc *indicator.Calculator) *MACDRSIStrategy {
	if calc == nil {
		calc = indicator.NewCalculator(nil)
	}
	return &MACDRSIStrategy{params: params, calculator: calc}
}

// Name returns the strategy name
func (s *MACDRSIStrategy) Name() string {
	return "macd_rsi"
}

// Parameters returns the parameter tuple
func (s *MACDRSIStrategy) Parameters() models.StrategyParameters {
	return s.params
}

// GenerateSignals computes indicators and derives the buy/sell flags
func (s *MACDRSIStrategy) GenerateSignals(series *models.PriceSeries) (*SignalFrame, error) {
	frame, err := s.calculator.Compute(series, s.params)
	if err != nil {
		return nil, fmt.Errorf("indicator calculation failed: %w", err)
	}
	return ApplyThresholds(frame, s.params.RSIBuyThreshold, s.params.RSISellThreshold), nil
}

// ApplyThresholds derives buy/sell flags from an indicator frame. Comparisons
// against NaN are false, so warm-up bars never trigger.
func ApplyThresholds(frame *indicator.Frame, buyThreshold, sellThreshold float64) *SignalFrame {
	n := frame.Len()
	signals := &SignalFrame{
		Frame: frame,
		Buy:   make([]bool, n),
		Sell:  make([]bool, n),
	}
	for t := 0; t < n; t++ {
		macd, signal, rsi := frame.MACD[t], frame.Signal[t], frame.RSI[t]
		signals.Buy[t] = macd > signal && rsi < buyThreshold
		signals.Sell[t] = macd < signal && rsi > sellThreshold
	}
	return signals
}
