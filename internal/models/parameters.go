package models

import "fmt"

// StrategyParameters is one MACD/RSI parameter tuple
type StrategyParameters struct {
	MACDFast         int     `json:"macd_fast" mapstructure:"macd_fast"`
	MACDSlow         int     `json:"macd_slow" mapstructure:"macd_slow"`
	MACDSignal       int     `json:"macd_signal" mapstructure:"macd_signal"`
	RSIWindow        int     `json:"rsi_window" mapstructure:"rsi_window"`
	RSIBuyThreshold  float64 `json:"rsi_buy" mapstructure:"rsi_buy"`
	RSISellThreshold float64 `json:"rsi_sell" mapstructure:"rsi_sell"`
}

// DefaultParameters mirrors the classic 12/26/9 MACD with a 14 bar RSI
func DefaultParameters() StrategyParameters {
	return StrategyParameters{
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		RSIWindow:        14,
		RSIBuyThreshold:  30,
		RSISellThreshold: 70,
	}
}

// IsValidCombination reports whether the fast span is strictly below the slow span.
// Invalid combinations are skipped by the grid, not reported as failures.
func (p StrategyParameters) IsValidCombination() bool {
	return p.MACDFast < p.MACDSlow
}

// Validate checks the ranges required by the indicator calculator
func (p StrategyParameters) Validate() error {
	if p.MACDFast <= 0 || p.MACDSlow <= 0 || p.MACDSignal <= 0 {
		return fmt.Errorf("%w: macd spans must be positive", ErrInvalidParameters)
	}
	if !p.IsValidCombination() {
		return fmt.Errorf("%w: macd_fast %d must be below macd_slow %d", ErrInvalidParameters, p.MACDFast, p.MACDSlow)
	}
	if p.RSIWindow < 2 {
		return fmt.Errorf("%w: rsi_window must be at least 2", ErrInvalidParameters)
	}
	if p.RSIBuyThreshold < 0 || p.RSIBuyThreshold > 100 || p.RSISellThreshold < 0 || p.RSISellThreshold > 100 {
		return fmt.Errorf("%w: rsi thresholds must be within [0,100]", ErrInvalidParameters)
	}
	return nil
}

// String renders the tuple the way error logs print it
func (p StrategyParameters) String() string {
	return fmt.Sprintf("MACD(%d,%d,%d) RSI(%d,%g,%g)",
		p.MACDFast, p.MACDSlow, p.MACDSignal, p.RSIWindow, p.RSIBuyThreshold, p.RSISellThreshold)
}
