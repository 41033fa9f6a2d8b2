package models

import "github.com/samber/lo"

// ParameterGrid holds the candidate values per StrategyParameters field
type ParameterGrid struct {
	MACDFast   []int     `json:"macd_fast" mapstructure:"macd_fast"`
	MACDSlow   []int     `json:"macd_slow" mapstructure:"macd_slow"`
	MACDSignal []int     `json:"macd_signal" mapstructure:"macd_signal"`
	RSIWindow  []int     `json:"rsi_window" mapstructure:"rsi_window"`
	RSIBuy     []float64 `json:"rsi_buy" mapstructure:"rsi_buy"`
	RSISell    []float64 `json:"rsi_sell" mapstructure:"rsi_sell"`
}

// DefaultParameterGrid is the grid swept by the 3-month explosive search
func DefaultParameterGrid() ParameterGrid {
	return ParameterGrid{
		MACDFast:   []int{3, 4, 5},
		MACDSlow:   []int{6, 8, 10},
		MACDSignal: []int{2, 4, 6},
		RSIWindow:  []int{7, 14},
		RSIBuy:     []float64{65, 70},
		RSISell:    []float64{30, 35},
	}
}

// Size returns the size of the full Cartesian product, invalid tuples included
func (g ParameterGrid) Size() int {
	return len(lo.Uniq(g.MACDFast)) * len(lo.Uniq(g.MACDSlow)) * len(lo.Uniq(g.MACDSignal)) *
		len(lo.Uniq(g.RSIWindow)) * len(lo.Uniq(g.RSIBuy)) * len(lo.Uniq(g.RSISell))
}

// Product returns every tuple of the grid in field order, duplicates removed
func (g ParameterGrid) Product() []StrategyParameters {
	out := make([]StrategyParameters, 0, g.Size())
	for _, fast := range lo.Uniq(g.MACDFast) {
		for _, slow := range lo.Uniq(g.MACDSlow) {
			for _, signal := range lo.Uniq(g.MACDSignal) {
				for _, window := range lo.Uniq(g.RSIWindow) {
					for _, buy := range lo.Uniq(g.RSIBuy) {
						for _, sell := range lo.Uniq(g.RSISell) {
							out = append(out, StrategyParameters{
								MACDFast:         fast,
								MACDSlow:         slow,
								MACDSignal:       signal,
								RSIWindow:        window,
								RSIBuyThreshold:  buy,
								RSISellThreshold: sell,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Combinations splits the product into valid tuples and a count of skipped ones
func (g ParameterGrid) Combinations() ([]StrategyParameters, int) {
	all := g.Product()
	valid := lo.Filter(all, func(p StrategyParameters, _ int) bool {
		return p.IsValidCombination()
	})
	return valid, len(all) - len(valid)
}
