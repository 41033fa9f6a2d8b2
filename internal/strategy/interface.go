package strategy

import (
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// Strategy turns a price series into per-bar buy/sell flags
type Strategy interface {
	Name() string
	Parameters() models.StrategyParameters
	GenerateSignals(series *models.PriceSeries) (*SignalFrame, error)
}

// SignalFrame is an indicator frame with boolean buy/sell flags per bar
type SignalFrame struct {
	*indicator.Frame
	Buy  []bool
	Sell []bool
}

// StrategyMetadata describes a strategy for reports
type StrategyMetadata struct {
	Name       string                    `json:"name"`
	Parameters models.StrategyParameters `json:"parameters"`
}

// Metadata returns the report metadata for a strategy
func Metadata(s Strategy) StrategyMetadata {
	return StrategyMetadata{Name: s.Name(), Parameters: s.Parameters()}
}
