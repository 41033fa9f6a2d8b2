package backtest

import (
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/strategy"
)

// Simulate walks the signal frame once with a binary long/flat position.
// A buy is checked before a sell on every bar, so at most one trade happens per bar.
func Simulate(signals *strategy.SignalFrame, initialCash float64) (PortfolioTrace, *PortfolioState, error) {
	if signals == nil || signals.Len() == 0 {
		return nil, nil, models.ErrEmptySeries
	}
	state, err := NewPortfolioState(initialCash)
	if err != nil {
		return nil, nil, err
	}

	firstClose := signals.Close[0]
	if firstClose <= 0 {
		return nil, nil, fmt.Errorf("%w: first close %g", models.ErrNonPositivePrice, firstClose)
	}

	trace := make(PortfolioTrace, 0, signals.Len())
	for t := 0; t < signals.Len(); t++ {
		price := signals.Close[t]

		if signals.Buy[t] && state.Position == PositionFlat {
			if err := state.Buy(price); err != nil {
				return nil, nil, fmt.Errorf("bar %d: %w", t, err)
			}
		} else if signals.Sell[t] && state.Position == PositionLong {
			state.Sell(price)
		}

		trace = append(trace, TracePoint{
			Date:     signals.Dates[t],
			Close:    price,
			Buy:      signals.Buy[t],
			Sell:     signals.Sell[t],
			Cash:     state.Cash,
			Shares:   state.Shares,
			Position: state.Position,
			Value:    state.Value(price),
			BuyHold:  initialCash * price / firstClose,
		})
	}

	return trace, state, nil
}
