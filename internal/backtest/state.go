package backtest

import (
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// Position is the binary long/flat position flag
type Position int

const (
	PositionFlat Position = 0
	PositionLong Position = 1
)

// PortfolioState tracks cash and shares while the simulator walks a series.
// Exactly one of Cash and Shares is non-zero once the first trade happened.
type PortfolioState struct {
	Cash     float64
	Shares   float64
	Position Position
	Trades   int
}

// NewPortfolioState starts flat with all capital in cash
func NewPortfolioState(initialCash float64) (*PortfolioState, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("%w: %g", models.ErrNonPositiveCash, initialCash)
	}
	return &PortfolioState{Cash: initialCash, Position: PositionFlat}, nil
}

// Buy converts all cash into shares at price
func (s *PortfolioState) Buy(price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: %g", models.ErrNonPositivePrice, price)
	}
	s.Shares = s.Cash / price
	s.Cash = 0
	s.Position = PositionLong
	s.Trades++
	return nil
}

// Sell liquidates all shares at price
func (s *PortfolioState) Sell(price float64) {
	s.Cash = s.Shares * price
	s.Shares = 0
	s.Position = PositionFlat
	s.Trades++
}

// Value marks the portfolio to price
func (s *PortfolioState) Value(price float64) float64 {
	return s.Cash + s.Shares*price
}
