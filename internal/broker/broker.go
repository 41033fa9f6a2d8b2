// Package broker submits orders and reads account state from a brokerage.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order direction
type Side string

// Order sides
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts buy/sell in any case
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// Sentinel errors
var (
	ErrInvalidSide     = errors.New("invalid order side")
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrNoPrice         = errors.New("no price available")
)

// OrderRequest is a market order
type OrderRequest struct {
	Symbol string
	Qty    decimal.Decimal
	Side   Side
}

// Validate checks symbol, side and quantity
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("order symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: %q", ErrInvalidSide, r.Side)
	}
	if !r.Qty.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// OrderRef identifies a submitted order
type OrderRef struct {
	ID            string
	ClientOrderID string
	Status        string
	SubmittedAt   time.Time
}

// Position is an open holding
type Position struct {
	Symbol      string
	Qty         decimal.Decimal
	AvgEntry    decimal.Decimal
	MarketValue decimal.Decimal
}

// AccountSummary is the subset of account fields reported by the CLI
type AccountSummary struct {
	ID          string
	Currency    string
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	BuyingPower decimal.Decimal
}

// Broker is the brokerage collaborator used by the execution CLI
type Broker interface {
	Positions(ctx context.Context) ([]Position, error)
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderRef, error)
	Account(ctx context.Context) (AccountSummary, error)
	Close() error
}
