package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TradingClient is the subset of the Alpaca trading client used here
type TradingClient interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// QuoteClient is the subset of the Alpaca market data client used here
type QuoteClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaBroker implements Broker over the Alpaca REST APIs
type AlpacaBroker struct {
	trading TradingClient
	quotes  QuoteClient
	paper   bool
	audit   *logger.AuditLogger
	logger  *logrus.Entry
}

// NewAlpacaBroker wraps already constructed clients
func NewAlpacaBroker(trading TradingClient, quotes QuoteClient, paper bool, base *logrus.Logger) *AlpacaBroker {
	if base == nil {
		base = logrus.New()
	}
	return &AlpacaBroker{
		trading: trading,
		quotes:  quotes,
		paper:   paper,
		audit:   logger.NewAuditLogger(base),
		logger:  base.WithField("component", "broker"),
	}
}

// Connect builds Alpaca clients from config and verifies the credentials
func Connect(ctx context.Context, cfg *config.Config, base *logrus.Logger) (*AlpacaBroker, error) {
	if err := config.ValidateBroker(cfg); err != nil {
		return nil, err
	}
	trading := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.Broker.APIKey,
		APISecret: cfg.Broker.APISecret,
		BaseURL:   cfg.Broker.BaseURL,
	})
	quotes := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.Broker.APIKey,
		APISecret: cfg.Broker.APISecret,
		BaseURL:   cfg.Broker.DataURL,
	})

	b := NewAlpacaBroker(trading, quotes, cfg.Broker.Paper, base)
	if _, err := b.Account(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	b.logger.WithField("paper", cfg.Broker.Paper).Info("Connected to broker")
	return b, nil
}

// Positions returns every open position
func (b *AlpacaBroker) Positions(ctx context.Context) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	positions, err := b.trading.GetPositions()
	if err != nil {
		b.logger.WithError(err).Error("Fetch positions failed")
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		pos := Position{Symbol: p.Symbol, Qty: p.Qty, AvgEntry: p.AvgEntryPrice}
		if p.MarketValue != nil {
			pos.MarketValue = *p.MarketValue
		}
		out = append(out, pos)
	}
	b.logger.WithField("count", len(out)).Info("Positions fetched")
	return out, nil
}

// LastPrice returns the latest trade price for symbol
func (b *AlpacaBroker) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	trade, err := b.quotes.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch last price for %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// SubmitMarketOrder places a day market order with a generated client order ID
func (b *AlpacaBroker) SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.Validate(); err != nil {
		return OrderRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return OrderRef{}, err
	}

	qty := req.Qty
	clientOrderID := uuid.NewString()
	order, err := b.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: clientOrderID,
	})
	metrics.RecordOrder(string(req.Side), err == nil)
	if err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"symbol": req.Symbol,
			"side":   req.Side,
			"qty":    req.Qty.String(),
		}).Error("Place order failed")
		return OrderRef{}, fmt.Errorf("failed to place order: %w", err)
	}

	ref := OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
		SubmittedAt:   order.SubmittedAt,
	}
	if ref.SubmittedAt.IsZero() {
		ref.SubmittedAt = time.Now()
	}
	b.audit.LogOrderSubmission(ref.ID, ref.ClientOrderID, req.Symbol, string(req.Side), req.Qty.String(),
		ref.Status, ref.SubmittedAt, b.paper)
	return ref, nil
}

// Account returns the account summary
func (b *AlpacaBroker) Account(ctx context.Context) (AccountSummary, error) {
	if err := ctx.Err(); err != nil {
		return AccountSummary{}, err
	}
	acct, err := b.trading.GetAccount()
	if err != nil {
		return AccountSummary{}, fmt.Errorf("failed to fetch account: %w", err)
	}
	summary := AccountSummary{
		ID:          acct.ID,
		Currency:    acct.Currency,
		Equity:      acct.Equity,
		Cash:        acct.Cash,
		BuyingPower: acct.BuyingPower,
	}
	b.audit.LogAccountSnapshot(summary.ID, summary.Equity.String(), summary.Cash.String(), summary.BuyingPower.String())
	return summary, nil
}

// Close releases the broker; the REST clients hold no connection state
func (b *AlpacaBroker) Close() error {
	b.logger.Info("Disconnected from broker")
	return nil
}
