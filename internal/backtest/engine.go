package backtest

import (
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/indicator"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/strategy"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of one simulated run
type Result struct {
	Params  models.StrategyParameters `json:"params"`
	Metrics Metrics                   `json:"metrics"`
	Trace   PortfolioTrace            `json:"-"`
}

// Record flattens the result for the result store
func (r *Result) Record() models.ResultRecord {
	return r.Metrics.Record(r.Params)
}

// Engine runs the indicator, signal, position and performance pipeline
type Engine struct {
	config     BacktestConfig
	calculator *indicator.Calculator
	logger     *logrus.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg BacktestConfig, calc *indicator.Calculator, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if calc == nil {
		calc = indicator.NewCalculator(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{config: cfg, calculator: calc, logger: logger}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// Logger returns the engine logger
func (e *Engine) Logger() *logrus.Logger {
	return e.logger
}

// Run evaluates params over the whole series
func (e *Engine) Run(series *models.PriceSeries, params models.StrategyParameters) (*Result, error) {
	if series.Len() == 0 {
		return nil, models.ErrEmptySeries
	}
	strat := strategy.NewMACDRSIStrategy(params, e.calculator)
	signals, err := strat.GenerateSignals(series)
	if err != nil {
		return nil, err
	}

	trace, state, err := Simulate(signals, e.config.InitialCash)
	if err != nil {
		return nil, fmt.Errorf("simulation failed: %w", err)
	}

	metrics, err := CalculateMetrics(trace, e.config.InitialCash)
	if err != nil {
		return nil, fmt.Errorf("metrics calculation failed: %w", err)
	}
	metrics.Trades = state.Trades

	return &Result{Params: params, Metrics: metrics, Trace: trace}, nil
}

// RunWindow evaluates params over bars [start, start+WindowLength)
func (e *Engine) RunWindow(series *models.PriceSeries, start int, params models.StrategyParameters) (*Result, error) {
	window, err := series.Window(start, e.config.WindowLength)
	if err != nil {
		return nil, err
	}
	return e.Run(window, params)
}
