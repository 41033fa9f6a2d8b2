package indicator

import (
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// Frame holds the derived indicator columns aligned with the source bars
type Frame struct {
	Dates   []time.Time
	Close   []float64
	EMAFast []float64
	EMASlow []float64
	MACD    []float64
	Signal  []float64
	RSI     []float64
}

// Len returns the number of rows in the frame
func (f *Frame) Len() int {
	return len(f.Close)
}

// WarmupBars returns how many leading rows carry NaN indicator values
func WarmupBars(params models.StrategyParameters) int {
	return params.RSIWindow
}

// Calculator computes indicator frames, optionally sharing series through a cache
type Calculator struct {
	cache *SeriesCache
}

// NewCalculator creates a calculator. A nil cache disables memoization.
func NewCalculator(cache *SeriesCache) *Calculator {
	return &Calculator{cache: cache}
}

// Compute derives the indicator frame for series with params
func (c *Calculator) Compute(series *models.PriceSeries, params models.StrategyParameters) (*Frame, error) {
	if series == nil {
		return nil, fmt.Errorf("series is required")
	}
	if params.MACDFast <= 0 || params.MACDSlow <= 0 || params.MACDSignal <= 0 || params.RSIWindow < 1 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidParameters, params)
	}

	closes := series.Closes()
	key := SeriesKey(series)

	emaFast := c.ema(key, closes, params.MACDFast)
	emaSlow := c.ema(key, closes, params.MACDSlow)
	macdLine, signal := MACD(emaFast, emaSlow, params.MACDSignal)

	return &Frame{
		Dates:   series.Dates(),
		Close:   closes,
		EMAFast: emaFast,
		EMASlow: emaSlow,
		MACD:    macdLine,
		Signal:  signal,
		RSI:     c.rsi(key, closes, params.RSIWindow),
	}, nil
}

func (c *Calculator) ema(key string, closes []float64, span int) []float64 {
	if c == nil || c.cache == nil {
		return EMA(closes, span)
	}
	return c.cache.EMA(key, closes, span)
}

func (c *Calculator) rsi(key string, closes []float64, window int) []float64 {
	if c == nil || c.cache == nil {
		return RSI(closes, window)
	}
	return c.cache.RSI(key, closes, window)
}
