package indicator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	cache "github.com/patrickmn/go-cache"
)

// SeriesCache memoizes indicator series per window so that the parameter
// combinations evaluated on the same window share EMA and RSI columns.
// Cached slices are shared between goroutines and must not be mutated.
type SeriesCache struct {
	cache     *cache.Cache
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewSeriesCache creates a cache whose entries expire after ttl
func NewSeriesCache(ttl time.Duration) *SeriesCache {
	return &SeriesCache{cache: cache.New(ttl, ttl*2)}
}

// SeriesKey identifies a window by symbol, first date and length
func SeriesKey(series *models.PriceSeries) string {
	return fmt.Sprintf("%s:%s:%d", series.Symbol, series.First().Format(time.RFC3339), series.Len())
}

// EMA returns the cached EMA for key and span, computing it on a miss
func (sc *SeriesCache) EMA(key string, closes []float64, span int) []float64 {
	return sc.getOrCompute(fmt.Sprintf("%s:ema:%d", key, span), func() []float64 {
		return EMA(closes, span)
	})
}

// RSI returns the cached RSI for key and window, computing it on a miss
func (sc *SeriesCache) RSI(key string, closes []float64, window int) []float64 {
	return sc.getOrCompute(fmt.Sprintf("%s:rsi:%d", key, window), func() []float64 {
		return RSI(closes, window)
	})
}

// Stats returns hit and miss counts
func (sc *SeriesCache) Stats() (uint64, uint64) {
	return sc.hitCount.Load(), sc.missCount.Load()
}

// ItemCount returns the number of cached series
func (sc *SeriesCache) ItemCount() int {
	return sc.cache.ItemCount()
}

func (sc *SeriesCache) getOrCompute(key string, compute func() []float64) []float64 {
	if cached, found := sc.cache.Get(key); found {
		if values, ok := cached.([]float64); ok {
			sc.hitCount.Add(1)
			return values
		}
	}
	sc.missCount.Add(1)
	values := compute()
	sc.cache.Set(key, values, cache.DefaultExpiration)
	return values
}
