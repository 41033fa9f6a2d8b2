package models

import (
	"fmt"
	"time"
)

// PriceBar is a single daily OHLCV bar
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered, date-unique sequence of bars.
// A series is shared read-only between grid workers once loaded.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// NewPriceSeries validates ordering and returns a series
func NewPriceSeries(symbol string, bars []PriceBar) (*PriceSeries, error) {
	s := &PriceSeries{Symbol: symbol, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that dates are strictly increasing
func (s *PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, curr := s.Bars[i-1].Date, s.Bars[i].Date
		if curr.Equal(prev) {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, curr.Format(DateLayout))
		}
		if curr.Before(prev) {
			return fmt.Errorf("%w: %s after %s", ErrUnsortedSeries, curr.Format(DateLayout), prev.Format(DateLayout))
		}
	}
	return nil
}

// Len returns the number of bars
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Window returns an independent copy of bars [start, start+length)
func (s *PriceSeries) Window(start, length int) (*PriceSeries, error) {
	if start < 0 || length < 0 || start+length > len(s.Bars) {
		return nil, fmt.Errorf("window [%d,%d) out of range for %d bars", start, start+length, len(s.Bars))
	}
	bars := make([]PriceBar, length)
	copy(bars, s.Bars[start:start+length])
	return &PriceSeries{Symbol: s.Symbol, Bars: bars}, nil
}

// Closes returns the close column
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		closes[i] = bar.Close
	}
	return closes
}

// Dates returns the date column
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, bar := range s.Bars {
		dates[i] = bar.Date
	}
	return dates
}

// First returns the first bar date
func (s *PriceSeries) First() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Date
}

// Last returns the last bar date
func (s *PriceSeries) Last() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}
