package service

import (
	"fmt"
	"sync"
	"time"
)

// IngestionMetrics tracks statistics about one price fetch
type IngestionMetrics struct {
	mu               sync.RWMutex
	StartTime        time.Time
	Duration         time.Duration
	FetchedBars      int
	ValidBars        int
	ValidationErrors int
	Gaps             int
	Errors           int
}

// NewIngestionMetrics creates a new metrics tracker
func NewIngestionMetrics() *IngestionMetrics {
	return &IngestionMetrics{
		StartTime: time.Now(),
	}
}

// Reset resets all metrics
func (m *IngestionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartTime = time.Now()
	m.Duration = 0
	m.FetchedBars = 0
	m.ValidBars = 0
	m.ValidationErrors = 0
	m.Gaps = 0
	m.Errors = 0
}

// RecordFetched sets the number of bars returned by the source
func (m *IngestionMetrics) RecordFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchedBars = n
}

// RecordValid sets the number of bars that passed validation
func (m *IngestionMetrics) RecordValid(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidBars = n
}

// RecordValidationError increments validation error count
func (m *IngestionMetrics) RecordValidationError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidationErrors++
}

// RecordGap increments calendar gap count
func (m *IngestionMetrics) RecordGap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gaps++
}

// RecordError increments error count
func (m *IngestionMetrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors++
}

// Finish records the elapsed time since StartTime
func (m *IngestionMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duration = time.Since(m.StartTime)
}

// String returns a formatted string representation of metrics
func (m *IngestionMetrics) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	validRate := float64(0)
	if m.FetchedBars > 0 {
		validRate = float64(m.ValidBars) / float64(m.FetchedBars) * 100
	}

	return fmt.Sprintf(
		"IngestionMetrics{Fetched=%d, Valid=%d (%.1f%%), ValidationErrors=%d, Gaps=%d, Errors=%d, Duration=%v}",
		m.FetchedBars,
		m.ValidBars,
		validRate,
		m.ValidationErrors,
		m.Gaps,
		m.Errors,
		m.Duration,
	)
}
