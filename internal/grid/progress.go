package grid

import (
	"sync"
	"time"
)

// ProgressSnapshot is a point-in-time view of a run
type ProgressSnapshot struct {
	RunID         string        `json:"run_id"`
	Running       bool          `json:"running"`
	Total         int           `json:"total"`
	Completed     int           `json:"completed"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	RatePerSecond float64       `json:"rate_per_second"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	ETA           time.Duration `json:"eta_ns"`
}

// Progress tracks completions, throughput and ETA; safe for concurrent use
type Progress struct {
	mu        sync.RWMutex
	runID     string
	running   bool
	total     int
	succeeded int
	failed    int
	started   time.Time
	now       func() time.Time
}

// NewProgress creates an idle tracker
func NewProgress() *Progress {
	return &Progress{now: time.Now}
}

// Start resets the tracker for a run of total tasks
func (p *Progress) Start(runID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.running = true
	p.total = total
	p.succeeded = 0
	p.failed = 0
	p.started = p.now()
}

// Record counts one finished task
func (p *Progress) Record(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == StatusSucceeded {
		p.succeeded++
	} else {
		p.failed++
	}
}

// Finish marks the run as no longer running
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Snapshot returns the current counts with rate and ETA
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := ProgressSnapshot{
		RunID:     p.runID,
		Running:   p.running,
		Total:     p.total,
		Completed: p.succeeded + p.failed,
		Succeeded: p.succeeded,
		Failed:    p.failed,
	}
	if p.started.IsZero() {
		return s
	}
	s.Elapsed = p.now().Sub(p.started)
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.RatePerSecond = float64(s.Completed) / secs
	}
	if s.RatePerSecond > 0 && s.Total > s.Completed {
		remaining := float64(s.Total-s.Completed) / s.RatePerSecond
		s.ETA = time.Duration(remaining * float64(time.Second))
	}
	return s
}
