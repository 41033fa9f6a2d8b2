package grid

import "time"

// CheckpointPolicy decides when a snapshot is due: after everyTasks
// completions or once interval has elapsed, whichever comes first.
// A zero value for either trigger disables it.
type CheckpointPolicy struct {
	everyTasks int
	interval   time.Duration
	since      int
	last       time.Time
	now        func() time.Time
}

// NewCheckpointPolicy creates a policy starting its clock now
func NewCheckpointPolicy(everyTasks int, interval time.Duration) *CheckpointPolicy {
	p := &CheckpointPolicy{everyTasks: everyTasks, interval: interval, now: time.Now}
	p.last = p.now()
	return p
}

// Interval returns the wall-clock trigger
func (p *CheckpointPolicy) Interval() time.Duration {
	return p.interval
}

// Observe counts one completed task and reports whether a snapshot is due
func (p *CheckpointPolicy) Observe() bool {
	p.since++
	return p.Due()
}

// Due reports whether a snapshot is due without counting a task
func (p *CheckpointPolicy) Due() bool {
	if p.since == 0 {
		return false
	}
	if p.everyTasks > 0 && p.since >= p.everyTasks {
		return true
	}
	return p.interval > 0 && p.now().Sub(p.last) >= p.interval
}

// Reset restarts both triggers after a successful snapshot
func (p *CheckpointPolicy) Reset() {
	p.since = 0
	p.last = p.now()
}
