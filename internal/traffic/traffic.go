package traffic

import (
	"sync"
	"time"
)

// Outcome classifies how a gateway request against WeatherKit ended.
type Outcome int

const (
	// Success is a 2xx served from an upstream response.
	Success Outcome = iota
	// Failure is an upstream, network, timeout or signing error.
	Failure
	// Denied is a request rejected by the inbound rate limiter.
	Denied
)

// DefaultRetention bounds how long outcomes are kept when NewTracker gets zero.
const DefaultRetention = 5 * time.Minute

// Counts is a snapshot of outcomes inside a window.
type Counts struct {
	Success int
	Failure int
	Denied  int
}

// Total is every outcome including denials.
func (c Counts) Total() int { return c.Success + c.Failure + c.Denied }

// ErrorPct is Failure as a percentage of Success+Failure. Denials do not count
// against upstream health. Zero when nothing was served.
func (c Counts) ErrorPct() float64 {
	served := c.Success + c.Failure
	if served == 0 {
		return 0
	}
	return float64(c.Failure) * 100 / float64(served)
}

// Tracker keeps timestamps of recent outcomes for the health check.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	now       func() time.Time
	retention time.Duration
	times     [3][]time.Time
}

// NewTracker keeps outcomes for retention (DefaultRetention when <= 0).
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{now: time.Now, retention: retention}
}

// WithClock replaces the time source. For tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// Record appends one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN appends n outcomes of the same kind at the current time.
func (t *Tracker) RecordN(o Outcome, n int) {
	if o < Success || o > Denied || n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// Counts returns outcomes recorded within window of now.
func (t *Tracker) Counts(window time.Duration) Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return Counts{
		Success: countSince(t.times[Success], cutoff),
		Failure: countSince(t.times[Failure], cutoff),
		Denied:  countSince(t.times[Denied], cutoff),
	}
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

// countSince counts timestamps not before cutoff. Slices are append-ordered.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && !times[i].Before(cutoff); i-- {
		n++
	}
	return n
}

// pruneLocked drops timestamps older than retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	for k, times := range t.times {
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
