// Package framepacer decides when the next screen sample may be taken.
//
// The pacer never sleeps. Callers ask it on every tick of their own loop and
// get either a go-ahead or the time left until the next sample is due, which
// they can feed to whatever scheduling primitive they already have (a repaint
// request, a timer, a ticker).
package framepacer

import (
	"sync"
	"time"
)

// DefaultPeriod targets 60 samples per second
const DefaultPeriod = time.Second / 60

// Clock is the time source used by the pacer. It must be monotonic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns time.Now, which carries a monotonic reading
func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock with Go's monotonic reading
var SystemClock Clock = systemClock{}

// Pacer gates sampling to at most one sample per period.
// Safe for concurrent use.
type Pacer struct {
	mu     sync.Mutex
	period time.Duration
	clock  Clock
	last   time.Time
	primed bool

	accepted uint64
	deferred uint64
}

// New creates a pacer with the given period. A non-positive period falls back
// to DefaultPeriod, a nil clock to SystemClock.
func New(period time.Duration, clock Clock) *Pacer {
	if period <= 0 {
		period = DefaultPeriod
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Pacer{period: period, clock: clock}
}

// ForFPS creates a system-clock pacer for a frames-per-second target
func ForFPS(fps float64) *Pacer {
	if fps <= 0 {
		return New(DefaultPeriod, nil)
	}
	return New(time.Duration(float64(time.Second)/fps), nil)
}

// Period returns the minimum spacing between accepted samples
func (p *Pacer) Period() time.Duration {
	return p.period
}

// Ready reports whether a sample may be taken now.
//
// When at least one period has elapsed since the last accepted sample (or no
// sample was accepted yet) it records the current time and returns true.
// Otherwise it returns false and the strictly positive time remaining.
func (p *Pacer) Ready() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if wait := p.remaining(now); wait > 0 {
		p.deferred++
		return false, wait
	}

	p.last = now
	p.primed = true
	p.accepted++
	return true, 0
}

// NextIn returns the time until the next sample is due without consuming it.
// Zero means a sample is due now.
func (p *Pacer) NextIn() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining(p.clock.Now())
}

// Reset forgets the last accepted sample so the next Ready call succeeds
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.primed = false
	p.last = time.Time{}
}

// Counts returns how many Ready calls were accepted and deferred
func (p *Pacer) Counts() (accepted, deferred uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted, p.deferred
}

func (p *Pacer) remaining(now time.Time) time.Duration {
	if !p.primed {
		return 0
	}
	elapsed := now.Sub(p.last)
	if elapsed >= p.period {
		return 0
	}
	return p.period - elapsed
}
