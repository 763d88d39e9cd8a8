package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotEnoughFrames means fewer than two frames arrived in the window
	ErrNotEnoughFrames = errors.New("warmup: not enough frames received")
	// ErrUnstable means the stream delivered frames at an irregular rate
	ErrUnstable = errors.New("warmup: stream frame rate unstable")
	// ErrStopped means the pipeline stopped during the window
	ErrStopped = errors.New("warmup: pipeline stopped during warm-up")
)

// Recorder collects frame arrival times while a measurement is open.
// Observe is cheap when no measurement is running, so the frame callback can
// call it unconditionally.
type Recorder struct {
	mu     sync.Mutex
	active bool
	times  []time.Time
}

// Begin opens a measurement, discarding anything recorded before
func (r *Recorder) Begin(capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.times = make([]time.Time, 0, capacity)
}

// Observe records one frame arrival
func (r *Recorder) Observe(t time.Time) {
	r.mu.Lock()
	if r.active {
		r.times = append(r.times, t)
	}
	r.mu.Unlock()
}

// End closes the measurement and returns the recorded times
func (r *Recorder) End() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	times := r.times
	r.times = nil
	return times
}

// Measure records frame arrivals for d and returns their statistics.
//
// It stops early with ErrStopped when stopped is closed and honours ctx. An
// unstable stream still returns its statistics together with ErrUnstable so
// callers can decide whether to proceed.
func Measure(ctx context.Context, rec *Recorder, d time.Duration, expectedFPS int, stopped <-chan struct{}) (Stats, error) {
	slog.Info("warmup: starting stream warm-up", "duration", d)

	rec.Begin(int(d.Seconds()*float64(expectedFPS)) + 1)
	start := time.Now()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stopped:
		rec.End()
		return Stats{}, ErrStopped
	case <-ctx.Done():
		rec.End()
		return Stats{}, ctx.Err()
	}

	stats := Calculate(rec.End(), time.Since(start))
	if stats.Frames < 2 {
		return stats, fmt.Errorf("%w (got %d, need at least 2)", ErrNotEnoughFrames, stats.Frames)
	}

	slog.Info("warmup: stream warm-up complete",
		"frames", stats.Frames,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", stats.JitterMean,
		"stable", stats.Stable,
	)

	if !stats.Stable {
		return stats, fmt.Errorf("%w (mean=%.2f Hz, stddev=%.2f, jitter=%v)",
			ErrUnstable, stats.FPSMean, stats.FPSStdDev, stats.JitterMean)
	}
	return stats, nil
}
