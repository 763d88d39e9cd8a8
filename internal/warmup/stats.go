// Package warmup measures the decoded frame rate of a running receiver and
// decides whether the stream has settled.
package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of the mean. 60 FPS mean → stable if stddev < 9 FPS.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected interval. 60 FPS (16.6ms) → stable if jitter < 3.3ms.
	jitterStabilityThreshold = 0.20

	// minStableIntervals is the fewest intervals a verdict of stable needs
	minStableIntervals = 5
)

// Stats summarises frame arrival times collected over a window
type Stats struct {
	Frames   int
	Duration time.Duration

	FPSMean   float64
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64

	// Jitter is the deviation of each interval from the mean interval
	JitterMean   time.Duration
	JitterStdDev time.Duration
	JitterMax    time.Duration

	Stable bool
}

// Calculate derives frame rate and jitter statistics from arrival times.
//
// The mean rate is taken over the span between the first and the last frame,
// so it does not depend on when the window opened. window is only reported.
// A stream is stable when the FPS stddev stays under 15% of the mean and the
// mean jitter under 20% of the expected interval.
func Calculate(times []time.Time, window time.Duration) Stats {
	s := Stats{Frames: len(times), Duration: window}
	if len(times) < 2 {
		return s
	}

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return s
	}

	span := times[len(times)-1].Sub(times[0]).Seconds()
	if span <= 0 {
		return s
	}
	s.FPSMean = float64(len(intervals)) / span
	expected := span / float64(len(intervals))

	s.FPSMin, s.FPSMax = math.Inf(1), 0
	var fpsSq, jitterSum, jitterMax float64
	jitters := make([]float64, len(intervals))
	for i, d := range intervals {
		fps := 1 / d
		s.FPSMin = math.Min(s.FPSMin, fps)
		s.FPSMax = math.Max(s.FPSMax, fps)
		fpsSq += (fps - s.FPSMean) * (fps - s.FPSMean)

		j := math.Abs(d - expected)
		jitters[i] = j
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	s.FPSStdDev = math.Sqrt(fpsSq / float64(len(intervals)))

	jitterMean := jitterSum / float64(len(jitters))
	var jitterSq float64
	for _, j := range jitters {
		jitterSq += (j - jitterMean) * (j - jitterMean)
	}
	s.JitterMean = seconds(jitterMean)
	s.JitterStdDev = seconds(math.Sqrt(jitterSq / float64(len(jitters))))
	s.JitterMax = seconds(jitterMax)

	s.Stable = len(intervals) >= minStableIntervals &&
		s.FPSStdDev < s.FPSMean*fpsStabilityThreshold &&
		jitterMean < expected*jitterStabilityThreshold
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
