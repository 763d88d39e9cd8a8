package warmup

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// arrivals generates n arrival times at fps with a uniform random offset of
// up to ±jitter of the interval. Seeded for reproducibility.
func arrivals(n int, fps float64, jitter float64) []time.Time {
	if n < 1 {
		return nil
	}
	interval := float64(time.Second) / fps
	rng := rand.New(rand.NewSource(42))

	times := make([]time.Time, n)
	times[0] = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i < n; i++ {
		offset := (rng.Float64()*2 - 1) * jitter * interval
		times[i] = times[i-1].Add(time.Duration(interval + offset))
	}
	return times
}

func TestCalculate_Stability(t *testing.T) {
	tests := []struct {
		name       string
		fps        float64
		jitter     float64
		wantStable bool
	}{
		{"steady 60fps", 60, 0.05, true},
		{"steady 30fps", 30, 0.10, true},
		{"erratic 60fps", 60, 0.60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Calculate(arrivals(120, tt.fps, tt.jitter), 2*time.Second)
			t.Logf("fps=%.2f stddev=%.2f jitter=%v stable=%v", s.FPSMean, s.FPSStdDev, s.JitterMean, s.Stable)

			if s.Stable != tt.wantStable {
				t.Errorf("Stable = %v, want %v", s.Stable, tt.wantStable)
			}
			if diff := s.FPSMean - tt.fps; diff > tt.fps*0.1 || diff < -tt.fps*0.1 {
				t.Errorf("FPSMean = %.2f, want about %.0f", s.FPSMean, tt.fps)
			}
		})
	}
}

func TestCalculate_EdgeCases(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		times []time.Time
	}{
		{"no frames", nil},
		{"one frame", []time.Time{now}},
		{"identical timestamps", []time.Time{now, now, now}},
		{"two frames", []time.Time{now, now.Add(16 * time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Calculate(tt.times, time.Second)
			if s.Stable {
				t.Errorf("%d frames must not be judged stable", len(tt.times))
			}
			if s.Frames != len(tt.times) {
				t.Errorf("Frames = %d, want %d", s.Frames, len(tt.times))
			}
			if s.FPSStdDev < 0 || s.JitterMean < 0 {
				t.Errorf("negative spread: %+v", s)
			}
		})
	}
}

// Property: FPSMin <= FPSMean <= FPSMax and 0 <= JitterMean <= JitterMax
func TestCalculate_Bounds(t *testing.T) {
	f := func(fps uint8, n uint8, jitterPct uint8) bool {
		if fps < 1 || n < 3 {
			return true
		}
		s := Calculate(arrivals(int(n), float64(fps), float64(jitterPct%90)/100), time.Second)

		const tolerance = 1e-6
		if s.FPSMin > s.FPSMean+tolerance || s.FPSMax < s.FPSMean-tolerance {
			t.Logf("fps bounds violated: min=%.3f mean=%.3f max=%.3f", s.FPSMin, s.FPSMean, s.FPSMax)
			return false
		}
		if s.JitterMean < 0 || s.JitterMax+time.Nanosecond < s.JitterMean {
			t.Logf("jitter bounds violated: mean=%v max=%v", s.JitterMean, s.JitterMax)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

func TestMeasure(t *testing.T) {
	t.Run("collects frames", func(t *testing.T) {
		var rec Recorder
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					rec.Observe(now)
				}
			}
		}()

		stats, err := Measure(ctx, &rec, 200*time.Millisecond, 200, nil)
		if err != nil && !errors.Is(err, ErrUnstable) {
			t.Fatalf("Measure: %v", err)
		}
		if stats.Frames < 2 {
			t.Errorf("Frames = %d, want several", stats.Frames)
		}
		t.Logf("✅ measured %d frames at %.1f fps", stats.Frames, stats.FPSMean)
	})

	t.Run("no frames", func(t *testing.T) {
		var rec Recorder
		_, err := Measure(context.Background(), &rec, 20*time.Millisecond, 60, nil)
		if !errors.Is(err, ErrNotEnoughFrames) {
			t.Errorf("err = %v, want ErrNotEnoughFrames", err)
		}
	})

	t.Run("pipeline stopped", func(t *testing.T) {
		var rec Recorder
		stopped := make(chan struct{})
		close(stopped)
		_, err := Measure(context.Background(), &rec, time.Second, 60, stopped)
		if !errors.Is(err, ErrStopped) {
			t.Errorf("err = %v, want ErrStopped", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		var rec Recorder
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Measure(ctx, &rec, time.Second, 60, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("recorder idle outside measurement", func(t *testing.T) {
		var rec Recorder
		rec.Observe(time.Now())
		rec.Begin(4)
		if got := rec.End(); len(got) != 0 {
			t.Errorf("recorded %d frames before Begin", len(got))
		}
	})
}
