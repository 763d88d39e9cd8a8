package framepacer

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// TestPacer_AcceptedSpacing validates the gating rule with a fake clock
//
// Property: with attempts every 1ms against a period T, accepted samples are
// never closer than T, and the number accepted over N ms is floor(N/T)+1.
func TestPacer_AcceptedSpacing(t *testing.T) {
	tests := []struct {
		name     string
		period   time.Duration
		duration time.Duration
	}{
		{"60fps", 16600 * time.Microsecond, time.Second},
		{"30fps", 33300 * time.Microsecond, 2 * time.Second},
		{"10ms", 10 * time.Millisecond, 95 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1000, 0)}
			start := clock.now
			p := New(tt.period, clock)

			var accepted []time.Time
			for elapsed := time.Duration(0); elapsed <= tt.duration; elapsed += time.Millisecond {
				clock.now = start.Add(elapsed)
				ok, wait := p.Ready()
				if ok {
					if wait != 0 {
						t.Fatalf("accepted sample with wait %v", wait)
					}
					accepted = append(accepted, clock.now)
					continue
				}
				if wait <= 0 || wait > tt.period {
					t.Fatalf("deferred sample with wait %v outside (0, %v]", wait, tt.period)
				}
			}

			for i := 1; i < len(accepted); i++ {
				if gap := accepted[i].Sub(accepted[i-1]); gap < tt.period {
					t.Fatalf("samples %d and %d only %v apart", i-1, i, gap)
				}
			}

			// attempts land on whole milliseconds, so each accepted gap is
			// the period rounded up to the next millisecond
			step := tt.period.Truncate(time.Millisecond)
			if step < tt.period {
				step += time.Millisecond
			}
			want := int(tt.duration/step) + 1
			if len(accepted) != want {
				t.Errorf("accepted %d samples, want %d", len(accepted), want)
			}
			t.Logf("✅ %s: %d samples accepted over %v", tt.name, len(accepted), tt.duration)
		})
	}
}

func TestPacer_ReportsRemaining(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := New(16*time.Millisecond, clock)

	if ok, _ := p.Ready(); !ok {
		t.Fatal("first sample must be accepted")
	}

	clock.Advance(10 * time.Millisecond)
	ok, wait := p.Ready()
	if ok || wait != 6*time.Millisecond {
		t.Errorf("got ok=%v wait=%v, want false 6ms", ok, wait)
	}
	if next := p.NextIn(); next != 6*time.Millisecond {
		t.Errorf("NextIn = %v, want 6ms", next)
	}

	clock.Advance(6 * time.Millisecond)
	if ok, _ := p.Ready(); !ok {
		t.Errorf("sample exactly one period later must be accepted")
	}

	accepted, deferred := p.Counts()
	if accepted != 2 || deferred != 1 {
		t.Errorf("counts = %d/%d, want 2/1", accepted, deferred)
	}
}

func TestPacer_Reset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := New(time.Second, clock)

	p.Ready()
	if ok, _ := p.Ready(); ok {
		t.Fatal("second immediate sample must be deferred")
	}
	p.Reset()
	if ok, _ := p.Ready(); !ok {
		t.Errorf("sample after Reset must be accepted")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, nil)
	if p.Period() != DefaultPeriod {
		t.Errorf("period = %v, want %v", p.Period(), DefaultPeriod)
	}
	if got := ForFPS(30).Period(); got != time.Second/30 {
		t.Errorf("ForFPS(30) period = %v", got)
	}
}
