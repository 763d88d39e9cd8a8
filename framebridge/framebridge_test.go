package framebridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-screencast/frame"
)

func seqFrame(seq uint64) frame.RawFrame {
	return frame.RawFrame{Seq: seq, Width: 2, Height: 2, Format: frame.RGB, Pix: make([]byte, 12)}
}

// TestLatestFrameWins validates the overwrite policy
//
// Property: after sending f1..fn with no take in between, one take returns fn
// and the next take returns nothing.
func TestLatestFrameWins(t *testing.T) {
	for _, n := range []int{1, 2, 10, 500} {
		b := New()
		for i := 1; i <= n; i++ {
			if err := b.Send(seqFrame(uint64(i))); err != nil {
				t.Fatalf("send %d: %v", i, err)
			}
		}

		f, ok := b.TryTake()
		if !ok {
			t.Fatalf("n=%d: expected a frame", n)
		}
		if f.Seq != uint64(n) {
			t.Errorf("n=%d: got seq %d, want %d", n, f.Seq, n)
		}
		if _, ok := b.TryTake(); ok {
			t.Errorf("n=%d: second take should be empty", n)
		}

		stats := b.Stats()
		if stats.Replaced != uint64(n-1) {
			t.Errorf("n=%d: replaced=%d, want %d", n, stats.Replaced, n-1)
		}
		if stats.Sent != uint64(n) || stats.Taken != 1 {
			t.Errorf("n=%d: sent=%d taken=%d", n, stats.Sent, stats.Taken)
		}
	}
	t.Logf("✅ latest frame wins for bursts of 1, 2, 10, 500")
}

func TestSendAfterClose(t *testing.T) {
	b := New()
	b.Close()
	b.Close() // idempotent

	if err := b.Send(seqFrame(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := b.TryTake(); ok {
		t.Errorf("closed bridge should not deliver rejected frames")
	}
	if !b.Stats().Closed {
		t.Errorf("stats should report closed")
	}
}

func TestTake_DrainsPendingAfterClose(t *testing.T) {
	b := New()
	_ = b.Send(seqFrame(7))
	b.Close()

	f, err := b.Take(context.Background())
	if err != nil || f.Seq != 7 {
		t.Fatalf("expected pending frame 7, got seq=%d err=%v", f.Seq, err)
	}
	if _, err := b.Take(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after drain, got %v", err)
	}
}

func TestTake_BlocksUntilSend(t *testing.T) {
	b := New()
	got := make(chan uint64, 1)

	go func() {
		f, err := b.Take(context.Background())
		if err != nil {
			t.Errorf("take: %v", err)
			return
		}
		got <- f.Seq
	}()

	time.Sleep(20 * time.Millisecond)
	_ = b.Send(seqFrame(3))

	select {
	case seq := <-got:
		if seq != 3 {
			t.Errorf("got seq %d, want 3", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not wake up after Send")
	}
}

func TestTake_ContextCancel(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Take(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// TestConcurrentProducerConsumer checks that the consumer only ever observes
// increasing sequence numbers while a producer floods the bridge.
func TestConcurrentProducerConsumer(t *testing.T) {
	b := New()
	const total = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			_ = b.Send(seqFrame(uint64(i)))
		}
		b.Close()
	}()

	var last uint64
	for {
		f, err := b.Take(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if f.Seq <= last {
			t.Fatalf("sequence went backwards: %d after %d", f.Seq, last)
		}
		last = f.Seq
	}
	wg.Wait()

	if last != total {
		t.Errorf("last frame seen = %d, want %d", last, total)
	}

	stats := b.Stats()
	if stats.Taken+stats.Replaced != stats.Sent {
		t.Errorf("taken(%d)+replaced(%d) != sent(%d)", stats.Taken, stats.Replaced, stats.Sent)
	}
	t.Logf("✅ consumer saw %d of %d frames, %d replaced", stats.Taken, stats.Sent, stats.Replaced)
}
