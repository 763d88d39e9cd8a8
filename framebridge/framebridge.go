// Package framebridge hands decoded frames from the streaming thread to the
// presentation loop.
//
// The bridge is a single-slot mailbox with overwrite semantics: Send never
// blocks, and a frame that was not taken before the next one arrives is
// replaced. The consumer therefore always sees the most recent frame, and a
// slow consumer costs skipped frames rather than growing latency.
package framebridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-screencast/frame"
)

// ErrClosed is returned by Send after the consumer side has been closed
var ErrClosed = errors.New("framebridge: bridge closed")

// Stats contains bridge counters
type Stats struct {
	// Sent is the number of frames accepted by Send
	Sent uint64
	// Taken is the number of frames handed to the consumer
	Taken uint64
	// Replaced is the number of frames overwritten before being taken
	Replaced uint64
	// Pending is true when a frame is waiting in the slot
	Pending bool
	// Closed is true after Close
	Closed bool
}

// Bridge is a latest-frame-wins mailbox between one producer and one consumer.
// It is safe for concurrent use; the zero value is not usable, call New.
type Bridge struct {
	mu      sync.Mutex
	slot    frame.RawFrame
	pending bool
	closed  bool

	// notify has capacity 1 and carries "slot filled" wake-ups for Take
	notify chan struct{}
	done   chan struct{}

	sent     uint64
	taken    uint64
	replaced uint64
}

// New creates an empty, open bridge
func New() *Bridge {
	return &Bridge{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Send publishes f, replacing any frame the consumer has not taken yet.
//
// Send never blocks. After Close it returns ErrClosed and drops f; producers
// treat that as a no-op.
func (b *Bridge) Send(f frame.RawFrame) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		slog.Debug("framebridge: send after close, frame dropped", "seq", f.Seq)
		return ErrClosed
	}

	if b.pending {
		atomic.AddUint64(&b.replaced, 1)
		slog.Debug("framebridge: unconsumed frame replaced", "seq", b.slot.Seq, "by", f.Seq)
	}

	b.slot = f
	b.pending = true
	atomic.AddUint64(&b.sent, 1)

	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}

	return nil
}

// TryTake returns the newest unconsumed frame without blocking.
// The boolean is false when no new frame arrived since the last take.
func (b *Bridge) TryTake() (frame.RawFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.pending {
		return frame.RawFrame{}, false
	}

	f := b.slot
	b.slot = frame.RawFrame{}
	b.pending = false
	atomic.AddUint64(&b.taken, 1)

	return f, true
}

// Take blocks until a frame is available, the bridge is closed or ctx is done.
// A closed bridge returns ErrClosed once the slot is drained.
func (b *Bridge) Take(ctx context.Context) (frame.RawFrame, error) {
	for {
		if f, ok := b.TryTake(); ok {
			return f, nil
		}

		select {
		case <-b.notify:
		case <-b.done:
			if f, ok := b.TryTake(); ok {
				return f, nil
			}
			return frame.RawFrame{}, ErrClosed
		case <-ctx.Done():
			return frame.RawFrame{}, ctx.Err()
		}
	}
}

// Close marks the consumer side as gone. Pending frames can still be taken.
// Idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Stats returns the current counters. Safe to call from any goroutine.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	pending, closed := b.pending, b.closed
	b.mu.Unlock()

	return Stats{
		Sent:     atomic.LoadUint64(&b.sent),
		Taken:    atomic.LoadUint64(&b.taken),
		Replaced: atomic.LoadUint64(&b.replaced),
		Pending:  pending,
		Closed:   closed,
	}
}
