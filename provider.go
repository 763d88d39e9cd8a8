package screencast

import (
	"context"

	"github.com/e7canasta/orion-screencast/frame"
)

// Pipeline is the lifecycle contract shared by Sender and Receiver.
//
// Implementations guarantee:
//   - Start returns once the pipeline plays or has failed; it never retries
//   - Stop is idempotent and waits for teardown; it may be called from any
//     goroutine except a streaming callback, which uses StopAsync instead
//   - Errors delivers at most one failure; end of stream and Stop are not failures
//   - Done is closed once native resources are released
type Pipeline interface {
	// Start configures and plays the pipeline. Build and bind failures are
	// returned here, before the pipeline plays. A pipeline runs once: after
	// it stopped, create a new one.
	Start(ctx context.Context) error

	// Stop tears the pipeline down. A no-op when never started or already
	// stopped.
	Stop() error

	State() State
	ID() string
	Errors() <-chan error
	Done() <-chan struct{}
}

// FrameSink accepts frames for transmission
type FrameSink interface {
	// Push hands one frame to the encoder. It never blocks on the network.
	Push(f frame.RawFrame) error
}

var (
	_ Pipeline  = (*Sender)(nil)
	_ Pipeline  = (*Receiver)(nil)
	_ FrameSink = (*Sender)(nil)
)
