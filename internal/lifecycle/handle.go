// Package lifecycle owns the state machine shared by the send and receive
// pipelines.
//
//	Unconfigured --Start--> Configuring --ok--> Playing --Stop/EOS/Error--> Stopped
//	                             \--fail--> Stopped
//
// The native pipeline is abstracted behind Runner so the transitions,
// the teardown ordering and the concurrency guarantees can be exercised
// without GStreamer.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyStarted is returned by Start on a handle that left Unconfigured
	ErrAlreadyStarted = errors.New("lifecycle: pipeline already started")
	// ErrEndOfStream is the terminal cause when the pipeline drained normally
	ErrEndOfStream = errors.New("lifecycle: end of stream")
)

// stopTimeout bounds how long teardown waits for the bus watcher
const stopTimeout = 3 * time.Second

// State is the lifecycle state of a pipeline
type State int32

const (
	// Unconfigured means Start was not called yet
	Unconfigured State = iota
	// Configuring means elements are being created, linked and prepared
	Configuring
	// Playing means media is flowing
	Playing
	// Stopped is terminal; native resources have been released
	Stopped
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configuring:
		return "configuring"
	case Playing:
		return "playing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventKind tags an Event
type EventKind int

const (
	// EventPlaying reports that the pipeline reached the playing state
	EventPlaying EventKind = iota
	// EventEndOfStream reports that the pipeline drained
	EventEndOfStream
	// EventError reports an asynchronous pipeline failure
	EventError
)

// String returns a human-readable kind name
func (k EventKind) String() string {
	switch k {
	case EventPlaying:
		return "playing"
	case EventEndOfStream:
		return "end-of-stream"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a bus notification forwarded by a Runner
type Event struct {
	Kind EventKind
	// Err is set for EventError
	Err error
	// Source names the element that posted the message, if known
	Source string
}

// Runner is the native side of a pipeline.
//
// Configure and Play are called once, in order, from Start. Watch runs on its
// own goroutine while the pipeline plays; it must return when ctx is done and
// must not block on a send once ctx is done (use Emit). Release is called
// exactly once, after Watch has returned, whatever the outcome of Start.
type Runner interface {
	Configure() error
	Play() error
	Watch(ctx context.Context, events chan<- Event)
	Release() error
}

// Emit sends ev unless ctx is done first. It reports whether ev was delivered.
func Emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Handle drives a Runner through the lifecycle.
//
// All methods are safe for concurrent use. Stop may race with a bus error or
// end of stream; exactly one teardown happens and every caller observes the
// Stopped state once it returns.
type Handle struct {
	id     string
	name   string
	runner Runner

	mu        sync.Mutex
	state     atomic.Int32
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
	err       error

	done chan struct{}
	errs chan error
}

// New creates an Unconfigured handle. name is used in logs only.
func New(name string, runner Runner) *Handle {
	return &Handle{
		id:     uuid.NewString(),
		name:   name,
		runner: runner,
		done:   make(chan struct{}),
		errs:   make(chan error, 1),
	}
}

// ID returns the unique handle identifier
func (h *Handle) ID() string { return h.id }

// State returns the current state without locking
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed once the handle reached Stopped and resources are released
func (h *Handle) Done() <-chan struct{} { return h.done }

// Errors delivers the terminal failure, at most once. End of stream and
// explicit stops are not failures and are never sent.
func (h *Handle) Errors() <-chan error { return h.errs }

// Err returns the terminal cause after Done is closed: nil for an explicit
// stop, ErrEndOfStream for a drained pipeline, or the failure.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// StartedAt returns when the pipeline reached Playing, zero before that
func (h *Handle) StartedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startedAt
}

// Start configures and plays the pipeline, then returns. Bus monitoring
// continues in the background until Stop, end of stream, an error, or
// cancellation of ctx.
//
// On failure the handle is Stopped, resources are released and the error is
// returned as is. There is no retry.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.State() != Unconfigured {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, h.State())
	}

	log := slog.With("pipeline", h.name, "id", h.id)
	h.setState(Configuring)
	log.Debug("lifecycle: configuring pipeline")

	if err := h.runner.Configure(); err != nil {
		h.abortLocked(log, err)
		return err
	}
	if err := h.runner.Play(); err != nil {
		h.abortLocked(log, err)
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.startedAt = time.Now()
	h.setState(Playing)

	events := make(chan Event, 8)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runner.Watch(watchCtx, events)
	}()
	go h.supervise(watchCtx, events)

	log.Info("lifecycle: pipeline playing")
	return nil
}

// Stop tears the pipeline down and waits until resources are released.
// Idempotent; a no-op on a handle that was never started.
func (h *Handle) Stop() error {
	if h.State() == Unconfigured {
		// Start may be running; take the lock to serialise with it.
		h.mu.Lock()
		st := h.State()
		h.mu.Unlock()
		if st == Unconfigured {
			slog.Debug("lifecycle: pipeline not started, nothing to stop", "pipeline", h.name)
			return nil
		}
	}

	h.shutdown(nil)
	<-h.done
	return nil
}

// StopAsync begins teardown and returns at once; Done is closed when it
// completes. Stop waits for Release, and releasing a pipeline joins its
// streaming threads, so code running on one of those threads must use
// StopAsync. A no-op unless the handle is Playing.
func (h *Handle) StopAsync() {
	if h.State() != Playing {
		return
	}
	go h.shutdown(nil)
}

// supervise owns the reaction to bus events
func (h *Handle) supervise(ctx context.Context, events <-chan Event) {
	log := slog.With("pipeline", h.name, "id", h.id)

	for {
		select {
		case <-ctx.Done():
			// Stop already tore down, or the parent context was cancelled
			h.shutdown(nil)
			return

		case ev := <-events:
			switch ev.Kind {
			case EventPlaying:
				log.Debug("lifecycle: bus reports playing")
			case EventEndOfStream:
				log.Info("lifecycle: end of stream", "uptime", time.Since(h.StartedAt()))
				h.shutdown(ErrEndOfStream)
				return
			case EventError:
				log.Error("lifecycle: pipeline error", "source", ev.Source, "error", ev.Err)
				h.shutdown(ev.Err)
				return
			}
		}
	}
}

// shutdown performs the single Playing -> Stopped teardown. Callers that
// lose the race return immediately and should wait on done.
func (h *Handle) shutdown(cause error) {
	h.mu.Lock()
	if h.State() != Playing {
		h.mu.Unlock()
		return
	}
	h.setState(Stopped)
	cancel := h.cancel
	h.mu.Unlock()

	log := slog.With("pipeline", h.name, "id", h.id)
	log.Info("lifecycle: stopping pipeline", "cause", cause)

	cancel()

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		log.Debug("lifecycle: bus watcher stopped cleanly")
	case <-time.After(stopTimeout):
		log.Warn("lifecycle: stop timeout exceeded, bus watcher may still be running")
	}

	if err := h.runner.Release(); err != nil {
		log.Error("lifecycle: failed to release pipeline", "error", err)
	}

	h.finish(log, cause)
}

// abortLocked handles a failed Start. h.mu must be held.
func (h *Handle) abortLocked(log *slog.Logger, cause error) {
	log.Error("lifecycle: pipeline failed to start", "error", cause)
	h.setState(Stopped)
	if err := h.runner.Release(); err != nil {
		log.Error("lifecycle: failed to release pipeline", "error", err)
	}
	h.err = cause
	h.errs <- cause
	close(h.done)
}

func (h *Handle) finish(log *slog.Logger, cause error) {
	h.mu.Lock()
	h.err = cause
	h.mu.Unlock()

	if cause != nil && !errors.Is(cause, ErrEndOfStream) {
		h.errs <- cause
	}
	close(h.done)

	log.Info("lifecycle: pipeline stopped", "uptime", time.Since(h.StartedAt()))
}

func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
}
