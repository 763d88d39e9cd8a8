package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-screencast/internal/lifecycle"
)

// busPollInterval keeps shutdown responsive while waiting for bus messages
const busPollInterval = 50 * time.Millisecond

// errorDrainTimeout bounds the wait for the error message that explains a
// failed state change
const errorDrainTimeout = 200 * time.Millisecond

// Runner adapts a plan to lifecycle.Runner.
//
// Configure builds the graph and moves it to READY, which is where sources
// and sinks open their sockets. Play moves it to PLAYING. Watch forwards bus
// messages as lifecycle events. Release sets the pipeline to NULL.
type Runner struct {
	name string
	plan Plan

	// bindStage, when set, turns a READY failure of that stage into a BindError
	bindStage string
	bindAddr  string

	// onBuilt runs after linking and before READY, to attach callbacks and probes
	onBuilt func(*Graph) error

	graph *Graph
}

// RunnerOption customises a Runner
type RunnerOption func(*Runner)

// WithBindCheck reports READY failures of stage as a *BindError on addr
func WithBindCheck(stage, addr string) RunnerOption {
	return func(r *Runner) {
		r.bindStage = stage
		r.bindAddr = addr
	}
}

// WithOnBuilt registers a hook that runs once the graph is linked
func WithOnBuilt(fn func(*Graph) error) RunnerOption {
	return func(r *Runner) {
		r.onBuilt = fn
	}
}

// NewRunner creates a runner for plan. Nothing is built until Configure.
func NewRunner(name string, plan Plan, opts ...RunnerOption) *Runner {
	r := &Runner{name: name, plan: plan}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the built graph, nil before Configure succeeded
func (r *Runner) Graph() *Graph {
	return r.graph
}

// Configure implements lifecycle.Runner
func (r *Runner) Configure() error {
	graph, err := Build(r.name, r.plan)
	if err != nil {
		return err
	}
	r.graph = graph

	if r.onBuilt != nil {
		if err := r.onBuilt(graph); err != nil {
			return &BuildError{Cause: fmt.Errorf("failed to attach callbacks: %w", err)}
		}
	}

	if err := graph.Pipeline.SetState(gst.StateReady); err != nil {
		return r.explainStateFailure("READY", err)
	}

	slog.Debug("pipeline: ready", "name", r.name)
	return nil
}

// Play implements lifecycle.Runner
func (r *Runner) Play() error {
	if err := r.graph.Pipeline.SetState(gst.StatePlaying); err != nil {
		return r.explainStateFailure("PLAYING", err)
	}
	return nil
}

// Watch implements lifecycle.Runner. It polls the pipeline bus until ctx is
// done or a terminal message (EOS, error) has been forwarded.
func (r *Runner) Watch(ctx context.Context, events chan<- lifecycle.Event) {
	bus := r.graph.Pipeline.GetPipelineBus()
	pipelineName := r.graph.Pipeline.GetName()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("pipeline: context cancelled, stopping bus watch", "name", r.name)
			return

		default:
			// Poll for messages with short timeout for responsive shutdown
			msg := bus.TimedPop(busPollInterval)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				lifecycle.Emit(ctx, events, lifecycle.Event{Kind: lifecycle.EventEndOfStream, Source: msg.Source()})
				return

			case gst.MessageError:
				terr := transportErrorFrom(msg)
				slog.Error("pipeline: bus error",
					"name", r.name,
					"source", terr.Source,
					"category", terr.Category.String(),
					"error", terr.Message,
					"debug", terr.Debug,
				)
				lifecycle.Emit(ctx, events, lifecycle.Event{Kind: lifecycle.EventError, Err: terr, Source: terr.Source})
				return

			case gst.MessageWarning:
				if gerr := msg.ParseWarning(); gerr != nil {
					slog.Warn("pipeline: bus warning",
						"name", r.name,
						"source", msg.Source(),
						"warning", gerr.Error(),
						"debug", gerr.DebugString(),
					)
				}

			case gst.MessageStateChanged:
				if msg.Source() == pipelineName {
					from, to := msg.ParseStateChanged()
					slog.Debug("pipeline: state changed", "name", r.name, "from", from, "to", to)
					if to == gst.StatePlaying {
						lifecycle.Emit(ctx, events, lifecycle.Event{Kind: lifecycle.EventPlaying, Source: pipelineName})
					}
				}
			}
		}
	}
}

// Release implements lifecycle.Runner
func (r *Runner) Release() error {
	if r.graph == nil {
		return nil
	}
	err := r.graph.release()
	r.graph = nil
	return err
}

// explainStateFailure pops the bus error that caused a failed state change
// and turns it into a typed error naming the stage.
func (r *Runner) explainStateFailure(target string, stateErr error) error {
	cause := fmt.Errorf("failed to set pipeline to %s: %w", target, stateErr)

	msg := popError(r.graph.Pipeline.GetPipelineBus(), errorDrainTimeout)
	if msg == nil {
		return &BuildError{Cause: cause}
	}

	terr := transportErrorFrom(msg)
	if r.bindStage != "" && terr.Source == r.bindStage {
		return &BindError{Addr: r.bindAddr, Cause: fmt.Errorf("%s: %s", terr.Message, terr.Debug)}
	}

	stage, _ := r.plan.Stage(terr.Source)
	return &BuildError{
		Stage:   terr.Source,
		Factory: stage.Factory,
		Cause:   fmt.Errorf("%w: %s", cause, terr.Message),
	}
}

// popError returns the first error message posted within timeout, or nil
func popError(bus *gst.Bus, timeout time.Duration) *gst.Message {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(busPollInterval)
		if msg != nil && msg.Type() == gst.MessageError {
			return msg
		}
	}
	return nil
}
