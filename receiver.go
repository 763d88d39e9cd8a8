package screencast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/framebridge"
	"github.com/e7canasta/orion-screencast/internal/lifecycle"
	"github.com/e7canasta/orion-screencast/internal/pipeline"
	"github.com/e7canasta/orion-screencast/internal/warmup"
)

// Receiver listens on a UDP port, depacketizes and decodes the H.264 RTP
// stream and publishes every decoded frame to a frame bridge.
//
//	udpsrc → [rtpjitterbuffer] → rtph264depay → h264parse → avdec_h264 → RGBA → appsink
type Receiver struct {
	cfg        ReceiverConfig
	bridge     *framebridge.Bridge
	ownsBridge bool

	runner *pipeline.Runner
	handle *lifecycle.Handle

	sink     pipeline.SinkCounters
	rtp      *pipeline.RTPCounters
	recorder warmup.Recorder
}

// NewReceiver creates a receiver with fail-fast validation.
//
// Frames are published to bridge. When bridge is nil the receiver creates
// its own and closes it once the pipeline stopped, so consumers holding it
// see the stream end.
func NewReceiver(cfg ReceiverConfig, bridge *framebridge.Bridge) (*Receiver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := pipeline.ReceiverPlan(pipeline.ReceiverSpec{
		Address:         cfg.Endpoint.Host,
		Port:            int(cfg.Endpoint.Port),
		PayloadType:     uint(cfg.PayloadType),
		JitterLatencyMS: uint(cfg.JitterLatency / time.Millisecond),
	})
	if err := pipeline.CheckAvailable(plan); err != nil {
		return nil, fmt.Errorf("screencast: GStreamer not ready for receiving: %w", err)
	}

	r := &Receiver{
		cfg:    cfg,
		bridge: bridge,
		rtp:    pipeline.NewRTPCounters(cfg.PayloadType),
	}
	if r.bridge == nil {
		r.bridge = framebridge.New()
		r.ownsBridge = true
	}

	r.runner = pipeline.NewRunner("screencast-receiver", plan,
		pipeline.WithBindCheck(pipeline.StageUDPSrc, r.bindAddr()),
		pipeline.WithOnBuilt(r.attach),
	)
	r.handle = lifecycle.New("receiver", r.runner)

	slog.Info("screencast: receiver created",
		"id", r.handle.ID(),
		"bind", r.bindAddr(),
		"payload_type", cfg.PayloadType,
		"jitter_latency", cfg.JitterLatency,
	)
	return r, nil
}

func (r *Receiver) bindAddr() string {
	e := r.cfg.Endpoint
	if e.Host == "" {
		e.Host = "0.0.0.0"
	}
	return e.Addr()
}

func (r *Receiver) attach(g *pipeline.Graph) error {
	if err := pipeline.AttachSampleSink(g, pipeline.StageAppSink, receiverSink{r}, &r.sink); err != nil {
		return err
	}
	return pipeline.AttachRTPProbe(g, pipeline.StageUDPSrc, "src", r.rtp)
}

// receiverSink runs on the GStreamer streaming thread
type receiverSink struct{ r *Receiver }

func (s receiverSink) Deliver(f frame.RawFrame) {
	s.r.recorder.Observe(f.Timestamp)

	if err := s.r.bridge.Send(f); err != nil {
		// consumer gone, nothing to repaint
		return
	}
	if s.r.cfg.OnFrame != nil {
		s.r.cfg.OnFrame()
	}
}

// Start binds the socket and sets the pipeline playing.
//
// Returns a *BindError when the port cannot be opened and a
// *PipelineBuildError when a stage cannot be built. Either way the receiver
// is Stopped and must be recreated.
func (r *Receiver) Start(ctx context.Context) error {
	err := r.handle.Start(ctx)
	if errors.Is(err, ErrAlreadyStarted) {
		return fmt.Errorf("screencast: failed to start receiver: %w", err)
	}

	if r.ownsBridge {
		go func() {
			<-r.handle.Done()
			r.bridge.Close()
		}()
	}

	if err != nil {
		return fmt.Errorf("screencast: failed to start receiver: %w", err)
	}
	return nil
}

// Stop tears the pipeline down and waits for it. Idempotent. Must not be
// called from OnFrame; see StopAsync.
func (r *Receiver) Stop() error {
	wasPlaying := r.handle.State() == lifecycle.Playing
	err := r.handle.Stop()
	if !wasPlaying {
		return err
	}

	st := r.Stats()
	slog.Info("screencast: receiver stopped",
		"id", st.ID,
		"frames_decoded", st.FramesDecoded,
		"frames_skipped", st.FramesSkipped,
		"rtp_packets", st.RTPPackets,
		"packets_lost", st.PacketsLost,
		"uptime", st.Uptime,
	)
	return err
}

// StopAsync begins teardown without waiting for it and is safe to call
// from OnFrame. Done is closed once resources are released.
func (r *Receiver) StopAsync() {
	r.handle.StopAsync()
}

// Bridge returns the bridge frames are published to
func (r *Receiver) Bridge() *framebridge.Bridge { return r.bridge }

// State returns the lifecycle state
func (r *Receiver) State() State { return r.handle.State() }

// ID returns the pipeline identifier
func (r *Receiver) ID() string { return r.handle.ID() }

// Errors delivers the terminal failure, if any
func (r *Receiver) Errors() <-chan error { return r.handle.Errors() }

// Done is closed once the pipeline is torn down
func (r *Receiver) Done() <-chan struct{} { return r.handle.Done() }

// Err returns the terminal cause once Done is closed
func (r *Receiver) Err() error { return r.handle.Err() }

// Warmup measures the decoded frame rate over d.
//
// Call it after Start. It blocks for d, returns early if the pipeline stops,
// and reports an unstable rate as an error wrapping warmup.ErrUnstable
// together with the measured statistics.
func (r *Receiver) Warmup(ctx context.Context, d time.Duration) (WarmupStats, error) {
	if st := r.handle.State(); st != lifecycle.Playing {
		return WarmupStats{}, fmt.Errorf("%w (state %s)", ErrNotPlaying, st)
	}
	return warmup.Measure(ctx, &r.recorder, d, DefaultFPS, r.handle.Done())
}

// Stats returns current statistics. Thread-safe.
func (r *Receiver) Stats() ReceiverStats {
	st := ReceiverStats{
		ID:            r.handle.ID(),
		State:         r.handle.State(),
		Endpoint:      r.bindAddr(),
		FramesDecoded: r.sink.Frames.Load(),
		FramesSkipped: r.sink.Skipped.Load(),
		BytesDecoded:  r.sink.Bytes.Load(),
		Bridge:        r.bridge.Stats(),
	}

	rtp := r.rtp.Stats()
	st.RTPPackets = rtp.Packets
	st.RTPBytes = rtp.Bytes
	st.PacketsLost = rtp.Lost
	st.Reordered = rtp.Reordered
	st.PayloadMismatch = rtp.PayloadMismatch
	st.Malformed = rtp.Malformed

	if w, h := r.sink.LastWidth.Load(), r.sink.LastHeight.Load(); w > 0 {
		st.Resolution = fmt.Sprintf("%dx%d", w, h)
	}
	if last := r.sink.LastFrameAt.Load(); last > 0 {
		st.SinceLastFrame = time.Since(time.Unix(0, last))
	}
	if started := r.handle.StartedAt(); !started.IsZero() {
		st.Uptime = time.Since(started)
		if secs := st.Uptime.Seconds(); secs > 0 {
			st.FPSReal = float64(st.FramesDecoded) / secs
		}
	}
	return st
}
