package screencast

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/internal/lifecycle"
	"github.com/e7canasta/orion-screencast/internal/pipeline"
)

// Sender encodes frames to H.264, packetizes them as RTP and sends them over
// UDP to a single endpoint.
//
//	appsrc → videoconvert → I420 → x264enc → rtph264pay → udpsink
type Sender struct {
	cfg    SenderConfig
	runner *pipeline.Runner
	handle *lifecycle.Handle

	// writer is set once the graph is built, nil with SourceTestPattern
	writer atomic.Pointer[pipeline.FrameWriter]
	rtp    *pipeline.RTPCounters
}

// NewSender creates a sender with fail-fast validation.
//
// The configuration is validated and every GStreamer element the pipeline
// needs is instantiated once, so a missing encoder is a *PipelineBuildError
// here rather than at Start.
func NewSender(cfg SenderConfig) (*Sender, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := pipeline.SenderPlan(pipeline.SenderSpec{
		Host:             cfg.Endpoint.Host,
		Port:             int(cfg.Endpoint.Port),
		PayloadType:      uint(cfg.PayloadType),
		KeyframeInterval: cfg.KeyframeInterval,
		BitrateKbps:      cfg.BitrateKbps,
		Preset:           cfg.Preset,
		FPS:              cfg.FPS,
		TestPattern:      cfg.Source == SourceTestPattern,
		PatternWidth:     cfg.PatternWidth,
		PatternHeight:    cfg.PatternHeight,
	})
	if err != nil {
		return nil, err
	}
	if err := pipeline.CheckAvailable(plan); err != nil {
		return nil, fmt.Errorf("screencast: GStreamer not ready for sending: %w", err)
	}

	s := &Sender{
		cfg: cfg,
		rtp: pipeline.NewRTPCounters(cfg.PayloadType),
	}
	s.runner = pipeline.NewRunner("screencast-sender", plan, pipeline.WithOnBuilt(s.attach))
	s.handle = lifecycle.New("sender", s.runner)

	slog.Info("screencast: sender created",
		"id", s.handle.ID(),
		"endpoint", cfg.Endpoint.Addr(),
		"payload_type", cfg.PayloadType,
		"source", cfg.Source.String(),
		"fps", cfg.FPS,
		"bitrate_kbps", cfg.BitrateKbps,
		"preset", cfg.Preset,
		"keyframe_interval", cfg.KeyframeInterval,
	)
	return s, nil
}

func (s *Sender) attach(g *pipeline.Graph) error {
	if s.cfg.Source == SourceAppFrames {
		w, err := pipeline.NewFrameWriter(g, pipeline.StageSource, s.cfg.FPS)
		if err != nil {
			return err
		}
		s.writer.Store(w)
	}
	return pipeline.AttachRTPProbe(g, pipeline.StageUDPSink, "sink", s.rtp)
}

// Start configures the pipeline and sets it playing.
//
// Returns a *PipelineBuildError if any stage cannot be created, configured or
// linked. The sender is then Stopped and must be recreated.
func (s *Sender) Start(ctx context.Context) error {
	if err := s.handle.Start(ctx); err != nil {
		return fmt.Errorf("screencast: failed to start sender: %w", err)
	}
	return nil
}

// Push hands one frame to the encoder. Frames with odd dimensions are
// trimmed by one row or column. A change of size renegotiates the stream, so
// a new crop takes effect on the next frame.
func (s *Sender) Push(f frame.RawFrame) error {
	if s.cfg.Source != SourceAppFrames {
		return fmt.Errorf("screencast: sender generates a test pattern and accepts no frames")
	}
	if st := s.handle.State(); st != lifecycle.Playing {
		return fmt.Errorf("%w (state %s)", ErrNotPlaying, st)
	}
	w := s.writer.Load()
	if w == nil {
		return ErrNotPlaying
	}
	return w.Write(f)
}

// EndStream asks the encoder to flush and the pipeline to finish. The sender
// then stops on its own with ErrEndOfStream as terminal cause.
func (s *Sender) EndStream() error {
	if st := s.handle.State(); st != lifecycle.Playing {
		return fmt.Errorf("%w (state %s)", ErrNotPlaying, st)
	}
	if w := s.writer.Load(); w != nil {
		w.EndOfStream()
		return nil
	}
	return fmt.Errorf("screencast: test pattern sender has no end of stream, use Stop")
}

// Stop tears the pipeline down. Idempotent.
func (s *Sender) Stop() error {
	wasPlaying := s.handle.State() == lifecycle.Playing
	err := s.handle.Stop()
	if !wasPlaying {
		return err
	}

	st := s.Stats()
	slog.Info("screencast: sender stopped",
		"id", st.ID,
		"frames_pushed", st.FramesPushed,
		"rtp_packets", st.RTPPackets,
		"uptime", st.Uptime,
	)
	return err
}

// State returns the lifecycle state
func (s *Sender) State() State { return s.handle.State() }

// ID returns the pipeline identifier
func (s *Sender) ID() string { return s.handle.ID() }

// Errors delivers the terminal failure, if any
func (s *Sender) Errors() <-chan error { return s.handle.Errors() }

// Done is closed once the pipeline is torn down
func (s *Sender) Done() <-chan struct{} { return s.handle.Done() }

// Err returns the terminal cause once Done is closed
func (s *Sender) Err() error { return s.handle.Err() }

// Stats returns current statistics. Thread-safe.
func (s *Sender) Stats() SenderStats {
	st := SenderStats{
		ID:       s.handle.ID(),
		State:    s.handle.State(),
		Endpoint: s.cfg.Endpoint.Addr(),
	}

	if w := s.writer.Load(); w != nil {
		st.FramesPushed = w.Pushed.Load()
		st.FramesRejected = w.Rejected.Load()
		st.BytesPushed = w.Bytes.Load()
		if width, height := w.Resolution(); width > 0 {
			st.Resolution = fmt.Sprintf("%dx%d", width, height)
		}
	} else if s.cfg.Source == SourceTestPattern {
		st.Resolution = fmt.Sprintf("%dx%d", s.cfg.PatternWidth, s.cfg.PatternHeight)
	}

	rtp := s.rtp.Stats()
	st.RTPPackets = rtp.Packets
	st.RTPBytes = rtp.Bytes

	if started := s.handle.StartedAt(); !started.IsZero() {
		st.Uptime = time.Since(started)
	}
	return st
}
