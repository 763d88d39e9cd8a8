package screencast

import (
	"fmt"
	"net"
	"time"

	"github.com/e7canasta/orion-screencast/framebridge"
	"github.com/e7canasta/orion-screencast/internal/lifecycle"
	"github.com/e7canasta/orion-screencast/internal/pipeline"
	"github.com/e7canasta/orion-screencast/internal/warmup"
)

const (
	// DefaultPort is the conventional UDP port of the stream
	DefaultPort uint16 = 50496
	// DefaultPayloadType is the RTP payload type both ends agree on
	DefaultPayloadType uint8 = 96
	// DefaultKeyframeInterval is the maximum distance between keyframes, in frames
	DefaultKeyframeInterval uint = 60
	// DefaultBitrateKbps is the encoder target bitrate
	DefaultBitrateKbps uint = 4000
	// DefaultPreset is the x264 speed preset; slower presets add latency
	DefaultPreset = "ultrafast"
	// DefaultFPS is the target frame rate
	DefaultFPS = 60
	// DefaultPatternWidth and DefaultPatternHeight size the test pattern
	DefaultPatternWidth  = 640
	DefaultPatternHeight = 360
)

// EndpointConfig is a UDP endpoint. Sender and receiver agree on it out of
// band; there is no discovery and no default host.
type EndpointConfig struct {
	// Host is the destination for a sender, the local bind address for a
	// receiver (empty binds all interfaces). IPv4, IPv6 or a hostname.
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// Addr returns host:port, bracketing IPv6 literals
func (e EndpointConfig) Addr() string {
	return net.JoinHostPort(e.Host, fmt.Sprint(e.Port))
}

// String returns Addr
func (e EndpointConfig) String() string {
	return e.Addr()
}

func (e EndpointConfig) validate(requireHost bool) error {
	if requireHost && e.Host == "" {
		return fmt.Errorf("%w: endpoint host is required", ErrInvalidConfig)
	}
	if e.Port == 0 {
		return fmt.Errorf("%w: endpoint port is required", ErrInvalidConfig)
	}
	return nil
}

// SourceKind selects where a sender's frames come from
type SourceKind int

const (
	// SourceAppFrames means frames are supplied with Sender.Push
	SourceAppFrames SourceKind = iota
	// SourceTestPattern means GStreamer generates a synthetic pattern
	SourceTestPattern
)

// String returns a human-readable source name
func (k SourceKind) String() string {
	switch k {
	case SourceAppFrames:
		return "app"
	case SourceTestPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// SenderConfig configures the encode-transmit pipeline. Zero values take
// the defaults above, except Endpoint which is always explicit.
type SenderConfig struct {
	Endpoint         EndpointConfig
	PayloadType      uint8
	KeyframeInterval uint
	BitrateKbps      uint
	// Preset is an x264 speed preset, ultrafast through medium
	Preset string
	FPS    int
	Source SourceKind
	// PatternWidth and PatternHeight size the SourceTestPattern frames
	PatternWidth  int
	PatternHeight int
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.PayloadType == 0 {
		c.PayloadType = DefaultPayloadType
	}
	if c.KeyframeInterval == 0 {
		c.KeyframeInterval = DefaultKeyframeInterval
	}
	if c.BitrateKbps == 0 {
		c.BitrateKbps = DefaultBitrateKbps
	}
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.PatternWidth == 0 {
		c.PatternWidth = DefaultPatternWidth
	}
	if c.PatternHeight == 0 {
		c.PatternHeight = DefaultPatternHeight
	}
	return c
}

// Validate checks the configuration after defaults are applied
func (c SenderConfig) Validate() error {
	c = c.withDefaults()

	if err := c.Endpoint.validate(true); err != nil {
		return err
	}
	if err := validatePayloadType(c.PayloadType); err != nil {
		return err
	}
	if !pipeline.SpeedPreset(c.Preset) {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, c.Preset)
	}
	if c.FPS < 1 || c.FPS > 240 {
		return fmt.Errorf("%w: invalid FPS %d (must be 1-240)", ErrInvalidConfig, c.FPS)
	}
	if c.Source != SourceAppFrames && c.Source != SourceTestPattern {
		return fmt.Errorf("%w: unknown source %d", ErrInvalidConfig, c.Source)
	}
	if c.Source == SourceTestPattern && (c.PatternWidth%2 != 0 || c.PatternHeight%2 != 0 || c.PatternWidth < 2 || c.PatternHeight < 2) {
		return fmt.Errorf("%w: pattern %dx%d must have even, positive dimensions", ErrInvalidConfig, c.PatternWidth, c.PatternHeight)
	}
	return nil
}

// ReceiverConfig configures the receive-decode pipeline
type ReceiverConfig struct {
	// Endpoint is the local bind address; Host may be empty
	Endpoint    EndpointConfig
	PayloadType uint8
	// JitterLatency adds a jitter buffer of that latency when positive
	JitterLatency time.Duration
	// OnFrame is called on the streaming thread after each frame reached the
	// bridge, typically to request a repaint. It must not block. Stop from
	// here would wait on the thread it runs on; call Receiver.StopAsync.
	OnFrame func()
}

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.PayloadType == 0 {
		c.PayloadType = DefaultPayloadType
	}
	return c
}

// Validate checks the configuration after defaults are applied
func (c ReceiverConfig) Validate() error {
	c = c.withDefaults()

	if err := c.Endpoint.validate(false); err != nil {
		return err
	}
	if err := validatePayloadType(c.PayloadType); err != nil {
		return err
	}
	if c.JitterLatency < 0 {
		return fmt.Errorf("%w: negative jitter latency %v", ErrInvalidConfig, c.JitterLatency)
	}
	return nil
}

// H.264 has no static payload type, so only the dynamic range is accepted
func validatePayloadType(pt uint8) error {
	if pt < 96 || pt > 127 {
		return fmt.Errorf("%w: payload type %d outside the dynamic range 96-127", ErrInvalidConfig, pt)
	}
	return nil
}

// State is the lifecycle state of a pipeline
type State = lifecycle.State

const (
	StateUnconfigured = lifecycle.Unconfigured
	StateConfiguring  = lifecycle.Configuring
	StatePlaying      = lifecycle.Playing
	StateStopped      = lifecycle.Stopped
)

// WarmupStats is the result of Receiver.Warmup
type WarmupStats = warmup.Stats

// SenderStats contains current sender statistics
type SenderStats struct {
	ID       string
	State    State
	Endpoint string
	// FramesPushed counts frames accepted by the pipeline
	FramesPushed uint64
	// FramesRejected counts invalid frames and appsrc refusals
	FramesRejected uint64
	BytesPushed    uint64
	// RTPPackets and RTPBytes count datagrams handed to the socket
	RTPPackets uint64
	RTPBytes   uint64
	// Resolution of the current source caps, e.g. "1280x720"
	Resolution string
	Uptime     time.Duration
}

// ReceiverStats contains current receiver statistics
type ReceiverStats struct {
	ID       string
	State    State
	Endpoint string
	// FramesDecoded counts frames delivered to the bridge
	FramesDecoded uint64
	// FramesSkipped counts samples that could not be converted
	FramesSkipped uint64
	BytesDecoded  uint64
	// FPSReal is decoded frames over uptime
	FPSReal float64
	// RTP counters from the socket side
	RTPPackets      uint64
	RTPBytes        uint64
	PacketsLost     uint64
	Reordered       uint64
	PayloadMismatch uint64
	Malformed       uint64
	// Resolution of the last decoded frame
	Resolution string
	// SinceLastFrame is zero before the first frame
	SinceLastFrame time.Duration
	Uptime         time.Duration
	Bridge         framebridge.Stats
}
