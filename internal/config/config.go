package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/framesource"
)

// Mode selects which side of the stream a process runs
type Mode string

const (
	ModeSend    Mode = "send"
	ModeReceive Mode = "receive"
	// ModeLoopback runs both sides in one process
	ModeLoopback Mode = "loopback"
)

// Frame sources for the send side
const (
	SourceScreen = "screen"
	SourceWindow = "window"
	// SourcePattern is generated inside GStreamer (videotestsrc)
	SourcePattern = "pattern"
	// SourceSynthetic is the Go test pattern pushed like captured frames
	SourceSynthetic = "synthetic"
)

// Config is the complete CLI configuration. Nothing is persisted: a file,
// when given, only pre-fills flags.
type Config struct {
	Mode           Mode          `yaml:"mode"`
	Peer           PeerConfig    `yaml:"peer"`
	Send           SendConfig    `yaml:"send"`
	Receive        ReceiveConfig `yaml:"receive"`
	Log            LogConfig     `yaml:"log"`
	StatsIntervalS int           `yaml:"stats_interval_s"` // 0 disables periodic stats
}

// PeerConfig is the endpoint both sides agree on out of band
type PeerConfig struct {
	Host        string `yaml:"host"` // sender: destination, receiver: bind address
	Port        uint16 `yaml:"port"`
	PayloadType uint8  `yaml:"payload_type"`
}

// SendConfig contains sender settings
type SendConfig struct {
	Source           string          `yaml:"source"` // screen, window, pattern, synthetic
	Monitor          int             `yaml:"monitor"`
	Window           string          `yaml:"window"`
	Crop             *frame.CropRect `yaml:"crop,omitempty"`
	FPS              int             `yaml:"fps"`
	BitrateKbps      uint            `yaml:"bitrate_kbps"`
	KeyframeInterval uint            `yaml:"keyframe_interval"`
	Preset           string          `yaml:"preset"`
	PatternWidth     int             `yaml:"pattern_width"`
	PatternHeight    int             `yaml:"pattern_height"`
	Preview          bool            `yaml:"preview"`
}

// ReceiveConfig contains receiver settings
type ReceiveConfig struct {
	JitterLatencyMS int  `yaml:"jitter_latency_ms"`
	WarmupS         int  `yaml:"warmup_s"`
	Headless        bool `yaml:"headless"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// Default returns a configuration with every default filled in except the
// peer host, which is never defaulted.
func Default() *Config {
	return &Config{
		Peer: PeerConfig{
			Port:        screencast.DefaultPort,
			PayloadType: screencast.DefaultPayloadType,
		},
		Send: SendConfig{
			Source:           SourceScreen,
			FPS:              screencast.DefaultFPS,
			BitrateKbps:      screencast.DefaultBitrateKbps,
			KeyframeInterval: screencast.DefaultKeyframeInterval,
			Preset:           screencast.DefaultPreset,
			PatternWidth:     screencast.DefaultPatternWidth,
			PatternHeight:    screencast.DefaultPatternHeight,
			Preview:          true,
		},
		StatsIntervalS: 10,
	}
}

// Load reads a YAML file over the defaults. Call Validate once flags have
// been applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for its mode
func Validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeSend, ModeLoopback:
		if cfg.Mode == ModeSend && cfg.Peer.Host == "" {
			return fmt.Errorf("peer.host is required to send")
		}
		if err := validateSend(&cfg.Send); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	case ModeReceive:
	default:
		return fmt.Errorf("unknown mode %q (must be send, receive or loopback)", cfg.Mode)
	}

	if cfg.Peer.Port == 0 {
		return fmt.Errorf("peer.port is required")
	}
	if cfg.Receive.JitterLatencyMS < 0 {
		return fmt.Errorf("receive.jitter_latency_ms must be >= 0")
	}
	if cfg.Receive.WarmupS < 0 {
		return fmt.Errorf("receive.warmup_s must be >= 0")
	}
	if cfg.StatsIntervalS < 0 {
		return fmt.Errorf("stats_interval_s must be >= 0")
	}

	// Everything the pipelines check themselves is validated the same way here
	switch cfg.Mode {
	case ModeSend:
		return cfg.SenderConfig().Validate()
	case ModeReceive:
		return cfg.ReceiverConfig().Validate()
	default:
		return nil
	}
}

func validateSend(s *SendConfig) error {
	switch s.Source {
	case SourceScreen:
		if s.Monitor < 0 {
			return fmt.Errorf("monitor must be >= 0")
		}
	case SourceWindow:
		if s.Window == "" {
			return fmt.Errorf("window title is required for the window source")
		}
	case SourcePattern, SourceSynthetic:
	default:
		return fmt.Errorf("unknown source %q (must be screen, window, pattern or synthetic)", s.Source)
	}

	if s.Crop != nil && (s.Crop.Width <= 0 || s.Crop.Height <= 0 || s.Crop.X < 0 || s.Crop.Y < 0) {
		return fmt.Errorf("crop %s must have a non-negative origin and a positive size", s.Crop)
	}
	return nil
}

// SenderConfig maps the configuration onto the sender pipeline
func (c *Config) SenderConfig() screencast.SenderConfig {
	cfg := screencast.SenderConfig{
		Endpoint:         screencast.EndpointConfig{Host: c.Peer.Host, Port: c.Peer.Port},
		PayloadType:      c.Peer.PayloadType,
		KeyframeInterval: c.Send.KeyframeInterval,
		BitrateKbps:      c.Send.BitrateKbps,
		Preset:           c.Send.Preset,
		FPS:              c.Send.FPS,
		Source:           screencast.SourceAppFrames,
		PatternWidth:     c.Send.PatternWidth,
		PatternHeight:    c.Send.PatternHeight,
	}
	if c.Send.Source == SourcePattern {
		cfg.Source = screencast.SourceTestPattern
	}
	return cfg
}

// ReceiverConfig maps the configuration onto the receiver pipeline
func (c *Config) ReceiverConfig() screencast.ReceiverConfig {
	return screencast.ReceiverConfig{
		Endpoint:      screencast.EndpointConfig{Host: c.Peer.Host, Port: c.Peer.Port},
		PayloadType:   c.Peer.PayloadType,
		JitterLatency: time.Duration(c.Receive.JitterLatencyMS) * time.Millisecond,
	}
}

// Target returns the capture target of the screen and window sources
func (c *Config) Target() framesource.Target {
	if c.Send.Source == SourceWindow {
		return framesource.WindowTarget(c.Send.Window)
	}
	return framesource.MonitorTarget(c.Send.Monitor)
}

// StatsInterval returns the periodic stats interval, zero when disabled
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalS) * time.Second
}

// Warmup returns the receiver warm-up duration, zero when disabled
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.Receive.WarmupS) * time.Second
}
