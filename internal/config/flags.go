package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/e7canasta/orion-screencast/frame"
)

// Parse builds the configuration of a mode from command-line arguments.
//
// A -config file, if present, is loaded first; every flag given on the
// command line then overrides the file. The result is validated.
func Parse(mode Mode, args []string) (*Config, error) {
	cfg := Default()
	if path := configPath(args); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Mode = mode

	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.String("config", "", "optional YAML file pre-filling these flags")
	Bind(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Bind registers the flags of cfg's mode on fs, defaulting to cfg's values
func Bind(fs *flag.FlagSet, cfg *Config) {
	hostUsage := "peer host (required)"
	if cfg.Mode == ModeReceive {
		hostUsage = "local bind address (empty for all interfaces)"
	}
	fs.StringVar(&cfg.Peer.Host, "host", cfg.Peer.Host, hostUsage)
	fs.Var(uint16Value{&cfg.Peer.Port}, "port", "UDP port")
	fs.Var(uint8Value{&cfg.Peer.PayloadType}, "pt", "RTP payload type (96-127)")

	fs.BoolVar(&cfg.Log.Debug, "debug", cfg.Log.Debug, "enable debug logging")
	fs.BoolVar(&cfg.Log.JSON, "log-json", cfg.Log.JSON, "log as JSON")
	fs.IntVar(&cfg.StatsIntervalS, "stats", cfg.StatsIntervalS, "stats interval in seconds (0 disables)")

	if cfg.Mode == ModeSend || cfg.Mode == ModeLoopback {
		fs.StringVar(&cfg.Send.Source, "source", cfg.Send.Source, "frame source: screen, window, pattern, synthetic")
		fs.IntVar(&cfg.Send.Monitor, "monitor", cfg.Send.Monitor, "monitor index for the screen source")
		fs.StringVar(&cfg.Send.Window, "window", cfg.Send.Window, "window title for the window source")
		fs.Var(cropValue{&cfg.Send.Crop}, "crop", "initial crop WxH+X+Y in source pixels")
		fs.IntVar(&cfg.Send.FPS, "fps", cfg.Send.FPS, "target frames per second")
		fs.UintVar(&cfg.Send.BitrateKbps, "bitrate", cfg.Send.BitrateKbps, "encoder bitrate in kbit/s")
		fs.UintVar(&cfg.Send.KeyframeInterval, "keyint", cfg.Send.KeyframeInterval, "maximum frames between keyframes")
		fs.StringVar(&cfg.Send.Preset, "preset", cfg.Send.Preset, "x264 speed preset (ultrafast..medium)")
		fs.IntVar(&cfg.Send.PatternWidth, "pattern-width", cfg.Send.PatternWidth, "test pattern width")
		fs.IntVar(&cfg.Send.PatternHeight, "pattern-height", cfg.Send.PatternHeight, "test pattern height")
		fs.BoolVar(&cfg.Send.Preview, "preview", cfg.Send.Preview, "show a preview window for crop selection")
	}

	if cfg.Mode == ModeReceive || cfg.Mode == ModeLoopback {
		fs.IntVar(&cfg.Receive.JitterLatencyMS, "jitter", cfg.Receive.JitterLatencyMS, "jitter buffer latency in ms (0 disables)")
		fs.IntVar(&cfg.Receive.WarmupS, "warmup", cfg.Receive.WarmupS, "warm-up measurement in seconds (0 disables)")
		fs.BoolVar(&cfg.Receive.Headless, "headless", cfg.Receive.Headless, "receive without a display window")
	}
}

// configPath finds -config/--config in args without parsing the rest
func configPath(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(name, "config=") {
			return strings.TrimPrefix(name, "config=")
		}
	}
	return ""
}

// ParseCrop parses "WxH+X+Y"
func ParseCrop(s string) (frame.CropRect, error) {
	var r frame.CropRect
	size, origin, ok := strings.Cut(s, "+")
	if !ok {
		return r, fmt.Errorf("crop %q: want WxH+X+Y", s)
	}
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return r, fmt.Errorf("crop %q: want WxH+X+Y", s)
	}
	x, y, ok := strings.Cut(origin, "+")
	if !ok {
		return r, fmt.Errorf("crop %q: want WxH+X+Y", s)
	}

	for _, f := range []struct {
		dst *int
		src string
	}{{&r.Width, w}, {&r.Height, h}, {&r.X, x}, {&r.Y, y}} {
		n, err := strconv.Atoi(f.src)
		if err != nil {
			return frame.CropRect{}, fmt.Errorf("crop %q: %w", s, err)
		}
		*f.dst = n
	}
	return r, nil
}

type cropValue struct{ r **frame.CropRect }

func (v cropValue) String() string {
	if v.r == nil || *v.r == nil {
		return ""
	}
	return (*v.r).String()
}

func (v cropValue) Set(s string) error {
	if s == "" {
		*v.r = nil
		return nil
	}
	r, err := ParseCrop(s)
	if err != nil {
		return err
	}
	*v.r = &r
	return nil
}

type uint16Value struct{ p *uint16 }

func (v uint16Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*v.p), 10)
}

func (v uint16Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return err
	}
	*v.p = uint16(n)
	return nil
}

type uint8Value struct{ p *uint8 }

func (v uint8Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*v.p), 10)
}

func (v uint8Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return err
	}
	*v.p = uint8(n)
	return nil
}
