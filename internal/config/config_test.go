package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/framesource"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screencast.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
peer:
  host: 192.168.1.20
  port: 6000
send:
  source: window
  window: Terminal
  crop: {x: 10, y: 20, width: 640, height: 360}
  bitrate_kbps: 2500
receive:
  jitter_latency_ms: 40
log:
  json: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Peer.Host != "192.168.1.20" || cfg.Peer.Port != 6000 {
		t.Errorf("peer = %+v", cfg.Peer)
	}
	if cfg.Peer.PayloadType != screencast.DefaultPayloadType {
		t.Errorf("payload type default lost: %d", cfg.Peer.PayloadType)
	}
	if cfg.Send.Crop == nil || *cfg.Send.Crop != (frame.CropRect{X: 10, Y: 20, Width: 640, Height: 360}) {
		t.Errorf("crop = %v", cfg.Send.Crop)
	}
	if cfg.Send.FPS != screencast.DefaultFPS || cfg.Send.BitrateKbps != 2500 {
		t.Errorf("send = %+v", cfg.Send)
	}
	if !cfg.Log.JSON || cfg.Receive.JitterLatencyMS != 40 {
		t.Errorf("log/receive not loaded: %+v %+v", cfg.Log, cfg.Receive)
	}
	if got := cfg.Target(); got.Kind != framesource.TargetWindow || got.Window != "Terminal" {
		t.Errorf("Target() = %+v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "peer: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"send ok", func(c *Config) { c.Mode = ModeSend; c.Peer.Host = "10.0.0.2" }, ""},
		{"receive without host", func(c *Config) { c.Mode = ModeReceive }, ""},
		{"loopback without host", func(c *Config) { c.Mode = ModeLoopback }, ""},
		{"send without host", func(c *Config) { c.Mode = ModeSend }, "peer.host"},
		{"unknown mode", func(c *Config) { c.Mode = "broadcast" }, "unknown mode"},
		{"zero port", func(c *Config) { c.Mode = ModeReceive; c.Peer.Port = 0 }, "peer.port"},
		{"window without title", func(c *Config) {
			c.Mode, c.Peer.Host, c.Send.Source = ModeSend, "10.0.0.2", SourceWindow
		}, "window title"},
		{"unknown source", func(c *Config) {
			c.Mode, c.Peer.Host, c.Send.Source = ModeSend, "10.0.0.2", "camera"
		}, "unknown source"},
		{"empty crop", func(c *Config) {
			c.Mode, c.Peer.Host = ModeSend, "10.0.0.2"
			c.Send.Crop = &frame.CropRect{Width: 0, Height: 10}
		}, "crop"},
		{"bad preset reaches sender validation", func(c *Config) {
			c.Mode, c.Peer.Host, c.Send.Preset = ModeSend, "10.0.0.2", "placebo"
		}, "preset"},
		{"negative jitter", func(c *Config) { c.Mode = ModeReceive; c.Receive.JitterLatencyMS = -1 }, "jitter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
peer:
  host: 192.168.1.20
send:
  fps: 30
  preset: veryfast
`)

	cfg, err := Parse(ModeSend, []string{"-config", path, "-fps", "50", "-crop", "800x600+100+50", "-pt", "97"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Peer.Host != "192.168.1.20" {
		t.Errorf("host from file lost: %q", cfg.Peer.Host)
	}
	if cfg.Send.FPS != 50 {
		t.Errorf("fps = %d, flag should win", cfg.Send.FPS)
	}
	if cfg.Send.Preset != "veryfast" {
		t.Errorf("preset = %q, file value should survive", cfg.Send.Preset)
	}
	if cfg.Send.Crop == nil || cfg.Send.Crop.String() != "800x600+100+50" {
		t.Errorf("crop = %v", cfg.Send.Crop)
	}

	sc := cfg.SenderConfig()
	if sc.PayloadType != 97 || sc.Endpoint.Addr() != "192.168.1.20:50496" || sc.Source != screencast.SourceAppFrames {
		t.Errorf("SenderConfig() = %+v", sc)
	}
}

func TestParse_Receive(t *testing.T) {
	cfg, err := Parse(ModeReceive, []string{"--port=6001", "-jitter", "25", "-headless"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rc := cfg.ReceiverConfig()
	if rc.Endpoint.Host != "" || rc.Endpoint.Port != 6001 {
		t.Errorf("endpoint = %+v", rc.Endpoint)
	}
	if rc.JitterLatency != 25*time.Millisecond || !cfg.Receive.Headless {
		t.Errorf("receive = %+v", cfg.Receive)
	}

	// send-only flags are not registered for the receiver
	if _, err := Parse(ModeReceive, []string{"-fps", "30"}); err == nil {
		t.Error("expected error for -fps on receive")
	}
}

func TestParseCrop(t *testing.T) {
	tests := []struct {
		in      string
		want    frame.CropRect
		wantErr bool
	}{
		{"640x360+0+0", frame.CropRect{Width: 640, Height: 360}, false},
		{"100x50+7+9", frame.CropRect{X: 7, Y: 9, Width: 100, Height: 50}, false},
		{"640x360", frame.CropRect{}, true},
		{"640+0+0", frame.CropRect{}, true},
		{"ax360+0+0", frame.CropRect{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCrop(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCrop(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCrop(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
