package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pion/rtp"

	"github.com/e7canasta/orion-screencast/frame"
)

func TestPlan_Validate(t *testing.T) {
	src := Stage{Name: "src", Factory: "appsrc", In: KindNone, Out: KindRawVideo}
	enc := Stage{Name: "enc", Factory: "x264enc", In: KindRawVideo, Out: KindH264}
	pay := Stage{Name: "pay", Factory: "rtph264pay", In: KindH264, Out: KindRTP}
	sink := Stage{Name: "sink", Factory: "udpsink", In: KindRTP, Out: KindNone}
	tail := Stage{Name: "tail", Factory: "videotestsrc", In: KindNone, Out: KindRawVideo}

	tests := []struct {
		name      string
		plan      Plan
		wantStage string
		wantLink  bool
	}{
		{"valid", Plan{src, enc, pay, sink}, "", false},
		{"too short", Plan{src}, "", false},
		{"missing encoder", Plan{src, pay, sink}, "pay", true},
		{"sink first", Plan{sink, src}, "sink", false},
		{"source last", Plan{src, enc, pay, sink, tail}, "tail", false},
		{"duplicate", Plan{src, enc, enc, pay, sink}, "enc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.name == "valid" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var be *BuildError
			if !errors.As(err, &be) {
				t.Fatalf("expected *BuildError, got %v", err)
			}
			if !errors.Is(err, ErrBuild) {
				t.Errorf("BuildError does not match ErrBuild")
			}
			if tt.wantStage != "" && be.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", be.Stage, tt.wantStage)
			}
			if errors.Is(err, ErrIncompatibleLink) != tt.wantLink {
				t.Errorf("incompatible link = %v, want %v (%v)", !tt.wantLink, tt.wantLink, err)
			}
		})
	}
}

func TestSenderPlan(t *testing.T) {
	spec := SenderSpec{
		Host: "192.168.1.20", Port: 50496, PayloadType: 96,
		KeyframeInterval: 60, BitrateKbps: 4000, Preset: "ultrafast", FPS: 60,
	}

	t.Run("app frames", func(t *testing.T) {
		plan, err := SenderPlan(spec)
		if err != nil {
			t.Fatalf("SenderPlan: %v", err)
		}
		if err := plan.Validate(); err != nil {
			t.Fatalf("plan invalid: %v", err)
		}
		if plan[0].Factory != "appsrc" {
			t.Errorf("source = %s, want appsrc", plan[0].Factory)
		}
		sink, _ := plan.Stage(StageUDPSink)
		if !hasProp(sink, "host", "192.168.1.20") || !hasProp(sink, "port", 50496) {
			t.Errorf("udpsink does not target the configured endpoint: %+v", sink.Props)
		}
		pay, _ := plan.Stage(StagePayloader)
		if !hasProp(pay, "pt", uint(96)) {
			t.Errorf("payloader pt not set: %+v", pay.Props)
		}
		rtpCaps, _ := plan.Stage(StageRTPCaps)
		if rtpCaps.Caps != RTPCaps(96) {
			t.Errorf("rtp caps = %q", rtpCaps.Caps)
		}
	})

	t.Run("enum properties by nick", func(t *testing.T) {
		plan, err := SenderPlan(spec)
		if err != nil {
			t.Fatalf("SenderPlan: %v", err)
		}

		tests := []struct {
			stage string
			arg   string
			want  string
		}{
			{StageSource, "format", "time"},
			{StageEncoder, "tune", "zerolatency"},
			{StageEncoder, "speed-preset", "ultrafast"},
		}
		for _, tt := range tests {
			st, _ := plan.Stage(tt.stage)
			if got, ok := st.Arg(tt.arg); !ok || got != tt.want {
				t.Errorf("%s %s = %q, want %q", tt.stage, tt.arg, got, tt.want)
			}
			for _, p := range st.Props {
				if p.Name == tt.arg {
					t.Errorf("%s %s set as typed value %v; enum properties reject Go integers", tt.stage, tt.arg, p.Value)
				}
			}
		}
	})

	t.Run("every preset passes through", func(t *testing.T) {
		for _, name := range []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium"} {
			s := spec
			s.Preset = name
			plan, err := SenderPlan(s)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			enc, _ := plan.Stage(StageEncoder)
			if got, _ := enc.Arg("speed-preset"); got != name {
				t.Errorf("speed-preset = %q, want %q", got, name)
			}
		}
	})

	t.Run("test pattern", func(t *testing.T) {
		s := spec
		s.TestPattern, s.PatternWidth, s.PatternHeight = true, 640, 360
		plan, err := SenderPlan(s)
		if err != nil {
			t.Fatalf("SenderPlan: %v", err)
		}
		if plan[0].Factory != "videotestsrc" {
			t.Errorf("source = %s", plan[0].Factory)
		}
		caps, _ := plan.Stage(StageSourceCaps)
		if caps.Caps != "video/x-raw,width=640,height=360,framerate=60/1" {
			t.Errorf("source caps = %q", caps.Caps)
		}
		if err := plan.Validate(); err != nil {
			t.Errorf("plan invalid: %v", err)
		}
	})

	t.Run("unknown preset", func(t *testing.T) {
		s := spec
		s.Preset = "placebo-fast"
		_, err := SenderPlan(s)
		var be *BuildError
		if !errors.As(err, &be) || be.Stage != StageEncoder {
			t.Errorf("expected BuildError at encoder, got %v", err)
		}
	})
}

func TestReceiverPlan(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		plan := ReceiverPlan(ReceiverSpec{Port: 50496, PayloadType: 96})
		if err := plan.Validate(); err != nil {
			t.Fatalf("plan invalid: %v", err)
		}
		src, _ := plan.Stage(StageUDPSrc)
		if !hasProp(src, "address", "0.0.0.0") {
			t.Errorf("empty bind address should mean all interfaces: %+v", src.Props)
		}
		if _, ok := plan.Stage(StageJitter); ok {
			t.Errorf("jitter buffer present without latency")
		}
		last := plan[len(plan)-1]
		if last.Factory != "appsink" || !hasProp(last, "drop", true) {
			t.Errorf("sink = %+v", last)
		}
		rgb, _ := plan.Stage(StageRGBCaps)
		if rgb.Caps != "video/x-raw,format=RGBA" {
			t.Errorf("rgbcaps = %q, RowStride relies on RGBA rows", rgb.Caps)
		}
	})

	t.Run("jitter buffer", func(t *testing.T) {
		plan := ReceiverPlan(ReceiverSpec{Address: "127.0.0.1", Port: 5000, PayloadType: 97, JitterLatencyMS: 50})
		if err := plan.Validate(); err != nil {
			t.Fatalf("plan invalid: %v", err)
		}
		if plan[1].Name != StageJitter {
			t.Errorf("stage 1 = %s, want jitter buffer", plan[1].Name)
		}
		src, _ := plan.Stage(StageUDPSrc)
		if src.Caps != RTPCaps(97) {
			t.Errorf("udpsrc caps = %q", src.Caps)
		}
	})
}

func TestRowStride(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		format        frame.PixelFormat
		size          int
		want          int
	}{
		{"rgba packed", 640, 360, frame.RGBA, 640 * 4 * 360, 2560},
		{"rgb aligned", 641, 2, frame.RGB, 1924 * 2, 1924},
		{"rgb packed last row", 641, 2, frame.RGB, 1924 + 1923, 1924},
		{"padded rows", 100, 10, frame.RGBA, 512 * 10, 512},
		{"rgb multiple of 4", 640, 360, frame.RGB, 1920 * 360, 1920},
		{"rgba odd width", 1366, 768, frame.RGBA, 1366 * 4 * 768, 1366 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RowStride(tt.width, tt.height, tt.format, tt.size); got != tt.want {
				t.Errorf("RowStride = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAlignRows(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		format     frame.PixelFormat
		wantStride int
	}{
		{"rgb 640", 640, frame.RGB, 1920},
		{"rgb 642", 642, frame.RGB, 1928},
		{"rgb 1366", 1366, frame.RGB, 4100},
		{"rgb 1918", 1918, frame.RGB, 5756},
		{"rgba 1366", 1366, frame.RGBA, 5464},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const h = 4
			bpp := tt.format.BytesPerPixel()
			f := frame.RawFrame{Width: tt.width, Height: h, Format: tt.format, Pix: make([]byte, tt.width*bpp*h)}
			for i := range f.Pix {
				f.Pix[i] = byte(i % 251)
			}

			if got := DefaultStride(tt.width, tt.format); got != tt.wantStride {
				t.Fatalf("DefaultStride = %d, want %d", got, tt.wantStride)
			}

			buf := AlignRows(f)
			if len(buf) != tt.wantStride*h {
				t.Fatalf("buffer is %d bytes, want %d", len(buf), tt.wantStride*h)
			}

			// Reading back at the stride GStreamer will use yields the pixels
			back, err := FrameFromMapped(tt.width, h, tt.format, buf)
			if err != nil {
				t.Fatalf("FrameFromMapped: %v", err)
			}
			if !bytes.Equal(back.Pix, f.Pix) {
				t.Errorf("pixels changed by alignment")
			}
		})
	}

	t.Run("aligned frame is not copied", func(t *testing.T) {
		f := frame.RawFrame{Width: 640, Height: 2, Format: frame.RGB, Pix: make([]byte, 640*3*2)}
		if buf := AlignRows(f); &buf[0] != &f.Pix[0] {
			t.Errorf("aligned frame was copied")
		}
	})
}

// TestFrameFromMapped_StridedRoundTrip simulates a decoder buffer with row
// padding and checks that the copied frame carries exactly the pixels
func TestFrameFromMapped_StridedRoundTrip(t *testing.T) {
	const w, h, stride = 641, 5, 2600 // 641*4 = 2564 bytes of pixels per row
	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < stride; x++ {
			if x < w*4 {
				data[y*stride+x] = byte((x/4 + y) % 251)
			} else {
				data[y*stride+x] = 0xFF
			}
		}
	}

	f, err := FrameFromMapped(w, h, frame.RGBA, data)
	if err != nil {
		t.Fatalf("FrameFromMapped: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _ := f.At(x, y)
			if r != byte((x+y)%251) {
				t.Fatalf("pixel (%d,%d) = %d", x, y, r)
			}
		}
	}
	for _, b := range f.Pix {
		if b == 0xFF {
			t.Fatal("row padding leaked into frame")
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		message, debug string
		want           ErrorCategory
	}{
		{"Could not get/set settings from/on resource.", "bind failed: Address already in use", ErrCategoryNetwork},
		{"Error sending UDP packets", "Network is unreachable", ErrCategoryNetwork},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated", ErrCategoryCodec},
		{"Could not decode stream.", "avdec_h264", ErrCategoryCodec},
		{"Something odd happened", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.message, tt.debug); got != tt.want {
			t.Errorf("ClassifyError(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestTypedErrors(t *testing.T) {
	cause := errors.New("boom")

	bind := error(&BindError{Addr: "0.0.0.0:50496", Cause: cause})
	if !errors.Is(bind, ErrBind) || !errors.Is(bind, cause) {
		t.Errorf("BindError chain broken: %v", bind)
	}

	transport := error(&TransportError{Category: ErrCategoryNetwork, Source: "udpsink", Message: "send failed"})
	if !errors.Is(transport, ErrTransport) {
		t.Errorf("TransportError does not match ErrTransport")
	}
	if errors.Is(transport, ErrBind) {
		t.Errorf("TransportError must not match ErrBind")
	}
}

func rtpPacket(t *testing.T, seq uint16, pt uint8) []byte {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 1500,
			SSRC:           0x1234,
		},
		Payload: []byte{0x65, 0x88, 0x84},
	}
	b, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal rtp: %v", err)
	}
	return b
}

func TestRTPCounters(t *testing.T) {
	t.Run("loss and wrap", func(t *testing.T) {
		c := NewRTPCounters(96)
		for _, seq := range []uint16{65533, 65534, 65535, 0, 3, 4} {
			if err := c.Observe(rtpPacket(t, seq, 96)); err != nil {
				t.Fatalf("observe %d: %v", seq, err)
			}
		}
		s := c.Stats()
		if s.Packets != 6 || s.Lost != 2 {
			t.Errorf("packets=%d lost=%d, want 6/2", s.Packets, s.Lost)
		}
		if s.LastSeq != 4 || s.LastSSRC != 0x1234 {
			t.Errorf("last seq=%d ssrc=%x", s.LastSeq, s.LastSSRC)
		}
	})

	t.Run("reordered and duplicate", func(t *testing.T) {
		c := NewRTPCounters(96)
		for _, seq := range []uint16{10, 12, 11, 12} {
			_ = c.Observe(rtpPacket(t, seq, 96))
		}
		s := c.Stats()
		if s.Lost != 1 || s.Reordered != 1 {
			t.Errorf("lost=%d reordered=%d, want 1/1", s.Lost, s.Reordered)
		}
	})

	t.Run("payload type mismatch", func(t *testing.T) {
		c := NewRTPCounters(96)
		_ = c.Observe(rtpPacket(t, 1, 97))
		_ = c.Observe(rtpPacket(t, 2, 96))
		if s := c.Stats(); s.PayloadMismatch != 1 || s.LastPayloadType != 96 {
			t.Errorf("mismatch=%d last pt=%d", s.PayloadMismatch, s.LastPayloadType)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		c := NewRTPCounters(96)
		if err := c.Observe([]byte{0x80}); err == nil {
			t.Error("expected error for truncated packet")
		}
		if s := c.Stats(); s.Malformed != 1 || s.Packets != 0 {
			t.Errorf("malformed=%d packets=%d", s.Malformed, s.Packets)
		}
	})
}

func hasProp(st Stage, name string, value interface{}) bool {
	for _, p := range st.Props {
		if p.Name == name && p.Value == value {
			return true
		}
	}
	return false
}
