package pipeline

import (
	"fmt"
)

// Stage names shared by plans, runners and probes
const (
	StageSource     = "source"
	StageSourceCaps = "sourcecaps"
	StageConvert    = "convert"
	StageYUVCaps    = "yuvcaps"
	StageEncoder    = "encoder"
	StagePayloader  = "payloader"
	StageRTPCaps    = "rtpcaps"
	StageUDPSink    = "udpsink"

	StageUDPSrc  = "udpsrc"
	StageJitter  = "jitterbuffer"
	StageDepay   = "depayloader"
	StageParse   = "parser"
	StageDecoder = "decoder"
	StageRGBCaps = "rgbcaps"
	StageAppSink = "appsink"
)

// speedPresets are the GstX264EncPreset nicks accepted for live encoding
var speedPresets = map[string]bool{
	"ultrafast": true,
	"superfast": true,
	"veryfast":  true,
	"faster":    true,
	"fast":      true,
	"medium":    true,
}

// SpeedPreset reports whether name is a supported x264enc speed-preset
func SpeedPreset(name string) bool {
	return speedPresets[name]
}

// RTPCaps returns the caps of an H.264 RTP video stream with payload type pt
func RTPCaps(pt uint) string {
	return fmt.Sprintf("application/x-rtp,media=video,clock-rate=90000,encoding-name=H264,payload=%d", pt)
}

// SenderSpec parametrises the encode-transmit plan
type SenderSpec struct {
	Host             string
	Port             int
	PayloadType      uint
	KeyframeInterval uint
	BitrateKbps      uint
	Preset           string
	FPS              int
	// TestPattern replaces the application source with videotestsrc
	TestPattern   bool
	PatternWidth  int
	PatternHeight int
}

// SenderPlan returns the encode-transmit stages:
//
//	appsrc|videotestsrc → [capsfilter] → videoconvert → capsfilter(I420) →
//	x264enc → rtph264pay → capsfilter(application/x-rtp) → udpsink
func SenderPlan(spec SenderSpec) (Plan, error) {
	if !SpeedPreset(spec.Preset) {
		return nil, &BuildError{Stage: StageEncoder, Factory: "x264enc", Cause: fmt.Errorf("unknown speed preset %q", spec.Preset)}
	}

	var plan Plan
	if spec.TestPattern {
		plan = append(plan,
			Stage{
				Name: StageSource, Factory: "videotestsrc", In: KindNone, Out: KindRawVideo,
				Props: []Prop{{"is-live", true}},
			},
			Stage{
				Name: StageSourceCaps, Factory: "capsfilter", In: KindRawVideo, Out: KindRawVideo,
				Caps: fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", spec.PatternWidth, spec.PatternHeight, spec.FPS),
			},
		)
	} else {
		// caps are announced per frame size by FrameWriter
		plan = append(plan, Stage{
			Name: StageSource, Factory: "appsrc", In: KindNone, Out: KindRawVideo,
			Props: []Prop{
				{"is-live", true},
				{"do-timestamp", true},
				{"block", false},
			},
			Args: []Arg{{"format", "time"}},
		})
	}

	plan = append(plan,
		Stage{Name: StageConvert, Factory: "videoconvert", In: KindRawVideo, Out: KindRawVideo},
		Stage{Name: StageYUVCaps, Factory: "capsfilter", In: KindRawVideo, Out: KindRawVideo, Caps: "video/x-raw,format=I420"},
		Stage{
			Name: StageEncoder, Factory: "x264enc", In: KindRawVideo, Out: KindH264,
			Props: []Prop{
				{"key-int-max", spec.KeyframeInterval},
				{"bitrate", spec.BitrateKbps},
			},
			Args: []Arg{
				{"tune", "zerolatency"},
				{"speed-preset", spec.Preset},
			},
		},
		Stage{
			Name: StagePayloader, Factory: "rtph264pay", In: KindH264, Out: KindRTP,
			Props: []Prop{
				{"pt", spec.PayloadType},
				{"config-interval", -1}, // SPS/PPS with every keyframe, late joiners can decode
			},
		},
		Stage{Name: StageRTPCaps, Factory: "capsfilter", In: KindRTP, Out: KindRTP, Caps: RTPCaps(spec.PayloadType)},
		Stage{
			Name: StageUDPSink, Factory: "udpsink", In: KindRTP, Out: KindNone,
			Props: []Prop{
				{"host", spec.Host},
				{"port", spec.Port},
				{"sync", false},
				{"async", false},
			},
		},
	)
	return plan, nil
}

// ReceiverSpec parametrises the receive-decode plan
type ReceiverSpec struct {
	// Address is the local bind address, empty for all interfaces
	Address     string
	Port        int
	PayloadType uint
	// JitterLatencyMS adds an rtpjitterbuffer when positive
	JitterLatencyMS uint
}

// ReceiverPlan returns the receive-decode stages:
//
//	udpsrc → [rtpjitterbuffer] → rtph264depay → h264parse → avdec_h264 →
//	videoconvert → capsfilter(RGBA) → appsink
func ReceiverPlan(spec ReceiverSpec) Plan {
	address := spec.Address
	if address == "" {
		address = "0.0.0.0"
	}

	plan := Plan{{
		Name: StageUDPSrc, Factory: "udpsrc", In: KindNone, Out: KindRTP,
		Props: []Prop{
			{"address", address},
			{"port", spec.Port},
			{"reuse", false}, // a taken port must fail instead of silently sharing
		},
		Caps: RTPCaps(spec.PayloadType),
	}}

	if spec.JitterLatencyMS > 0 {
		plan = append(plan, Stage{
			Name: StageJitter, Factory: "rtpjitterbuffer", In: KindRTP, Out: KindRTP,
			Props: []Prop{
				{"latency", spec.JitterLatencyMS},
				{"drop-on-latency", true},
			},
		})
	}

	plan = append(plan,
		Stage{
			Name: StageDepay, Factory: "rtph264depay", In: KindRTP, Out: KindH264,
			Props: []Prop{{"request-keyframe", true}},
		},
		Stage{Name: StageParse, Factory: "h264parse", In: KindH264, Out: KindH264},
		Stage{
			Name: StageDecoder, Factory: "avdec_h264", In: KindH264, Out: KindRawVideo,
			Props: []Prop{{"max-threads", 0}},
		},
		Stage{Name: StageConvert, Factory: "videoconvert", In: KindRawVideo, Out: KindRawVideo},
		Stage{Name: StageRGBCaps, Factory: "capsfilter", In: KindRawVideo, Out: KindRawVideo, Caps: "video/x-raw,format=RGBA"},
		Stage{
			Name: StageAppSink, Factory: "appsink", In: KindRawVideo, Out: KindNone,
			Props: []Prop{
				{"sync", false},
				{"max-buffers", uint(1)},
				{"drop", true},
			},
		},
	)
	return plan
}
