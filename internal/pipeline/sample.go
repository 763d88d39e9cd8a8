package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-screencast/frame"
)

// SampleSink receives decoded frames from the appsink callback
type SampleSink interface {
	Deliver(f frame.RawFrame)
}

// SinkCounters are updated by the appsink callback
type SinkCounters struct {
	Frames  atomic.Uint64
	Bytes   atomic.Uint64
	Skipped atomic.Uint64
	// LastFrameAt is the UnixNano time of the last delivered frame
	LastFrameAt atomic.Int64
	// LastWidth and LastHeight describe the last delivered frame
	LastWidth  atomic.Int64
	LastHeight atomic.Int64
}

// AttachSampleSink installs the appsink callback that converts every sample
// into an owned frame and hands it to sink.
//
// Malformed samples are skipped with a warning; a single bad frame never
// stops the stream.
func AttachSampleSink(g *Graph, stage string, sink SampleSink, counters *SinkCounters) error {
	appsink, err := g.AppSink(stage)
	if err != nil {
		return err
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			return onNewSample(s, sink, counters)
		},
	})
	return nil
}

func onNewSample(s *app.Sink, sink SampleSink, counters *SinkCounters) gst.FlowReturn {
	sample := s.PullSample()
	if sample == nil {
		slog.Warn("pipeline: failed to pull sample from appsink, skipping frame")
		counters.Skipped.Add(1)
		return gst.FlowOK
	}

	f, err := sampleToFrame(sample)
	if err != nil {
		slog.Warn("pipeline: malformed sample, skipping frame", "error", err)
		counters.Skipped.Add(1)
		return gst.FlowOK
	}

	f.Seq = counters.Frames.Add(1)
	f.Timestamp = time.Now()
	counters.Bytes.Add(uint64(len(f.Pix)))
	counters.LastFrameAt.Store(f.Timestamp.UnixNano())
	counters.LastWidth.Store(int64(f.Width))
	counters.LastHeight.Store(int64(f.Height))

	sink.Deliver(f)
	return gst.FlowOK
}

// sampleToFrame reads geometry from the sample caps and copies the mapped
// buffer row by row into a packed frame
func sampleToFrame(sample *gst.Sample) (frame.RawFrame, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return frame.RawFrame{}, fmt.Errorf("sample has no caps")
	}
	st := caps.GetStructureAt(0)

	width, err := structInt(st, "width")
	if err != nil {
		return frame.RawFrame{}, err
	}
	height, err := structInt(st, "height")
	if err != nil {
		return frame.RawFrame{}, err
	}
	formatName, err := st.GetValue("format")
	if err != nil {
		return frame.RawFrame{}, fmt.Errorf("caps without format: %w", err)
	}
	name, _ := formatName.(string)
	format, err := frame.ParsePixelFormat(name)
	if err != nil {
		return frame.RawFrame{}, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return frame.RawFrame{}, fmt.Errorf("sample has no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return frame.RawFrame{}, fmt.Errorf("failed to map buffer")
	}
	defer buffer.Unmap()

	return FrameFromMapped(width, height, format, mapInfo.Bytes())
}

func structInt(st *gst.Structure, field string) (int, error) {
	v, err := st.GetValue(field)
	if err != nil {
		return 0, fmt.Errorf("caps without %s: %w", field, err)
	}
	n, ok := v.(int)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("caps %s=%v is not a positive int", field, v)
	}
	return n, nil
}

// FrameFromMapped copies a decoder buffer into an owned frame. The row
// stride is derived from the buffer size, so rows padded by the decoder or
// by videoconvert are never mistaken for pixels.
func FrameFromMapped(width, height int, format frame.PixelFormat, data []byte) (frame.RawFrame, error) {
	return frame.FromStrided(width, height, format, data, RowStride(width, height, format, len(data)))
}

// RowStride returns the distance between rows of a width x height buffer of
// size bytes. GStreamer's default layout pads rows to 4 bytes; a buffer whose
// size divides evenly into larger rows is taken at that stride instead.
//
// The receiver plan forces RGBA at the rgbcaps stage, where rows are always
// 4-byte aligned and only decoder padding can widen the stride. The RGB
// branches serve frames read from pipelines built without that capsfilter.
func RowStride(width, height int, format frame.PixelFormat, size int) int {
	rowBytes := width * format.BytesPerPixel()
	aligned := DefaultStride(width, format)

	if height <= 0 || size == aligned*height {
		return aligned
	}
	if size%height == 0 && size/height >= rowBytes {
		return size / height
	}
	if size >= aligned*(height-1)+rowBytes {
		return aligned
	}
	return rowBytes
}
