package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-screencast/frame"
)

// ErrFrameRejected is returned when appsrc refuses a buffer
var ErrFrameRejected = errors.New("pipeline: frame rejected by appsrc")

// FrameWriter pushes frames into an appsrc stage.
//
// Frames are trimmed to even dimensions for the H.264 encoder. When the frame
// size or format changes (a new crop, another monitor) the source caps are
// announced again before the buffer and the pipeline renegotiates.
type FrameWriter struct {
	src *app.Source
	fps int

	mu     sync.Mutex
	width  int
	height int
	format frame.PixelFormat

	Pushed   atomic.Uint64
	Rejected atomic.Uint64
	Bytes    atomic.Uint64
}

// NewFrameWriter wraps the appsrc stage of g
func NewFrameWriter(g *Graph, stage string, fps int) (*FrameWriter, error) {
	src, err := g.AppSrc(stage)
	if err != nil {
		return nil, err
	}
	return &FrameWriter{src: src, fps: fps}, nil
}

// Write pushes one frame. The frame's pixels are copied into a new buffer
// with rows aligned the way GStreamer expects raw video.
func (w *FrameWriter) Write(f frame.RawFrame) error {
	f = frame.EvenSize(f)
	if err := f.Validate(); err != nil {
		w.Rejected.Add(1)
		return fmt.Errorf("pipeline: invalid frame: %w", err)
	}
	if f.Width < 2 || f.Height < 2 {
		w.Rejected.Add(1)
		return fmt.Errorf("pipeline: frame %s too small to encode", f.Resolution())
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if f.Width != w.width || f.Height != w.height || f.Format != w.format {
		caps := SourceCaps(f.Width, f.Height, f.Format, w.fps)
		w.src.SetCaps(gst.NewCapsFromString(caps))
		slog.Info("pipeline: source caps changed",
			"from", fmt.Sprintf("%dx%d", w.width, w.height),
			"to", f.Resolution(),
			"caps", caps,
		)
		w.width, w.height, w.format = f.Width, f.Height, f.Format
	}

	pix := AlignRows(f)
	if ret := w.src.PushBuffer(gst.NewBufferFromBytes(pix)); ret != gst.FlowOK {
		w.Rejected.Add(1)
		return fmt.Errorf("%w: flow %v", ErrFrameRejected, ret)
	}

	w.Pushed.Add(1)
	w.Bytes.Add(uint64(len(pix)))
	return nil
}

// DefaultStride is the row stride GStreamer assumes for raw video buffers
// that carry no video meta: each row padded to a multiple of 4 bytes.
func DefaultStride(width int, format frame.PixelFormat) int {
	return (width*format.BytesPerPixel() + 3) &^ 3
}

// AlignRows lays the frame's rows out at DefaultStride. appsrc buffers carry
// no video meta, so a packed RGB frame 1366 pixels wide would otherwise be
// read at the wrong stride and come out sheared. Frames whose rows are
// already aligned are returned without a copy.
func AlignRows(f frame.RawFrame) []byte {
	rowBytes := f.Stride()
	stride := DefaultStride(f.Width, f.Format)
	if stride == rowBytes {
		return f.Pix
	}

	out := make([]byte, stride*f.Height)
	for y := 0; y < f.Height; y++ {
		copy(out[y*stride:], f.Pix[y*rowBytes:(y+1)*rowBytes])
	}
	return out
}

// Resolution returns the size of the last announced caps
func (w *FrameWriter) Resolution() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// EndOfStream signals the encoder to drain
func (w *FrameWriter) EndOfStream() {
	w.src.EndStream()
}

// SourceCaps returns the raw video caps announced for a frame geometry
func SourceCaps(width, height int, format frame.PixelFormat, fps int) string {
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1", format, width, height, fps)
}
