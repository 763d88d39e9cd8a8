// Package framesource samples the local screen into frames.
//
// A Source produces one frame per Capture call and keeps no state between
// calls other than a sequence counter. Targets are a monitor (by index) or a
// top-level window (by title); window lookup is repeated on every capture so
// a moved or resized window is followed. Cropping is layered on top with
// Cropped, and Pattern provides a deterministic synthetic source for tests
// and headless runs.
package framesource

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-screencast/frame"
)

// ErrCaptureUnavailable is returned when the target cannot be read: no
// display, missing window, or a platform without capture support.
var ErrCaptureUnavailable = errors.New("framesource: capture unavailable")

// Source produces screen frames on demand
type Source interface {
	// Capture samples the target once. The returned frame is owned by the caller.
	Capture() (frame.RawFrame, error)
}

// TargetKind selects what a Target refers to
type TargetKind int

const (
	// TargetMonitor captures a whole monitor
	TargetMonitor TargetKind = iota
	// TargetWindow captures the screen area covered by a top-level window
	TargetWindow
)

// String returns a human-readable name of the kind
func (k TargetKind) String() string {
	switch k {
	case TargetMonitor:
		return "monitor"
	case TargetWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Target identifies what to capture
type Target struct {
	Kind TargetKind
	// Monitor is the display index for TargetMonitor, 0 is the primary display
	Monitor int
	// Window is the exact window title for TargetWindow
	Window string
}

// MonitorTarget returns a target for display index i
func MonitorTarget(i int) Target {
	return Target{Kind: TargetMonitor, Monitor: i}
}

// WindowTarget returns a target for the window with the given title
func WindowTarget(title string) Target {
	return Target{Kind: TargetWindow, Window: title}
}

// String describes the target for logs
func (t Target) String() string {
	if t.Kind == TargetWindow {
		return fmt.Sprintf("window %q", t.Window)
	}
	return fmt.Sprintf("monitor %d", t.Monitor)
}

// Monitor describes one active display
type Monitor struct {
	Index   int
	Bounds  image.Rectangle
	Primary bool
}

// Window describes one top-level window in root (screen) coordinates
type Window struct {
	ID     uint32
	Title  string
	Bounds image.Rectangle
}

// Cropped applies an optional crop rectangle to every frame of a source.
// The rectangle can be changed at any time; the change applies to the next
// Capture. A rectangle larger than the current frame is clamped.
type Cropped struct {
	src Source

	mu   sync.RWMutex
	rect frame.CropRect
	set  bool
}

// WithCrop wraps src with an initially disabled crop
func WithCrop(src Source) *Cropped {
	return &Cropped{src: src}
}

// SetCrop enables cropping to r
func (c *Cropped) SetCrop(r frame.CropRect) {
	c.mu.Lock()
	c.rect, c.set = r, true
	c.mu.Unlock()
}

// ClearCrop disables cropping, restoring full frames
func (c *Cropped) ClearCrop() {
	c.mu.Lock()
	c.rect, c.set = frame.CropRect{}, false
	c.mu.Unlock()
}

// Crop returns the active rectangle, if any
func (c *Cropped) Crop() (frame.CropRect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rect, c.set
}

// Capture samples the wrapped source and crops the result
func (c *Cropped) Capture() (frame.RawFrame, error) {
	f, err := c.src.Capture()
	if err != nil {
		return frame.RawFrame{}, err
	}

	r, ok := c.Crop()
	if !ok {
		return f, nil
	}
	return frame.Crop(f, r)
}

// Pattern is a synthetic source. Pixel (x, y) has color
// (x mod 256, y mod 256, 0) in every frame.
type Pattern struct {
	base frame.RawFrame
	seq  uint64
}

// NewPattern creates a width x height pattern source
func NewPattern(width, height int) (*Pattern, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framesource: invalid pattern size %dx%d", width, height)
	}

	pix := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		row := pix[y*width*3:]
		for x := 0; x < width; x++ {
			row[x*3+0] = byte(x % 256)
			row[x*3+1] = byte(y % 256)
		}
	}

	return &Pattern{base: frame.RawFrame{Width: width, Height: height, Format: frame.RGB, Pix: pix}}, nil
}

// Capture returns the pattern. Frames share one immutable pixel buffer.
func (p *Pattern) Capture() (frame.RawFrame, error) {
	f := p.base
	f.Seq = atomic.AddUint64(&p.seq, 1)
	f.Timestamp = time.Now()
	return f, nil
}
