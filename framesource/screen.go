package framesource

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/e7canasta/orion-screencast/frame"
)

// Screen captures a monitor or a window through the platform screenshot API
type Screen struct {
	target Target
	seq    uint64
}

// NewScreen creates a screen source with fail-fast validation:
//   - at least one display must be active
//   - a monitor index must exist
//   - a window title must not be empty
//
// A window that does not exist yet is not an error here; Capture reports it.
func NewScreen(target Target) (*Screen, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("%w: no active display", ErrCaptureUnavailable)
	}

	switch target.Kind {
	case TargetMonitor:
		if target.Monitor < 0 || target.Monitor >= n {
			return nil, fmt.Errorf("%w: monitor %d out of range (have %d)", ErrCaptureUnavailable, target.Monitor, n)
		}
	case TargetWindow:
		if target.Window == "" {
			return nil, fmt.Errorf("framesource: window title is required")
		}
	default:
		return nil, fmt.Errorf("framesource: unknown target kind %d", target.Kind)
	}

	slog.Info("framesource: screen source created",
		"target", target.String(),
		"displays", n,
	)

	return &Screen{target: target}, nil
}

// Target returns the configured target
func (s *Screen) Target() Target {
	return s.target
}

// Capture samples the target once
func (s *Screen) Capture() (frame.RawFrame, error) {
	bounds, err := s.bounds()
	if err != nil {
		return frame.RawFrame{}, err
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return frame.RawFrame{}, fmt.Errorf("%w: %s: %v", ErrCaptureUnavailable, s.target, err)
	}

	f := frame.FromRGBA(img)
	f.Seq = atomic.AddUint64(&s.seq, 1)
	f.Timestamp = time.Now()
	return f, nil
}

func (s *Screen) bounds() (image.Rectangle, error) {
	if s.target.Kind == TargetWindow {
		w, err := FindWindow(s.target.Window)
		if err != nil {
			return image.Rectangle{}, err
		}
		return w.Bounds, nil
	}

	if s.target.Monitor >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, fmt.Errorf("%w: monitor %d disconnected", ErrCaptureUnavailable, s.target.Monitor)
	}
	return screenshot.GetDisplayBounds(s.target.Monitor), nil
}

// Monitors lists the active displays. Index 0 is the primary display.
func Monitors() ([]Monitor, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("%w: no active display", ErrCaptureUnavailable)
	}

	monitors := make([]Monitor, 0, n)
	for i := 0; i < n; i++ {
		monitors = append(monitors, Monitor{
			Index:   i,
			Bounds:  screenshot.GetDisplayBounds(i),
			Primary: i == 0,
		})
	}
	return monitors, nil
}

// FindWindow returns the first top-level window whose title matches exactly
func FindWindow(title string) (Window, error) {
	windows, err := Windows()
	if err != nil {
		return Window{}, err
	}
	for _, w := range windows {
		if w.Title == title {
			if w.Bounds.Empty() {
				return Window{}, fmt.Errorf("%w: window %q has no visible area", ErrCaptureUnavailable, title)
			}
			return w, nil
		}
	}
	return Window{}, fmt.Errorf("%w: window %q not found", ErrCaptureUnavailable, title)
}
