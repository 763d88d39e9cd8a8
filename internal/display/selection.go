package display

import (
	"math"
	"time"

	"github.com/e7canasta/orion-screencast/frame"
)

// minDragPixels ignores clicks that were meant to focus the window
const minDragPixels = 4

// selection tracks a crop drag in view coordinates
type selection struct {
	active         bool
	x0, y0, x1, y1 float64
}

func (s *selection) begin(x, y float64) {
	s.active = true
	s.x0, s.y0, s.x1, s.y1 = x, y, x, y
}

func (s *selection) move(x, y float64) {
	if s.active {
		s.x1, s.y1 = x, y
	}
}

// end finishes the drag and maps it into frame coordinates through lb
func (s *selection) end(lb frame.Letterbox) (frame.CropRect, bool) {
	if !s.active {
		return frame.CropRect{}, false
	}
	s.active = false

	if math.Abs(s.x1-s.x0) < minDragPixels || math.Abs(s.y1-s.y0) < minDragPixels {
		return frame.CropRect{}, false
	}
	return lb.DragToCrop(s.x0, s.y0, s.x1, s.y1)
}

// rect returns the normalised drag rectangle in view coordinates
func (s *selection) rect() (x, y, w, h float64) {
	x, y = math.Min(s.x0, s.x1), math.Min(s.y0, s.y1)
	return x, y, math.Abs(s.x1 - s.x0), math.Abs(s.y1 - s.y0)
}

// hasSignal reports whether a frame arrived recently enough to be shown
func hasSignal(lastFrame, now time.Time, timeout time.Duration) bool {
	if lastFrame.IsZero() {
		return false
	}
	return timeout <= 0 || now.Sub(lastFrame) < timeout
}
