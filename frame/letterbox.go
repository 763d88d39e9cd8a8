package frame

import "math"

// Letterbox maps a frame into a view while keeping its aspect ratio.
// The frame is scaled uniformly and centered; unused view area is left as bars.
type Letterbox struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	FrameW  int
	FrameH  int
}

// Fit returns the letterbox transform of a frameW x frameH frame in a
// viewW x viewH view. A degenerate frame yields the identity transform.
func Fit(viewW, viewH, frameW, frameH int) Letterbox {
	if frameW <= 0 || frameH <= 0 || viewW <= 0 || viewH <= 0 {
		return Letterbox{Scale: 1, FrameW: frameW, FrameH: frameH}
	}
	vw, vh := float64(viewW), float64(viewH)
	fw, fh := float64(frameW), float64(frameH)

	scale := math.Min(vw/fw, vh/fh)
	return Letterbox{
		Scale:   scale,
		OffsetX: (vw - fw*scale) / 2,
		OffsetY: (vh - fh*scale) / 2,
		FrameW:  frameW,
		FrameH:  frameH,
	}
}

// ToSource maps a view position to frame pixel coordinates
func (l Letterbox) ToSource(x, y float64) (float64, float64) {
	return (x - l.OffsetX) / l.Scale, (y - l.OffsetY) / l.Scale
}

// ToView maps frame pixel coordinates to a view position
func (l Letterbox) ToView(x, y float64) (float64, float64) {
	return x*l.Scale + l.OffsetX, y*l.Scale + l.OffsetY
}

// DragToCrop converts a drag gesture between two view positions into a crop
// rectangle in frame coordinates, clamped to the frame. The drag may go in
// any direction. The boolean is false when the selection covers no pixels.
func (l Letterbox) DragToCrop(x0, y0, x1, y1 float64) (CropRect, bool) {
	sx0, sy0 := l.ToSource(x0, y0)
	sx1, sy1 := l.ToSource(x1, y1)

	left := int(math.Floor(math.Min(sx0, sx1)))
	top := int(math.Floor(math.Min(sy0, sy1)))
	right := int(math.Ceil(math.Max(sx0, sx1)))
	bottom := int(math.Ceil(math.Max(sy0, sy1)))

	r := CropRect{X: left, Y: top, Width: right - left, Height: bottom - top}
	return r.Clamp(l.FrameW, l.FrameH)
}
