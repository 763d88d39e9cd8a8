package frame

import (
	"fmt"
	"image"
)

// CropRect selects a sub-rectangle of a frame in source pixel coordinates
type CropRect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Full returns the rectangle covering a whole width x height frame
func Full(width, height int) CropRect {
	return CropRect{Width: width, Height: height}
}

// Empty reports whether the rectangle covers no pixels
func (r CropRect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Valid reports whether the rectangle is non-empty and lies entirely inside
// a width x height source.
func (r CropRect) Valid(width, height int) bool {
	return !r.Empty() &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= width && r.Y+r.Height <= height
}

// Clamp returns the intersection of the rectangle with a width x height
// source. The boolean is false when the intersection is empty.
func (r CropRect) Clamp(width, height int) (CropRect, bool) {
	in := r.Rect().Intersect(image.Rect(0, 0, width, height))
	if in.Empty() {
		return CropRect{}, false
	}
	return CropRect{X: in.Min.X, Y: in.Min.Y, Width: in.Dx(), Height: in.Dy()}, true
}

// Even trims the rectangle so both dimensions are even. H.264 with 4:2:0
// chroma cannot encode odd sizes.
func (r CropRect) Even() CropRect {
	r.Width -= r.Width % 2
	r.Height -= r.Height % 2
	return r
}

// Rect converts to an image.Rectangle
func (r CropRect) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// String returns the rectangle as "WxH+X+Y"
func (r CropRect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Crop returns the part of f selected by r.
//
// The rectangle is clamped to the frame first, so a rectangle selected on an
// older, larger frame still yields a usable result. Output pixel (x, y)
// equals input pixel (x+X, y+Y) of the clamped rectangle. Only an empty
// intersection is an error.
func Crop(f RawFrame, r CropRect) (RawFrame, error) {
	clamped, ok := r.Clamp(f.Width, f.Height)
	if !ok {
		return RawFrame{}, fmt.Errorf("%w: %s on %s frame", ErrEmptyCrop, r, f.Resolution())
	}
	if clamped == Full(f.Width, f.Height) {
		return f, nil
	}

	bpp := f.Format.BytesPerPixel()
	srcStride := f.Stride()
	offset := clamped.Y*srcStride + clamped.X*bpp

	out, err := FromStrided(clamped.Width, clamped.Height, f.Format, f.Pix[offset:], srcStride)
	if err != nil {
		return RawFrame{}, fmt.Errorf("frame: crop %s: %w", clamped, err)
	}
	out.Seq = f.Seq
	out.Timestamp = f.Timestamp
	return out, nil
}

// EvenSize trims a frame to even dimensions, dropping at most the last
// column and the last row.
func EvenSize(f RawFrame) RawFrame {
	even := Full(f.Width, f.Height).Even()
	if even.Width == f.Width && even.Height == f.Height {
		return f
	}
	out, err := Crop(f, even)
	if err != nil {
		// 1-pixel frames have no even crop; hand them back untouched.
		return f
	}
	return out
}
