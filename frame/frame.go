package frame

import (
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrInvalidDimensions is returned when width or height is not positive
	ErrInvalidDimensions = errors.New("frame: invalid dimensions")
	// ErrShortBuffer is returned when pixel data cannot hold the declared geometry
	ErrShortBuffer = errors.New("frame: buffer too short for geometry")
	// ErrEmptyCrop is returned when a crop rectangle does not intersect the frame
	ErrEmptyCrop = errors.New("frame: crop rectangle does not intersect frame")
)

// PixelFormat is the channel layout of a RawFrame. Both formats use 8 bits per channel.
type PixelFormat int

const (
	// RGB is 3 bytes per pixel
	RGB PixelFormat = iota
	// RGBA is 4 bytes per pixel, alpha is carried but never interpreted
	RGBA
)

// BytesPerPixel returns the size of one pixel in bytes
func (p PixelFormat) BytesPerPixel() int {
	if p == RGBA {
		return 4
	}
	return 3
}

// String returns the GStreamer caps name of the format
func (p PixelFormat) String() string {
	switch p {
	case RGB:
		return "RGB"
	case RGBA:
		return "RGBA"
	default:
		return "unknown"
	}
}

// ParsePixelFormat maps a GStreamer video/x-raw format name to a PixelFormat.
// RGBx and RGBA share a layout; the padding byte is treated as alpha.
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch name {
	case "RGB":
		return RGB, nil
	case "RGBA", "RGBx":
		return RGBA, nil
	default:
		return 0, fmt.Errorf("frame: unsupported pixel format %q", name)
	}
}

// RawFrame is one uncompressed image with tightly packed rows.
//
// Pix holds exactly Width*Height*BytesPerPixel bytes, row after row, with no
// padding between rows. A RawFrame is immutable once constructed: whoever
// receives one may read it from any goroutine but must not write to Pix.
type RawFrame struct {
	// Seq is the monotonic sequence number assigned by the producer
	Seq uint64
	// Timestamp is when the frame was captured or decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Format is the channel layout of Pix
	Format PixelFormat
	// Pix contains the packed pixel data
	Pix []byte
}

// Stride returns the length of one packed row in bytes
func (f RawFrame) Stride() int {
	return f.Width * f.Format.BytesPerPixel()
}

// Empty reports whether the frame carries no pixels
func (f RawFrame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// Resolution returns the frame size formatted as "WxH"
func (f RawFrame) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Validate checks that Pix matches the declared geometry exactly
func (f RawFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, f.Width, f.Height)
	}
	if want := f.Stride() * f.Height; len(f.Pix) != want {
		return fmt.Errorf("%w: have %d bytes, want %d for %dx%d %s",
			ErrShortBuffer, len(f.Pix), want, f.Width, f.Height, f.Format)
	}
	return nil
}

// At returns the color channels of the pixel at (x, y).
// Coordinates outside the frame return zeros.
func (f RawFrame) At(x, y int) (r, g, b uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0
	}
	bpp := f.Format.BytesPerPixel()
	i := y*f.Stride() + x*bpp
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// FromStrided builds a packed RawFrame from a buffer whose rows are stride
// bytes apart. Only the first width*bpp bytes of each row are copied, so any
// row padding in data never reaches the result. The returned frame owns its
// pixels; data may be reused by the caller afterwards.
func FromStrided(width, height int, format PixelFormat, data []byte, stride int) (RawFrame, error) {
	if width <= 0 || height <= 0 {
		return RawFrame{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	rowBytes := width * format.BytesPerPixel()
	if stride < rowBytes {
		return RawFrame{}, fmt.Errorf("%w: stride %d below row size %d", ErrShortBuffer, stride, rowBytes)
	}
	// The last row does not need trailing padding.
	if need := stride*(height-1) + rowBytes; len(data) < need {
		return RawFrame{}, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(data), need)
	}

	pix := make([]byte, rowBytes*height)
	if stride == rowBytes {
		copy(pix, data[:rowBytes*height])
	} else {
		for row := 0; row < height; row++ {
			copy(pix[row*rowBytes:(row+1)*rowBytes], data[row*stride:row*stride+rowBytes])
		}
	}

	return RawFrame{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    pix,
	}, nil
}

// FromRGBA copies an image.RGBA into a packed RGB frame, honouring the
// image's own stride and bounds.
func FromRGBA(img *image.RGBA) RawFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)

	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := pix[y*w*3:]
		for x := 0; x < w; x++ {
			dst[x*3+0] = src[x*4+0]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}

	return RawFrame{
		Width:  w,
		Height: h,
		Format: RGB,
		Pix:    pix,
	}
}

// RGBA returns a new opaque image.RGBA holding the frame's pixels
func (f RawFrame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Empty() {
		return img
	}

	if f.Format == RGBA {
		copy(img.Pix, f.Pix)
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
		return img
	}

	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		img.Pix[i*4+0] = f.Pix[i*3+0]
		img.Pix[i*4+1] = f.Pix[i*3+1]
		img.Pix[i*4+2] = f.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
