//go:build !linux

package framesource

import "fmt"

// Windows is only implemented for X11 desktops
func Windows() ([]Window, error) {
	return nil, fmt.Errorf("%w: window enumeration is not supported on this platform", ErrCaptureUnavailable)
}
