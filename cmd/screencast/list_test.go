package main

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/e7canasta/orion-screencast/framesource"
)

func TestPrintSources(t *testing.T) {
	monitors := []framesource.Monitor{
		{Index: 0, Bounds: image.Rect(0, 0, 1920, 1080), Primary: true},
		{Index: 1, Bounds: image.Rect(1920, 0, 3286, 768)},
	}

	tests := []struct {
		name       string
		windows    []framesource.Window
		windowsErr error
		want       []string
	}{
		{
			name:    "monitors and windows",
			windows: []framesource.Window{{ID: 0x3a00007, Title: "Terminal", Bounds: image.Rect(100, 50, 900, 650)}},
			want: []string{
				"  0  1920x1080+0+0  primary\n",
				"  1  1366x768+1920+0\n",
				"0x03a00007",
				"800x600+100+50",
				`"Terminal"`,
			},
		},
		{
			name: "no windows",
			want: []string{"  none\n"},
		},
		{
			name:       "window listing unavailable",
			windowsErr: errors.New("no X server"),
			want:       []string{"  0  1920x1080+0+0  primary\n", "unavailable: no X server"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSources(&buf, monitors, tt.windows, tt.windowsErr)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}
