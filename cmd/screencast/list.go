package main

import (
	"fmt"
	"image"
	"io"

	"github.com/e7canasta/orion-screencast/framesource"
)

// runList prints the monitors and windows the sender can capture
func runList(w io.Writer) error {
	monitors, err := framesource.Monitors()
	if err != nil {
		return err
	}
	windows, werr := framesource.Windows()
	printSources(w, monitors, windows, werr)
	return nil
}

// printSources writes one line per monitor and window. A window listing
// failure is printed in place of the windows; monitors stay usable.
func printSources(w io.Writer, monitors []framesource.Monitor, windows []framesource.Window, windowsErr error) {
	fmt.Fprintf(w, "Monitors (send --monitor N):\n")
	for _, m := range monitors {
		primary := ""
		if m.Primary {
			primary = "  primary"
		}
		fmt.Fprintf(w, "  %d  %s%s\n", m.Index, geometry(m.Bounds), primary)
	}

	fmt.Fprintf(w, "\nWindows (send --source window --window TITLE):\n")
	switch {
	case windowsErr != nil:
		fmt.Fprintf(w, "  unavailable: %v\n", windowsErr)
	case len(windows) == 0:
		fmt.Fprintf(w, "  none\n")
	}
	for _, win := range windows {
		fmt.Fprintf(w, "  0x%08x  %-24s %q\n", win.ID, geometry(win.Bounds), win.Title)
	}
}

// geometry formats r the way --crop takes it
func geometry(r image.Rectangle) string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y)
}
