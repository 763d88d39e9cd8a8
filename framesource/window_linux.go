//go:build linux

package framesource

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// x11 keeps one X connection for window lookups; it is reopened after an error
var x11 struct {
	mu   sync.Mutex
	conn *xgb.Conn
}

// Windows lists top-level windows known to the window manager, in stacking
// order of _NET_CLIENT_LIST. Windows without a title are skipped.
func Windows() ([]Window, error) {
	x11.mu.Lock()
	defer x11.mu.Unlock()

	if x11.conn == nil {
		conn, err := xgb.NewConn()
		if err != nil {
			return nil, fmt.Errorf("%w: connect to X server: %v", ErrCaptureUnavailable, err)
		}
		x11.conn = conn
	}

	windows, err := listWindows(x11.conn)
	if err != nil {
		x11.conn.Close()
		x11.conn = nil
		return nil, err
	}
	return windows, nil
}

func listWindows(X *xgb.Conn) ([]Window, error) {
	root := xproto.Setup(X).DefaultScreen(X).Root

	clientList, err := internAtom(X, "_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	netWMName, err := internAtom(X, "_NET_WM_NAME")
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(X, false, root, clientList, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: read _NET_CLIENT_LIST: %v", ErrCaptureUnavailable, err)
	}

	windows := make([]Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		id := xproto.Window(xgb.Get32(reply.Value[i:]))

		title := windowTitle(X, id, netWMName)
		if title == "" {
			continue
		}

		bounds, err := windowBounds(X, id, root)
		if err != nil {
			// windows may vanish between listing and querying
			slog.Debug("framesource: skipping window", "id", uint32(id), "error", err)
			continue
		}

		windows = append(windows, Window{ID: uint32(id), Title: title, Bounds: bounds})
	}
	return windows, nil
}

func internAtom(X *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(X, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: intern atom %s: %v", ErrCaptureUnavailable, name, err)
	}
	if reply.Atom == xproto.AtomNone {
		return 0, fmt.Errorf("%w: window manager does not provide %s", ErrCaptureUnavailable, name)
	}
	return reply.Atom, nil
}

// windowTitle prefers the UTF-8 _NET_WM_NAME and falls back to WM_NAME
func windowTitle(X *xgb.Conn, id xproto.Window, netWMName xproto.Atom) string {
	for _, atom := range []xproto.Atom{netWMName, xproto.AtomWmName} {
		reply, err := xproto.GetProperty(X, false, id, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
		if err != nil || len(reply.Value) == 0 {
			continue
		}
		return string(reply.Value)
	}
	return ""
}

func windowBounds(X *xgb.Conn, id, root xproto.Window) (image.Rectangle, error) {
	geom, err := xproto.GetGeometry(X, xproto.Drawable(id)).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	pos, err := xproto.TranslateCoordinates(X, id, root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}

	x, y := int(pos.DstX), int(pos.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height)), nil
}
