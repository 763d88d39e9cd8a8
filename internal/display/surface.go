// Package display presents the newest frame of a frame bridge in an
// ebiten window and turns mouse drags into crop rectangles.
package display

import (
	"fmt"
	"image/color"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/framebridge"
)

var (
	backgroundColor = color.RGBA{0x10, 0x10, 0x10, 0xff}
	cropColor       = color.RGBA{0x20, 0xc0, 0x40, 0xff}
	dragColor       = color.RGBA{0xff, 0xc0, 0x20, 0xff}
)

// Options configures a Surface. Every callback runs on the ebiten loop and
// must not block.
type Options struct {
	Title  string
	Width  int
	Height int

	// OnTick runs at the start of every Update unless paused or hidden. The
	// sender drives its pacer and capture from here.
	OnTick func()
	// OnCrop receives a crop selected by dragging; nil disables selection
	OnCrop func(frame.CropRect)
	// OnClearCrop runs when Backspace is pressed
	OnClearCrop func()
	// Crop returns the active crop, drawn as an outline
	Crop func() (frame.CropRect, bool)
	// Status returns a line of text drawn in the corner
	Status func() string
	// SignalTimeout shows NO SIGNAL when no frame arrived for that long.
	// Zero keeps the last frame forever.
	SignalTimeout time.Duration
	// Lost is closed when the stream behind the bridge ended
	Lost <-chan struct{}
}

// Surface implements ebiten.Game. It polls the bridge on every tick and
// never blocks on it.
type Surface struct {
	bridge *framebridge.Bridge
	opts   Options

	img       *ebiten.Image
	current   frame.RawFrame
	dirty     bool
	lastFrame time.Time

	viewW, viewH int
	drag         selection
	keys         controls
	quit         atomic.Bool
}

// New creates a surface presenting frames from bridge
func New(bridge *framebridge.Bridge, opts Options) *Surface {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1280, 720
	}
	if opts.Title == "" {
		opts.Title = "screencast"
	}
	return &Surface{bridge: bridge, opts: opts}
}

// Run opens the window and runs the loop until the window is closed, Escape
// is pressed or Close is called. Must be called from the main goroutine.
func (s *Surface) Run() error {
	ebiten.SetWindowSize(s.opts.Width, s.opts.Height)
	ebiten.SetWindowTitle(s.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(s); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

// Close ends Run on the next tick. Safe from any goroutine.
func (s *Surface) Close() {
	s.quit.Store(true)
}

// Update implements ebiten.Game
func (s *Surface) Update() error {
	if s.quit.Load() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		s.keys.togglePause()
		slog.Info("display: paused", "paused", s.keys.paused)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		s.keys.toggleHide()
		slog.Info("display: hidden", "hidden", s.keys.hidden)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && s.opts.OnClearCrop != nil {
		s.opts.OnClearCrop()
	}

	if s.keys.capturing() && s.opts.OnTick != nil {
		s.opts.OnTick()
	}

	if f, ok := s.bridge.TryTake(); ok {
		s.current = f
		s.dirty = true
		s.lastFrame = time.Now()
	}

	s.updateSelection()
	return nil
}

func (s *Surface) updateSelection() {
	if s.opts.OnCrop == nil || s.current.Empty() || s.keys.hidden {
		return
	}

	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		s.drag.begin(x, y)
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		s.drag.move(x, y)
		if r, ok := s.drag.end(s.letterbox()); ok {
			slog.Info("display: crop selected", "crop", r.String())
			s.opts.OnCrop(r)
		}
	default:
		s.drag.move(x, y)
	}
}

func (s *Surface) letterbox() frame.Letterbox {
	return frame.Fit(s.viewW, s.viewH, s.current.Width, s.current.Height)
}

func (s *Surface) signal() bool {
	if s.opts.Lost != nil {
		select {
		case <-s.opts.Lost:
			return false
		default:
		}
	}
	return hasSignal(s.lastFrame, time.Now(), s.opts.SignalTimeout)
}

// Draw implements ebiten.Game
func (s *Surface) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	if s.keys.hidden || !s.signal() {
		w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
		ebitenutil.DebugPrintAt(screen, "NO SIGNAL", w/2-27, h/2-8)
		s.drawStatus(screen)
		return
	}

	if s.dirty {
		f := s.current
		if s.img == nil || s.img.Bounds().Dx() != f.Width || s.img.Bounds().Dy() != f.Height {
			s.img = ebiten.NewImage(f.Width, f.Height)
		}
		if f.Format == frame.RGBA {
			s.img.WritePixels(f.Pix)
		} else {
			s.img.WritePixels(f.RGBA().Pix)
		}
		s.dirty = false
	}

	lb := s.letterbox()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(lb.Scale, lb.Scale)
	op.GeoM.Translate(lb.OffsetX, lb.OffsetY)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(s.img, op)

	if s.opts.Crop != nil {
		if r, ok := s.opts.Crop(); ok {
			x0, y0 := lb.ToView(float64(r.X), float64(r.Y))
			x1, y1 := lb.ToView(float64(r.X+r.Width), float64(r.Y+r.Height))
			vector.StrokeRect(screen, float32(x0), float32(y0), float32(x1-x0), float32(y1-y0), 2, cropColor, false)
		}
	}
	if s.drag.active {
		x, y, w, h := s.drag.rect()
		vector.StrokeRect(screen, float32(x), float32(y), float32(w), float32(h), 1, dragColor, false)
	}
	s.drawStatus(screen)
}

func (s *Surface) drawStatus(screen *ebiten.Image) {
	text := ""
	if s.opts.Status != nil {
		text = s.opts.Status()
	}
	text = s.keys.label() + text
	if text != "" {
		ebitenutil.DebugPrintAt(screen, text, 4, 4)
	}
}

// Layout implements ebiten.Game
func (s *Surface) Layout(outsideWidth, outsideHeight int) (int, int) {
	s.viewW, s.viewH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
