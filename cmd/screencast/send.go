package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/frame"
	"github.com/e7canasta/orion-screencast/framebridge"
	"github.com/e7canasta/orion-screencast/framepacer"
	"github.com/e7canasta/orion-screencast/framesource"
	"github.com/e7canasta/orion-screencast/internal/config"
	"github.com/e7canasta/orion-screencast/internal/display"
)

// capturer samples the source at the pacer's rate and pushes cropped frames
// into the sender. Uncropped frames go to the preview bridge when set.
type capturer struct {
	sender  *screencast.Sender
	pacer   *framepacer.Pacer
	source  framesource.Source
	crop    *framesource.Cropped
	preview *framebridge.Bridge

	captureErrors atomic.Uint64
	pushErrors    atomic.Uint64
}

func newCapturer(cfg *config.Config, sender *screencast.Sender) (*capturer, error) {
	var (
		src framesource.Source
		err error
	)
	switch cfg.Send.Source {
	case config.SourceSynthetic:
		src, err = framesource.NewPattern(cfg.Send.PatternWidth, cfg.Send.PatternHeight)
	default:
		src, err = framesource.NewScreen(cfg.Target())
	}
	if err != nil {
		return nil, err
	}

	c := &capturer{
		sender: sender,
		pacer:  framepacer.ForFPS(float64(cfg.Send.FPS)),
		source: src,
		crop:   framesource.WithCrop(src),
	}
	if cfg.Send.Crop != nil {
		c.crop.SetCrop(*cfg.Send.Crop)
	}
	return c, nil
}

// tick takes one sample if the pacer allows it
func (c *capturer) tick() {
	if ok, _ := c.pacer.Ready(); !ok {
		return
	}

	f, err := c.capture()
	if err != nil {
		if n := c.captureErrors.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("capture failed", "error", err, "count", n)
		}
		return
	}

	if err := c.sender.Push(f); err != nil {
		if n := c.pushErrors.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("push failed", "error", err, "count", n)
		}
	}
}

func (c *capturer) capture() (frame.RawFrame, error) {
	if c.preview == nil {
		return c.crop.Capture()
	}

	f, err := c.source.Capture()
	if err != nil {
		return frame.RawFrame{}, err
	}
	if err := c.preview.Send(f); err != nil && !errors.Is(err, framebridge.ErrClosed) {
		slog.Debug("preview send failed", "error", err)
	}

	r, ok := c.crop.Crop()
	if !ok {
		return f, nil
	}
	return frame.Crop(f, r)
}

// run drives tick from a timer until ctx ends or the sender stops
func (c *capturer) run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.sender.Done():
			return terminalError(c.sender.Done(), c.sender.Err)
		case <-timer.C:
			c.tick()
			timer.Reset(max(c.pacer.NextIn(), time.Millisecond))
		}
	}
}

// zoom sets a crop selected on an already cropped view
func (c *capturer) zoom(r frame.CropRect) {
	if cur, ok := c.crop.Crop(); ok {
		r.X += cur.X
		r.Y += cur.Y
	}
	c.crop.SetCrop(r)
}

func (c *capturer) status() string {
	st := c.sender.Stats()
	crop := "full"
	if r, ok := c.crop.Crop(); ok {
		crop = r.String()
	}
	return fmt.Sprintf("%s  crop %s  pushed %d  rtp %d", st.Resolution, crop, st.FramesPushed, st.RTPPackets)
}

func newSender(cfg *config.Config) (*screencast.Sender, error) {
	sc := cfg.SenderConfig()
	if cfg.Mode == config.ModeLoopback && sc.Endpoint.Host == "" {
		sc.Endpoint.Host = "127.0.0.1"
	}
	return screencast.NewSender(sc)
}

func runSend(ctx context.Context, cfg *config.Config) error {
	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	if err := sender.Start(ctx); err != nil {
		return err
	}
	defer sender.Stop()

	go reportSender(ctx, sender, cfg.StatsInterval())

	if cfg.Send.Source == config.SourcePattern {
		select {
		case <-ctx.Done():
			return nil
		case <-sender.Done():
			return terminalError(sender.Done(), sender.Err)
		}
	}

	c, err := newCapturer(cfg, sender)
	if err != nil {
		return err
	}
	if !cfg.Send.Preview {
		return c.run(ctx)
	}

	c.preview = framebridge.New()
	defer c.preview.Close()

	surface := display.New(c.preview, display.Options{
		Title:       fmt.Sprintf("screencast send → %s", sender.Stats().Endpoint),
		OnTick:      c.tick,
		OnCrop:      c.crop.SetCrop,
		OnClearCrop: c.crop.ClearCrop,
		Crop:        c.crop.Crop,
		Status:      c.status,
	})
	go closeOnDone(ctx, sender.Done(), surface)

	if err := surface.Run(); err != nil {
		return err
	}
	return terminalError(sender.Done(), sender.Err)
}

// closeOnDone closes the surface when ctx ends or the pipeline stops
func closeOnDone(ctx context.Context, done <-chan struct{}, surface *display.Surface) {
	select {
	case <-ctx.Done():
	case <-done:
	}
	surface.Close()
}

// terminalError returns the pipeline's failure if it stopped on its own
func terminalError(done <-chan struct{}, errFn func() error) error {
	select {
	case <-done:
		if err := errFn(); err != nil && !errors.Is(err, screencast.ErrEndOfStream) {
			return err
		}
	default:
	}
	return nil
}
