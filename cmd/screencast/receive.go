package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/internal/config"
	"github.com/e7canasta/orion-screencast/internal/display"
	"github.com/e7canasta/orion-screencast/internal/warmup"
)

const signalTimeout = 2 * time.Second

func startReceiver(ctx context.Context, cfg *config.Config) (*screencast.Receiver, error) {
	rc := cfg.ReceiverConfig()
	if cfg.Mode == config.ModeLoopback && rc.Endpoint.Host == "" {
		rc.Endpoint.Host = "127.0.0.1"
	}

	receiver, err := screencast.NewReceiver(rc, nil)
	if err != nil {
		return nil, err
	}
	if err := receiver.Start(ctx); err != nil {
		return nil, err
	}
	return receiver, nil
}

func runReceive(ctx context.Context, cfg *config.Config) error {
	receiver, err := startReceiver(ctx, cfg)
	if err != nil {
		return err
	}
	defer receiver.Stop()

	go reportReceiver(ctx, receiver, cfg.StatsInterval())

	if cfg.Receive.Headless {
		runWarmup(ctx, receiver, cfg.Warmup())
		return consume(ctx, receiver)
	}

	go runWarmup(ctx, receiver, cfg.Warmup())

	surface := display.New(receiver.Bridge(), display.Options{
		Title:         fmt.Sprintf("screencast receive ← %s", receiver.Stats().Endpoint),
		Status:        receiverStatus(receiver),
		SignalTimeout: signalTimeout,
		Lost:          receiver.Done(),
	})
	go closeOnDone(ctx, receiver.Done(), surface)

	if err := surface.Run(); err != nil {
		return err
	}
	return terminalError(receiver.Done(), receiver.Err)
}

// runLoopback sends to and receives from 127.0.0.1 in one process. The
// window shows the decoded stream; a drag zooms into the current crop.
func runLoopback(ctx context.Context, cfg *config.Config) error {
	receiver, err := startReceiver(ctx, cfg)
	if err != nil {
		return err
	}
	defer receiver.Stop()

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	if err := sender.Start(ctx); err != nil {
		return err
	}
	defer sender.Stop()

	go reportSender(ctx, sender, cfg.StatsInterval())
	go reportReceiver(ctx, receiver, cfg.StatsInterval())

	var c *capturer
	if cfg.Send.Source != config.SourcePattern {
		if c, err = newCapturer(cfg, sender); err != nil {
			return err
		}
	}

	if cfg.Receive.Headless {
		if c != nil {
			go func() {
				if err := c.run(ctx); err != nil {
					slog.Error("capture loop stopped", "error", err)
				}
			}()
		}
		runWarmup(ctx, receiver, cfg.Warmup())
		return consume(ctx, receiver)
	}

	go runWarmup(ctx, receiver, cfg.Warmup())

	opts := display.Options{
		Title:         "screencast loopback",
		Status:        receiverStatus(receiver),
		SignalTimeout: signalTimeout,
		Lost:          receiver.Done(),
	}
	if c != nil {
		opts.OnTick = c.tick
		opts.OnCrop = c.zoom
		opts.OnClearCrop = c.crop.ClearCrop
	}
	surface := display.New(receiver.Bridge(), opts)

	stopped := make(chan struct{})
	go func() {
		select {
		case <-sender.Done():
		case <-receiver.Done():
		}
		close(stopped)
	}()
	go closeOnDone(ctx, stopped, surface)

	if err := surface.Run(); err != nil {
		return err
	}
	if err := terminalError(sender.Done(), sender.Err); err != nil {
		return err
	}
	return terminalError(receiver.Done(), receiver.Err)
}

// consume drains the bridge until the receiver stops or ctx ends
func consume(ctx context.Context, receiver *screencast.Receiver) error {
	bridge := receiver.Bridge()
	for {
		f, err := bridge.Take(ctx)
		switch {
		case errors.Is(err, screencast.ErrChannelClosed):
			return terminalError(receiver.Done(), receiver.Err)
		case err != nil:
			return nil
		}
		slog.Debug("frame decoded", "seq", f.Seq, "resolution", f.Resolution())
	}
}

func runWarmup(ctx context.Context, receiver *screencast.Receiver, d time.Duration) {
	if d <= 0 {
		return
	}

	slog.Info("measuring stream stability", "duration", d)
	stats, err := receiver.Warmup(ctx, d)
	switch {
	case errors.Is(err, warmup.ErrUnstable):
		printWarmup(stats)
		fmt.Printf("\n⚠️  WARNING: Stream is unstable (high FPS variance or jitter)\n\n")
	case err != nil:
		slog.Warn("warmup failed", "error", err)
	default:
		printWarmup(stats)
	}
}

func receiverStatus(receiver *screencast.Receiver) func() string {
	return func() string {
		st := receiver.Stats()
		return fmt.Sprintf("%s  %.1f fps  lost %d", st.Resolution, st.FPSReal, st.PacketsLost)
	}
}
