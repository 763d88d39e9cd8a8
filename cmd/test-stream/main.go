package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/framepacer"
	"github.com/e7canasta/orion-screencast/framesource"
	"github.com/e7canasta/orion-screencast/internal/warmup"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	port := flag.Uint("port", uint(screencast.DefaultPort), "Loopback UDP port")
	source := flag.String("source", "pattern", "Frame source: pattern (videotestsrc), synthetic (pushed frames)")
	width := flag.Int("width", screencast.DefaultPatternWidth, "Frame width")
	height := flag.Int("height", screencast.DefaultPatternHeight, "Frame height")
	fps := flag.Int("fps", 30, "Target FPS (1-240)")
	jitter := flag.Duration("jitter", 0, "Receiver jitter buffer latency (0 disables)")
	maxFrames := flag.Int("max-frames", 0, "Stop after this many decoded frames (0 = unlimited)")
	firstFrameTimeout := flag.Duration("timeout", 5*time.Second, "Fail if no frame is decoded within this time")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	skipWarmup := flag.Bool("skip-warmup", false, "Skip FPS stability warmup")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("test-stream %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *port == 0 || *port > 65535 {
		log.Fatalf("Invalid port: %d", *port)
	}

	var kind screencast.SourceKind
	switch *source {
	case "pattern":
		kind = screencast.SourceTestPattern
	case "synthetic":
		kind = screencast.SourceAppFrames
	default:
		log.Fatalf("Invalid source: %s (must be pattern or synthetic)", *source)
	}

	endpoint := screencast.EndpointConfig{Host: "127.0.0.1", Port: uint16(*port)}

	// Print banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║          Screencast Loopback Test - H.264 / RTP           ║\n")
	fmt.Printf("║                      Version %s                       ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Endpoint:      %s\n", endpoint)
	fmt.Printf("  Source:        %s\n", *source)
	fmt.Printf("  Resolution:    %dx%d\n", *width, *height)
	fmt.Printf("  Target FPS:    %d\n", *fps)
	if *maxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", *maxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	fmt.Printf("\n")

	// Receiver first so the socket is bound before packets arrive
	receiver, err := screencast.NewReceiver(screencast.ReceiverConfig{
		Endpoint:      endpoint,
		JitterLatency: *jitter,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to create receiver: %v", err)
	}

	sender, err := screencast.NewSender(screencast.SenderConfig{
		Endpoint:      endpoint,
		FPS:           *fps,
		Source:        kind,
		PatternWidth:  *width,
		PatternHeight: *height,
	})
	if err != nil {
		log.Fatalf("Failed to create sender: %v", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Starting receiver...")
	if err := receiver.Start(ctx); err != nil {
		log.Fatalf("Failed to start receiver: %v", err)
	}
	slog.Info("Starting sender...")
	if err := sender.Start(ctx); err != nil {
		receiver.Stop()
		log.Fatalf("Failed to start sender: %v", err)
	}

	if kind == screencast.SourceAppFrames {
		go pushFrames(ctx, sender, *width, *height, *fps)
	}

	// Wait for the first decoded frame
	firstCtx, firstCancel := context.WithTimeout(ctx, *firstFrameTimeout)
	first, err := receiver.Bridge().Take(firstCtx)
	firstCancel()
	if err != nil {
		sender.Stop()
		receiver.Stop()
		log.Fatalf("No frame decoded within %s: %v", *firstFrameTimeout, err)
	}
	startTime := time.Now()
	slog.Info("First frame decoded", "resolution", first.Resolution(), "seq", first.Seq)

	// Warmup: measure FPS stability before counting frames
	if !*skipWarmup {
		fmt.Printf("\n")
		fmt.Printf("Running warmup (5 seconds) to measure stream stability...\n")
		warmupStats, err := receiver.Warmup(ctx, 5*time.Second)
		if err != nil && !errors.Is(err, warmup.ErrUnstable) {
			log.Fatalf("Warmup failed: %v", err)
		}

		fmt.Printf("\n")
		fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
		fmt.Printf("│ Warmup Complete\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Frames Received:    %6d frames\n", warmupStats.Frames)
		fmt.Printf("│ FPS Mean:           %6.2f fps\n", warmupStats.FPSMean)
		fmt.Printf("│ FPS StdDev:         %6.2f fps\n", warmupStats.FPSStdDev)
		fmt.Printf("│ Jitter Max:         %6d ms\n", warmupStats.JitterMax.Milliseconds())
		fmt.Printf("│ Stable:             %6v\n", warmupStats.Stable)
		fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")

		if !warmupStats.Stable {
			fmt.Printf("\n⚠️  WARNING: Stream is unstable (high FPS variance or jitter)\n")
		}
		fmt.Printf("\n")
	}

	fmt.Printf("Receiving frames...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	// Launch stats reporter goroutine
	if *statsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
		defer statsTicker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-statsTicker.C:
					st := receiver.Stats()
					fmt.Printf("[%s] decoded %d | %.2f fps | rtp %d | lost %d | replaced %d\n",
						time.Now().Format("15:04:05"),
						st.FramesDecoded,
						st.FPSReal,
						st.RTPPackets,
						st.PacketsLost,
						st.Bridge.Replaced,
					)
				}
			}
		}()
	}

	frameCount := 1
	frames := make(chan struct{})
	go func() {
		defer close(frames)
		for {
			if _, err := receiver.Bridge().Take(ctx); err != nil {
				return
			}
			select {
			case frames <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-sigChan:
			fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
			break loop
		case err := <-receiver.Errors():
			slog.Error("Receiver failed", "error", err)
			break loop
		case err := <-sender.Errors():
			slog.Error("Sender failed", "error", err)
			break loop
		case _, ok := <-frames:
			if !ok {
				slog.Warn("Frame bridge closed unexpectedly")
				break loop
			}
			frameCount++
			if *maxFrames > 0 && frameCount >= *maxFrames {
				fmt.Printf("\nReached maximum frames (%d), stopping...\n", *maxFrames)
				break loop
			}
		}
	}

	cancel()
	slog.Info("Stopping pipelines...")
	if err := sender.Stop(); err != nil {
		slog.Error("Error stopping sender", "error", err)
	}
	if err := receiver.Stop(); err != nil {
		slog.Error("Error stopping receiver", "error", err)
	}

	// Final stats
	sst := sender.Stats()
	rst := receiver.Stats()
	uptime := time.Since(startTime)

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Receiving Time:     %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Consumed:    %d frames\n", frameCount)
	fmt.Printf("  Frames Decoded:     %d frames\n", rst.FramesDecoded)
	fmt.Printf("  Frames Replaced:    %d frames\n", rst.Bridge.Replaced)
	fmt.Printf("  Last Resolution:    %s\n", rst.Resolution)
	fmt.Printf("  RTP Sent/Received:  %d / %d packets\n", sst.RTPPackets, rst.RTPPackets)
	fmt.Printf("  Packets Lost:       %d\n", rst.PacketsLost)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")

	if rst.FramesDecoded == 0 {
		os.Exit(1)
	}
	slog.Info("Loopback test completed successfully")
}

// pushFrames feeds the synthetic pattern at fps until ctx ends
func pushFrames(ctx context.Context, sender *screencast.Sender, width, height, fps int) {
	src, err := framesource.NewPattern(width, height)
	if err != nil {
		slog.Error("Failed to create pattern source", "error", err)
		return
	}
	pacer := framepacer.ForFPS(float64(fps))

	ticker := time.NewTicker(pacer.Period() / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sender.Done():
			return
		case <-ticker.C:
			if ok, _ := pacer.Ready(); !ok {
				continue
			}
			f, _ := src.Capture()
			if err := sender.Push(f); err != nil {
				slog.Debug("Push failed", "error", err)
			}
		}
	}
}
