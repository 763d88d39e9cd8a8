package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/internal/config"
)

const version = "v0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: screencast <send|receive|loopback|list> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  screencast receive --port %d\n", screencast.DefaultPort)
	fmt.Fprintf(os.Stderr, "  screencast send --host 192.168.1.20 --crop 1280x720+0+0\n")
	fmt.Fprintf(os.Stderr, "  screencast send --host 192.168.1.20 --source window --window Terminal\n")
	fmt.Fprintf(os.Stderr, "  screencast loopback --source synthetic --headless\n")
	fmt.Fprintf(os.Stderr, "  screencast list\n\n")
	fmt.Fprintf(os.Stderr, "Keys: drag to crop, Backspace full size, Space pause, H hide, Esc quit.\n")
	fmt.Fprintf(os.Stderr, "Run 'screencast <mode> -h' for the flags of a mode.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	mode := config.Mode(os.Args[1])
	switch mode {
	case config.ModeSend, config.ModeReceive, config.ModeLoopback:
	case "list":
		if err := runList(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	case "version", "-version", "--version":
		fmt.Printf("screencast %s\n", version)
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n\n", mode)
		usage()
		os.Exit(2)
	}

	cfg, err := config.Parse(mode, os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	setupLogging(cfg.Log)
	slog.Info("starting screencast",
		"version", version,
		"mode", cfg.Mode,
		"port", cfg.Peer.Port,
		"payload_type", cfg.Peer.PayloadType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	switch mode {
	case config.ModeSend:
		err = runSend(ctx, cfg)
	case config.ModeReceive:
		err = runReceive(ctx, cfg)
	case config.ModeLoopback:
		err = runLoopback(ctx, cfg)
	}
	if err != nil {
		slog.Error("screencast failed", "mode", mode, "error", err)
		os.Exit(1)
	}

	slog.Info("screencast stopped", "mode", mode)
}

func setupLogging(cfg config.LogConfig) {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
