package main

import (
	"context"
	"fmt"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
)

func reportSender(ctx context.Context, sender *screencast.Sender, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sender.Done():
			return
		case <-ticker.C:
			st := sender.Stats()
			fmt.Printf("\n")
			fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
			fmt.Printf("│ Sender Statistics (Uptime: %s)\n", st.Uptime.Round(time.Second))
			fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
			fmt.Printf("│ Endpoint:           %s\n", st.Endpoint)
			fmt.Printf("│ Resolution:         %s\n", st.Resolution)
			fmt.Printf("│ Frames Pushed:      %6d frames\n", st.FramesPushed)
			if st.FramesRejected > 0 {
				fmt.Printf("│ Frames Rejected:    %6d frames\n", st.FramesRejected)
			}
			fmt.Printf("│ Raw Bytes:          %6.2f MB\n", float64(st.BytesPushed)/1024/1024)
			fmt.Printf("│ RTP Packets:        %6d\n", st.RTPPackets)
			fmt.Printf("│ RTP Bytes:          %6.2f MB\n", float64(st.RTPBytes)/1024/1024)
			fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
		}
	}
}

func reportReceiver(ctx context.Context, receiver *screencast.Receiver, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-receiver.Done():
			return
		case <-ticker.C:
			printReceiverStats(receiver.Stats())
		}
	}
}

func printReceiverStats(st screencast.ReceiverStats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Receiver Statistics (Uptime: %s)\n", st.Uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Bound To:           %s\n", st.Endpoint)
	fmt.Printf("│ Resolution:         %s\n", st.Resolution)
	fmt.Printf("│ Frames Decoded:     %6d frames\n", st.FramesDecoded)
	fmt.Printf("│ Frames Replaced:    %6d frames\n", st.Bridge.Replaced)
	fmt.Printf("│ Real FPS:           %6.2f fps\n", st.FPSReal)
	if st.SinceLastFrame > 0 {
		fmt.Printf("│ Last Frame:         %6d ms ago\n", st.SinceLastFrame.Milliseconds())
	}
	fmt.Printf("│ RTP Packets:        %6d\n", st.RTPPackets)
	fmt.Printf("│ RTP Bytes:          %6.2f MB\n", float64(st.RTPBytes)/1024/1024)
	if st.PacketsLost+st.Reordered+st.PayloadMismatch+st.Malformed > 0 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Packets Lost:       %6d\n", st.PacketsLost)
		fmt.Printf("│ Reordered:          %6d\n", st.Reordered)
		fmt.Printf("│ Payload Mismatch:   %6d\n", st.PayloadMismatch)
		fmt.Printf("│ Malformed:          %6d\n", st.Malformed)
	}
	if st.FramesSkipped > 0 {
		fmt.Printf("│ Frames Skipped:     %6d frames\n", st.FramesSkipped)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}

func printWarmup(st screencast.WarmupStats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Warmup Complete\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", st.Frames)
	fmt.Printf("│ Duration:           %6.1f seconds\n", st.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", st.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", st.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", st.FPSMin, st.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6d ms\n", st.JitterMean.Milliseconds())
	fmt.Printf("│ Jitter Max:         %6d ms\n", st.JitterMax.Milliseconds())
	fmt.Printf("│ Stable:             %6v\n", st.Stable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}
