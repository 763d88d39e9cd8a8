package screencast_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	screencast "github.com/e7canasta/orion-screencast"
	"github.com/e7canasta/orion-screencast/framebridge"
)

func ExampleEndpointConfig_Addr() {
	fmt.Println(screencast.EndpointConfig{Host: "192.168.1.20", Port: screencast.DefaultPort}.Addr())
	fmt.Println(screencast.EndpointConfig{Host: "fe80::1", Port: 5000}.Addr())
	// Output:
	// 192.168.1.20:50496
	// [fe80::1]:5000
}

// ExampleNewReceiver shows the receive side: bind, warm up, then take the
// newest frame on every tick. Not executed: it needs a sender on the LAN.
func ExampleNewReceiver() {
	bridge := framebridge.New()
	rx, err := screencast.NewReceiver(screencast.ReceiverConfig{
		Endpoint: screencast.EndpointConfig{Port: screencast.DefaultPort},
	}, bridge)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := rx.Start(ctx); err != nil {
		var bindErr *screencast.BindError
		if errors.As(err, &bindErr) {
			log.Fatalf("port taken: %s", bindErr.Addr)
		}
		log.Fatal(err)
	}
	defer rx.Stop()

	stats, err := rx.Warmup(ctx, 2*time.Second)
	log.Printf("stream stable: %v, FPS: %.2f (%v)", stats.Stable, stats.FPSMean, err)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case err := <-rx.Errors():
			log.Printf("stream lost: %v", err)
			return
		case <-ticker.C:
			if f, ok := bridge.TryTake(); ok {
				log.Printf("frame %d %s", f.Seq, f.Resolution())
			}
		}
	}
}

func ExampleSenderConfig_Validate() {
	cfg := screencast.SenderConfig{Endpoint: screencast.EndpointConfig{Port: screencast.DefaultPort}}
	err := cfg.Validate()
	fmt.Println(errors.Is(err, screencast.ErrInvalidConfig))
	// Output:
	// true
}
