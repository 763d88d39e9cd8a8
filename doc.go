// Package screencast streams a screen, or a cropped region of it, from one
// host to another over a local network.
//
// The sender encodes raw frames to H.264, packetizes them as RTP (payload
// type 96 by convention) and sends them over UDP to an explicit endpoint.
// The receiver binds a UDP port, decodes the stream to RGBA and publishes
// every frame to a framebridge.Bridge, where the presentation loop takes the
// newest one on each tick.
//
// # Quick Start
//
// Receiving side:
//
//	bridge := framebridge.New()
//	rx, err := screencast.NewReceiver(screencast.ReceiverConfig{
//	    Endpoint: screencast.EndpointConfig{Port: screencast.DefaultPort},
//	}, bridge)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rx.Start(ctx); err != nil {
//	    log.Fatal(err) // *BindError when the port is taken
//	}
//	defer rx.Stop()
//
//	// on every paint tick
//	if f, ok := bridge.TryTake(); ok {
//	    draw(f)
//	}
//
// Sending side:
//
//	tx, err := screencast.NewSender(screencast.SenderConfig{
//	    Endpoint: screencast.EndpointConfig{Host: "192.168.1.20", Port: screencast.DefaultPort},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tx.Start(ctx); err != nil {
//	    log.Fatal(err) // *PipelineBuildError when a stage is missing
//	}
//	defer tx.Stop()
//
//	pacer := framepacer.ForFPS(screencast.DefaultFPS)
//	for {
//	    if ok, wait := pacer.Ready(); !ok {
//	        time.Sleep(wait)
//	        continue
//	    }
//	    f, err := source.Capture()
//	    if err == nil {
//	        tx.Push(f)
//	    }
//	}
//
// # Lifecycle
//
// Each pipeline goes Unconfigured → Configuring → Playing → Stopped, once.
// Build and bind failures are returned by Start before the pipeline plays.
// Failures while playing arrive on Errors() as a *TransportError and stop
// the pipeline; nothing is retried. Stop is idempotent and safe from any
// goroutine.
//
// # Non-goals
//
// No authentication, encryption, NAT traversal, adaptive bitrate, fan-out
// to several peers, or audio. One sender, one receiver, a trusted LAN.
package screencast
