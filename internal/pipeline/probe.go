package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/tinyzimmer/go-gst/gst"
)

// mismatchLogEvery limits payload-type warnings to one per this many packets
const mismatchLogEvery = 100

// RTPStats is a snapshot of RTPCounters
type RTPStats struct {
	Packets         uint64
	Bytes           uint64
	Lost            uint64
	Reordered       uint64
	PayloadMismatch uint64
	Malformed       uint64
	LastSeq         uint16
	LastPayloadType uint8
	LastSSRC        uint32
}

// RTPCounters inspects RTP packets on a pad. It estimates loss from sequence
// gaps and counts packets whose payload type differs from the negotiated one,
// which otherwise fail silently in the depayloader.
type RTPCounters struct {
	mu          sync.Mutex
	payloadType uint8
	primed      bool
	stats       RTPStats
}

// NewRTPCounters creates counters expecting payload type pt
func NewRTPCounters(pt uint8) *RTPCounters {
	return &RTPCounters{payloadType: pt}
}

// Observe accounts one RTP packet
func (c *RTPCounters) Observe(data []byte) error {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		c.mu.Lock()
		c.stats.Malformed++
		c.mu.Unlock()
		return fmt.Errorf("pipeline: malformed rtp packet: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Packets++
	c.stats.Bytes += uint64(len(data))
	c.stats.LastPayloadType = pkt.PayloadType
	c.stats.LastSSRC = pkt.SSRC

	if pkt.PayloadType != c.payloadType {
		c.stats.PayloadMismatch++
		if c.stats.PayloadMismatch%mismatchLogEvery == 1 {
			slog.Warn("pipeline: rtp payload type mismatch",
				"got", pkt.PayloadType,
				"want", c.payloadType,
				"mismatches", c.stats.PayloadMismatch,
			)
		}
	}

	seq := pkt.SequenceNumber
	if !c.primed {
		c.primed = true
		c.stats.LastSeq = seq
		return nil
	}

	// uint16 arithmetic handles wrap-around
	delta := seq - c.stats.LastSeq
	switch {
	case delta == 0:
		// duplicate
	case delta < 0x8000:
		c.stats.Lost += uint64(delta - 1)
		c.stats.LastSeq = seq
	default:
		c.stats.Reordered++
	}
	return nil
}

// Stats returns a snapshot
func (c *RTPCounters) Stats() RTPStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// AttachRTPProbe observes every buffer crossing the named pad of a stage
func AttachRTPProbe(g *Graph, stage, pad string, counters *RTPCounters) error {
	elem := g.Element(stage)
	if elem == nil {
		return fmt.Errorf("pipeline: no stage %q", stage)
	}
	p := elem.GetStaticPad(pad)
	if p == nil {
		return fmt.Errorf("pipeline: stage %q has no %s pad", stage, pad)
	}

	p.AddProbe(gst.PadProbeTypeBuffer, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		buffer := info.GetBuffer()
		if buffer == nil {
			return gst.PadProbeOK
		}
		mapInfo := buffer.Map(gst.MapRead)
		if mapInfo == nil {
			return gst.PadProbeOK
		}
		if err := counters.Observe(mapInfo.Bytes()); err != nil {
			slog.Debug("pipeline: rtp probe", "stage", stage, "error", err)
		}
		buffer.Unmap()
		return gst.PadProbeOK
	})

	slog.Debug("pipeline: rtp probe installed", "stage", stage, "pad", pad)
	return nil
}
