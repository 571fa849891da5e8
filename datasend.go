package homa

//
// Data Sender (§4.E): for one RPC, transmits eligible packets until the
// granted window is exhausted or backpressure triggers throttling.
//

import (
	"context"
)

// DataSender transmits DATA packets for outbound messages, consulting
// the [IdleClock] to decide between sending immediately and deferring
// to the [ThrottledList].
type DataSender struct {
	Clock         *IdleClock
	Throttled     *ThrottledList
	Transmitter   IPTransmitter
	Metrics       *Metrics
	Logger        Logger
	ThrottleMinBytes uint32
	DontThrottle  bool
}

// NewDataSender creates a [DataSender] wired to the given collaborators.
func NewDataSender(clock *IdleClock, throttled *ThrottledList, tx IPTransmitter, metrics *Metrics, logger Logger, throttleMinBytes uint32) *DataSender {
	return &DataSender{
		Clock:            clock,
		Throttled:        throttled,
		Transmitter:      tx,
		Metrics:          metrics,
		Logger:           logger,
		ThrottleMinBytes: throttleMinBytes,
	}
}

// Send attempts to transmit every packet in [msg.NextOffset,
// msg.Granted) whose buffer is not currently shared. It either sends
// immediately or, on backpressure, enqueues msg onto the throttled list
// and returns. Callers must hold the owning RPC's socket lock.
func (ds *DataSender) Send(ctx context.Context, peer Peer, msg *Message) {
	for msg.NextOffset < msg.Granted && msg.NextPacket() != nil {
		if ds.shouldThrottle(msg) {
			ds.Throttled.Add(msg)
			return
		}

		pkt := msg.NextPacket()
		offset := pkt.Header.Offset
		msg.AdvanceNext()

		priority := msg.SchedPriority
		if offset < msg.Unscheduled {
			priority = peer.UnschedPriority(msg.Length)
		}

		// Shared-buffer guard (§4.E step 4): a buffer still held by a
		// prior in-flight transmit is skipped, not retagged or resent.
		// next_offset has already advanced past it.
		if pkt.HeldElsewhere() {
			continue
		}

		TagPacket(pkt, priority)
		pkt.Header.Retransmit = false

		ds.transmitCommon(ctx, peer, msg, pkt)
	}
}

// shouldThrottle implements §4.E step 1: small messages bypass pacing
// to preserve tail latency; everything else defers when the NIC queue
// is backed up beyond tolerance.
func (ds *DataSender) shouldThrottle(msg *Message) bool {
	if ds.DontThrottle {
		return false
	}
	remaining := msg.RemainingBytes()
	if remaining <= ds.ThrottleMinBytes {
		return false
	}
	return ds.Clock.Backlogged()
}

// transmitCommon implements §4.E.sub: refresh the cutoff version,
// submit to the IP layer (the route is not stored on the packet; the
// transmitter addresses the frame at peer's route), account errors to
// metrics, and always advance the link-idle clock regardless of
// outcome.
func (ds *DataSender) transmitCommon(ctx context.Context, peer Peer, msg *Message, pkt *Packet) {
	pkt.Header.CutoffVersion = peer.CutoffVersion()

	wire, err := serializeDataPacket(pkt)
	wireBytes := len(wire)
	if err != nil {
		ds.Metrics.DataXmitErrors.Inc()
		ds.Logger.Warnf("homa: datasend: serialize: %s", err.Error())
		ds.Clock.Advance(wireBytes)
		return
	}

	pkt.Acquire()
	err = ds.Transmitter.TransmitPacket(ctx, peer, pkt, wire)
	pkt.Release()

	if err != nil {
		ds.Metrics.DataXmitErrors.Inc()
		ds.Logger.Warnf("homa: datasend: transmit rpc=%d offset=%d: %s", msg.ID, pkt.Header.Offset, err.Error())
		if pkt.HeldElsewhere() {
			ds.Logger.Warn("homa: datasend: transmit error without buffer release")
			pkt.Release()
		}
	} else {
		ds.Metrics.PacketsSent.WithLabelValues(PacketTypeData.String()).Inc()
	}

	ds.Clock.Advance(wireBytes)
}
