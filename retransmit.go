package homa

//
// Retransmitter (§4.F): re-emits a specified byte range of an
// already-initialized message with caller-chosen priority. Not subject
// to pacing; never mutates next_offset or next_packet.
//

import "context"

// Retransmitter re-emits byte ranges of already-initialized messages.
type Retransmitter struct {
	Transmitter IPTransmitter
	Metrics     *Metrics
	Logger      Logger
	Clock       *IdleClock
}

// NewRetransmitter creates a [Retransmitter] wired to the given
// collaborators.
func NewRetransmitter(tx IPTransmitter, metrics *Metrics, logger Logger, clock *IdleClock) *Retransmitter {
	return &Retransmitter{Transmitter: tx, Metrics: metrics, Logger: logger, Clock: clock}
}

// Resend walks msg's packet list and re-emits every packet whose
// [offset, offset+MaxDataPerPacket) range intersects [start, end), at
// the given priority. It stops as soon as a packet's offset reaches
// end. Packets currently held by a prior in-flight transmit are
// skipped, not retagged or resent. Callers must hold the owning RPC's
// socket lock.
func (rt *Retransmitter) Resend(ctx context.Context, peer Peer, msg *Message, start, end uint32, priority uint8) {
	for i := 0; i < msg.NumPackets(); i++ {
		pkt := msg.PacketAt(i)
		offset := pkt.Header.Offset
		if offset >= end {
			break
		}
		if offset+MaxDataPerPacket <= start {
			continue
		}
		if pkt.HeldElsewhere() {
			continue
		}

		pkt.Header.Retransmit = true
		TagPacket(pkt, priority)

		rt.transmitCommon(ctx, peer, msg, pkt)
	}
}

// transmitCommon mirrors §4.E.sub: refresh cutoff version, submit, and
// always advance the link-idle clock... except retransmissions are
// explicitly exempt from pacing accounting per §4.F, so unlike the Data
// Sender this path does not call Clock.Advance. It still unifies the
// buffer-release anomaly per the Design Notes' second Open Question:
// whichever path detects "transmit failed without freeing the buffer"
// always releases exactly one reference.
func (rt *Retransmitter) transmitCommon(ctx context.Context, peer Peer, msg *Message, pkt *Packet) {
	pkt.Header.CutoffVersion = peer.CutoffVersion()

	wire, err := serializeDataPacket(pkt)
	if err != nil {
		rt.Metrics.DataXmitErrors.Inc()
		rt.Logger.Warnf("homa: retransmit: serialize: %s", err.Error())
		return
	}

	pkt.Acquire()
	err = rt.Transmitter.TransmitPacket(ctx, peer, pkt, wire)
	pkt.Release()

	if err != nil {
		rt.Metrics.DataXmitErrors.Inc()
		rt.Logger.Warnf("homa: retransmit: transmit rpc=%d offset=%d: %s", msg.ID, pkt.Header.Offset, err.Error())
		if pkt.HeldElsewhere() {
			rt.Logger.Warn("homa: retransmit: transmit error without buffer release")
			pkt.Release()
		}
		return
	}

	rt.Metrics.ResentPackets.Inc()
	rt.Metrics.PacketsSent.WithLabelValues(PacketTypeData.String()).Inc()
}
