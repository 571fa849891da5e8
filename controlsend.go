package homa

//
// Control Sender (§4.D): emits fixed-size control packets (grant,
// resend, ack, ...) at the highest priority, independent of pacing.
// Control packets are not paced and do not update the link-idle clock.
//

import "context"

// ControlSender emits control packets for an RPC.
type ControlSender struct {
	Alloc       BufferAllocator
	Transmitter IPTransmitter
	Metrics     *Metrics
	Logger      Logger
	MaxPrio     uint8
}

// NewControlSender creates a [ControlSender] wired to the given
// collaborators.
func NewControlSender(alloc BufferAllocator, tx IPTransmitter, metrics *Metrics, logger Logger, maxPrio uint8) *ControlSender {
	return &ControlSender{
		Alloc:       alloc,
		Transmitter: tx,
		Metrics:     metrics,
		Logger:      logger,
		MaxPrio:     maxPrio,
	}
}

// SendGrant emits a GRANT control packet to peer for the given RPC id.
// clientPort is the RPC's client-side port; role picks which port the
// header's source field carries.
func (cs *ControlSender) SendGrant(ctx context.Context, peer Peer, role Role, clientPort, serverPort uint16, id uint64, grant *GrantPayload) error {
	return cs.send(ctx, peer, role, clientPort, serverPort, id, PacketTypeGrant, func(b []byte) ([]byte, error) {
		return appendGrantPayload(b, grant)
	})
}

// SendResend emits a RESEND control packet requesting retransmission of
// [start, end) at the given priority.
func (cs *ControlSender) SendResend(ctx context.Context, peer Peer, role Role, clientPort, serverPort uint16, id uint64, start, end uint32, priority uint8) error {
	return cs.send(ctx, peer, role, clientPort, serverPort, id, PacketTypeResend, func(b []byte) ([]byte, error) {
		b = appendUint32(b, start)
		b = appendUint32(b, end)
		return append(b, priority), nil
	})
}

// SendAck emits an ACK control packet for the given RPC id.
func (cs *ControlSender) SendAck(ctx context.Context, peer Peer, role Role, clientPort, serverPort uint16, id uint64) error {
	return cs.send(ctx, peer, role, clientPort, serverPort, id, PacketTypeAck, func(b []byte) ([]byte, error) {
		return b, nil
	})
}

// send implements the steps common to every control packet (§4.D):
// fill the common header, allocate and pad the buffer, tag max_prio,
// and submit.
func (cs *ControlSender) send(
	ctx context.Context,
	peer Peer,
	role Role,
	clientPort, serverPort uint16,
	id uint64,
	ptype PacketType,
	buildPayload func([]byte) ([]byte, error),
) error {
	sport, dport := serverPort, clientPort
	if role == RoleClient {
		sport, dport = clientPort, serverPort
	}

	pkt, err := cs.Alloc.Alloc(MaxHeader)
	if err != nil {
		cs.Metrics.ControlXmitErrors.Inc()
		cs.Logger.Warnf("homa: controlsend: alloc: %s", err.Error())
		return ErrNoBuffers
	}

	header := &ControlHeader{
		SourcePort: sport,
		DestPort:   dport,
		ID:         id,
		Type:       ptype,
	}

	payload, err := buildPayload(nil)
	if err != nil {
		cs.Metrics.ControlXmitErrors.Inc()
		return err
	}

	wire, err := serializeControlPacket(header, payload)
	if err != nil {
		cs.Metrics.ControlXmitErrors.Inc()
		return err
	}

	TagPacket(pkt, cs.MaxPrio)

	err = cs.Transmitter.TransmitPacket(ctx, peer, pkt, wire)
	if err != nil {
		cs.Metrics.ControlXmitErrors.Inc()
		cs.Logger.Warnf("homa: controlsend: transmit rpc=%d type=%s: %s", id, ptype, err.Error())
		return err
	}

	cs.Metrics.PacketsSent.WithLabelValues(ptype.String()).Inc()
	return nil
}

func appendGrantPayload(b []byte, g *GrantPayload) ([]byte, error) {
	b = appendUint32(b, g.Offset)
	return append(b, g.Priority), nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
