package homa

//
// Wire assembly helpers shared by the Data, Control and Retransmit
// senders: build a fully-serialized frame from a header and payload
// using gopacket's innermost-layer-first convention.
//

import (
	"github.com/google/gopacket"
)

// serializeDataPacket builds the wire bytes for pkt: its payload
// followed by its DATA header prepended in front.
func serializeDataPacket(pkt *Packet) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if len(pkt.Payload) > 0 {
		bytes, err := buf.AppendBytes(len(pkt.Payload))
		if err != nil {
			return nil, err
		}
		copy(bytes, pkt.Payload)
	}
	if err := pkt.Header.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// serializeControlPacket builds the wire bytes for a control packet:
// its type-specific payload, zero-padded and prefixed with the common
// header, per §6.
func serializeControlPacket(header *ControlHeader, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if len(payload) > 0 {
		bytes, err := buf.AppendBytes(len(payload))
		if err != nil {
			return nil, err
		}
		copy(bytes, payload)
	}
	if err := header.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
