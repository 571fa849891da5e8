package homa

//
// Wire codec (§6, §4.I): Data and Control headers modeled as gopacket
// layers, the way the rest of this module's ecosystem layers TCP/UDP/IP
// framing on top of github.com/google/gopacket.
//

import (
	"encoding/binary"
	"errors"

	"github.com/google/gopacket"
)

// dataHeaderLen is the on-the-wire size, in bytes, of a [DataHeader].
const dataHeaderLen = 32

// controlHeaderCommonLen is the on-the-wire size of the header fields
// shared by every control packet type, before its type-specific payload.
const controlHeaderCommonLen = 13

// LayerTypeHomaData is the [gopacket.LayerType] for [DataHeader].
var LayerTypeHomaData = gopacket.RegisterLayerType(
	1921, // arbitrary, outside gopacket's reserved range
	gopacket.LayerTypeMetadata{Name: "HomaData", Decoder: gopacket.DecodeFunc(decodeDataHeader)},
)

// LayerTypeHomaControl is the [gopacket.LayerType] for [ControlHeader].
var LayerTypeHomaControl = gopacket.RegisterLayerType(
	1922,
	gopacket.LayerTypeMetadata{Name: "HomaControl", Decoder: gopacket.DecodeFunc(decodeControlHeader)},
)

// ErrShortHeader indicates the wire bytes are too short to contain a
// full header of the requested kind.
var ErrShortHeader = errors.New("homa: packet too short to contain a header")

// DataHeader is the fixed-size header prefixing every DATA packet's
// payload. Field order and sizes are fixed by the wire format (§6); do
// not reorder them.
type DataHeader struct {
	gopacket.BaseLayer

	// SourcePort and DestPort identify the sending and receiving RPC
	// socket ports.
	SourcePort, DestPort uint16

	// ID is the RPC identifier.
	ID uint64

	// Type is always [PacketTypeData] for this header.
	Type PacketType

	// MessageLength is the total length, in bytes, of the message this
	// packet belongs to.
	MessageLength uint32

	// Offset is this packet's byte offset within the message.
	Offset uint32

	// Unscheduled is the unscheduled-byte budget of the owning message,
	// copied in at [Message.Init] time.
	Unscheduled uint32

	// CutoffVersion is the peer's cutoff generation number at the time
	// this packet was sent.
	CutoffVersion uint16

	// Retransmit is set when this packet is being retransmitted rather
	// than sent for the first time.
	Retransmit bool
}

// LayerType implements gopacket.Layer and gopacket.SerializableLayer.
func (h *DataHeader) LayerType() gopacket.LayerType { return LayerTypeHomaData }

// SerializeTo implements gopacket.SerializableLayer.
func (h *DataHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(dataHeaderLen)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes[0:2], h.SourcePort)
	binary.BigEndian.PutUint16(bytes[2:4], h.DestPort)
	binary.BigEndian.PutUint64(bytes[4:12], h.ID)
	bytes[12] = byte(h.Type)
	bytes[13], bytes[14], bytes[15] = 0, 0, 0 // padding
	binary.BigEndian.PutUint32(bytes[16:20], h.MessageLength)
	binary.BigEndian.PutUint32(bytes[20:24], h.Offset)
	binary.BigEndian.PutUint32(bytes[24:28], h.Unscheduled)
	binary.BigEndian.PutUint16(bytes[28:30], h.CutoffVersion)
	if h.Retransmit {
		bytes[30] = 1
	} else {
		bytes[30] = 0
	}
	bytes[31] = 0 // padding
	return nil
}

// DecodeFromBytes parses the wire representation of a [DataHeader].
func (h *DataHeader) DecodeFromBytes(data []byte) error {
	if len(data) < dataHeaderLen {
		return ErrShortHeader
	}
	h.SourcePort = binary.BigEndian.Uint16(data[0:2])
	h.DestPort = binary.BigEndian.Uint16(data[2:4])
	h.ID = binary.BigEndian.Uint64(data[4:12])
	h.Type = PacketType(data[12])
	h.MessageLength = binary.BigEndian.Uint32(data[16:20])
	h.Offset = binary.BigEndian.Uint32(data[20:24])
	h.Unscheduled = binary.BigEndian.Uint32(data[24:28])
	h.CutoffVersion = binary.BigEndian.Uint16(data[28:30])
	h.Retransmit = data[30] != 0
	h.BaseLayer = gopacket.BaseLayer{
		Contents: data[:dataHeaderLen],
		Payload:  data[dataHeaderLen:],
	}
	return nil
}

// decodeDataHeader is the gopacket.DecodeFunc registered for
// [LayerTypeHomaData].
func decodeDataHeader(data []byte, p gopacket.PacketBuilder) error {
	h := &DataHeader{}
	if err := h.DecodeFromBytes(data); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

// ControlHeader is the common header shared by every control packet
// (grant, resend, ack, busy, ...); Payload carries the type-specific
// body and is zero-padded to [MaxHeader] bytes on the wire.
type ControlHeader struct {
	gopacket.BaseLayer

	// SourcePort and DestPort identify the sending and receiving RPC
	// socket ports.
	SourcePort, DestPort uint16

	// ID is the RPC identifier.
	ID uint64

	// Type is the control packet's type (grant, resend, ack, busy).
	Type PacketType
}

// LayerType implements gopacket.Layer and gopacket.SerializableLayer.
func (h *ControlHeader) LayerType() gopacket.LayerType { return LayerTypeHomaControl }

// SerializeTo implements gopacket.SerializableLayer. The caller is
// expected to have already appended its type-specific payload to the
// same [gopacket.SerializeBuffer] (innermost layer first, per gopacket
// convention); this call then prepends the common header and zero-pads
// the whole frame to [MaxHeader].
func (h *ControlHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(controlHeaderCommonLen)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes[0:2], h.SourcePort)
	binary.BigEndian.PutUint16(bytes[2:4], h.DestPort)
	binary.BigEndian.PutUint64(bytes[4:12], h.ID)
	bytes[12] = byte(h.Type)

	if pad := MaxHeader - len(b.Bytes()); pad > 0 {
		tail, err := b.AppendBytes(pad)
		if err != nil {
			return err
		}
		for i := range tail {
			tail[i] = 0
		}
	}
	return nil
}

// DecodeFromBytes parses the common fields of a [ControlHeader]; the
// type-specific payload remains available via h.Payload.
func (h *ControlHeader) DecodeFromBytes(data []byte) error {
	if len(data) < controlHeaderCommonLen {
		return ErrShortHeader
	}
	h.SourcePort = binary.BigEndian.Uint16(data[0:2])
	h.DestPort = binary.BigEndian.Uint16(data[2:4])
	h.ID = binary.BigEndian.Uint64(data[4:12])
	h.Type = PacketType(data[12])
	h.BaseLayer = gopacket.BaseLayer{
		Contents: data[:controlHeaderCommonLen],
		Payload:  data[controlHeaderCommonLen:],
	}
	return nil
}

// decodeControlHeader is the gopacket.DecodeFunc registered for
// [LayerTypeHomaControl].
func decodeControlHeader(data []byte, p gopacket.PacketBuilder) error {
	h := &ControlHeader{}
	if err := h.DecodeFromBytes(data); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

// GrantPayload is the type-specific body of a GRANT control packet.
type GrantPayload struct {
	// Offset is the new granted-byte watermark.
	Offset uint32

	// Priority is the scheduled priority the sender should use beyond
	// the unscheduled prefix.
	Priority uint8
}

// SerializeTo appends the grant payload's wire bytes.
func (g *GrantPayload) SerializeTo(b gopacket.SerializeBuffer) error {
	bytes, err := b.AppendBytes(5)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(bytes[0:4], g.Offset)
	bytes[4] = g.Priority
	return nil
}

// DecodeGrantPayload parses a grant payload from data.
func DecodeGrantPayload(data []byte) (*GrantPayload, error) {
	if len(data) < 5 {
		return nil, ErrShortHeader
	}
	return &GrantPayload{
		Offset:   binary.BigEndian.Uint32(data[0:4]),
		Priority: data[4],
	}, nil
}
