package homa

//
// Outbound Message (§3, §4.C): owns the packet list for one message and
// tracks next_offset, granted, unscheduled, sched_priority.
//

import (
	"container/list"
	"fmt"
	"io"
)

// Message is one outbound RPC message. The zero value is invalid; use
// [NewMessage] then [Message.Init]. Callers are responsible for
// serializing access with the owning RPC's socket lock (§5): both the
// send path and the retransmit path may mutate a Message concurrently.
type Message struct {
	// Length is the total number of user bytes in this message.
	Length uint32

	// Dest, DestPort, SourcePort and ID are copied into every packet's
	// header at Init time.
	Dest       Route
	DestPort   uint16
	SourcePort uint16
	ID         uint64

	// packets is the ordered list of packet buffers covering [0, Length).
	packets []*Packet

	// nextIndex is the index into packets of the next packet to send;
	// equal to len(packets) once drained. This is the Go shape of the
	// spec's next_packet pointer, which becomes null when drained.
	nextIndex int

	// NextOffset is the byte offset of the next unsent packet. Per the
	// Design Notes' first Open Question, this is deliberately allowed
	// to exceed Length once the last (possibly short) packet has been
	// accounted for: it is a drained sentinel, not a bug.
	NextOffset uint32

	// Unscheduled is the byte count the sender may transmit without a
	// grant, fixed at Init time.
	Unscheduled uint32

	// Granted is the highest byte offset the sender may transmit up to
	// (exclusive). Mutated by the receive path (grants) and by Reset.
	Granted uint32

	// SchedPriority is the priority used for packets beyond Unscheduled;
	// updated by the receive path from incoming grants.
	SchedPriority uint8

	// listElem is non-nil while this message's RPC is linked onto a
	// [ThrottledList]; used to make Add idempotent per §4.G.
	listElem *list.Element
}

// NewMessage allocates an empty, uninitialized [Message].
func NewMessage() *Message {
	return &Message{}
}

// Init allocates ceil(length/MaxDataPerPacket) packet buffers (or one
// zero-length buffer when length == 0), copies length bytes out of src,
// and resets the send cursor to the start of the message. unscheduled
// is the unscheduled-byte budget computed by the caller as
// min(length, RTTBytes).
//
// On failure, every partially built packet buffer is released and the
// first error encountered is returned: [ErrInvalid] if length exceeds
// [MaxMessageLength], [ErrNoMemory] if alloc fails, [ErrFault] if
// copying from src fails.
func (m *Message) Init(
	alloc BufferAllocator,
	peer Peer,
	src io.Reader,
	length uint32,
	dest Route,
	dport, sport uint16,
	id uint64,
	unscheduled uint32,
) error {
	if length > MaxMessageLength {
		return fmt.Errorf("%w: length=%d", ErrInvalid, length)
	}

	numPackets := 1
	if length > 0 {
		numPackets = int((length + MaxDataPerPacket - 1) / MaxDataPerPacket)
	}

	packets := make([]*Packet, 0, numPackets)
	destroyPartial := func() {
		packets = nil
	}

	var remaining = length
	for i := 0; i < numPackets; i++ {
		curSize := remaining
		if curSize > MaxDataPerPacket {
			curSize = MaxDataPerPacket
		}

		pkt, err := alloc.Alloc(int(curSize))
		if err != nil {
			destroyPartial()
			return fmt.Errorf("%w: %s", ErrNoMemory, err.Error())
		}

		if curSize > 0 {
			if _, err := io.ReadFull(src, pkt.Payload[:curSize]); err != nil {
				destroyPartial()
				return fmt.Errorf("%w: %s", ErrFault, err.Error())
			}
		}

		offset := uint32(i) * uint32(MaxDataPerPacket)
		pkt.Header = DataHeader{
			SourcePort:    sport,
			DestPort:      dport,
			ID:            id,
			Type:          PacketTypeData,
			MessageLength: length,
			Offset:        offset,
			Unscheduled:   unscheduled,
			CutoffVersion: peer.CutoffVersion(),
			Retransmit:    false,
		}

		packets = append(packets, pkt)
		remaining -= curSize
	}

	m.Length = length
	m.Dest = dest
	m.DestPort = dport
	m.SourcePort = sport
	m.ID = id
	m.packets = packets
	m.Unscheduled = unscheduled
	m.nextIndex = 0
	m.NextOffset = 0
	m.Granted = min32(length, unscheduled)
	m.SchedPriority = 0
	return nil
}

// Reset rewinds the send cursor to the start of the message, preserving
// every packet buffer and its payload. Used after a peer indicates it
// lost its receive-side state.
func (m *Message) Reset() {
	m.nextIndex = 0
	m.NextOffset = 0
	m.Granted = min32(m.Length, m.Unscheduled)
}

// Destroy releases every packet buffer. Idempotent.
func (m *Message) Destroy() {
	m.packets = nil
	m.nextIndex = 0
}

// NumPackets returns the number of packet buffers this message holds.
func (m *Message) NumPackets() int {
	return len(m.packets)
}

// PacketAt returns the packet covering the given index, or nil if out
// of range.
func (m *Message) PacketAt(i int) *Packet {
	if i < 0 || i >= len(m.packets) {
		return nil
	}
	return m.packets[i]
}

// NextPacket returns the packet covering NextOffset, or nil once the
// message is drained (mirrors the spec's next_packet pointer).
func (m *Message) NextPacket() *Packet {
	return m.PacketAt(m.nextIndex)
}

// NextIndex returns the index of the next packet to send.
func (m *Message) NextIndex() int {
	return m.nextIndex
}

// AdvanceNext advances the send cursor to the next packet, overshooting
// past the end on the final (possibly short) packet by design (§9,
// Open Question 1): NextOffset becomes > Length and NextPacket becomes
// nil, which every caller treats as "drained".
func (m *Message) AdvanceNext() {
	m.nextIndex++
	m.NextOffset += MaxDataPerPacket
}

// RemainingBytes returns the number of bytes not yet sent, the key the
// [ThrottledList] orders by. It saturates at zero once the message is
// drained, even though NextOffset may have overshot Length.
func (m *Message) RemainingBytes() uint32 {
	if m.NextOffset >= m.Length {
		return 0
	}
	return m.Length - m.NextOffset
}

// Drained reports whether every eligible packet has been sent: either
// the granted window has been exhausted or the packet list has been
// walked to the end.
func (m *Message) Drained() bool {
	return m.NextOffset >= m.Granted || m.NextPacket() == nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
