package homa

//
// Packet buffer (§3, §9): a preallocated buffer holding a data header
// and payload. The "shared" capability from the Design Notes is modeled
// as an atomic reference count: a buffer handed to the IP transmit
// primitive is held there until that call returns, so a concurrent
// resend of the same offset can detect and skip it.
//

import "sync/atomic"

// Packet is a preallocated buffer for one DATA packet: a header plus up
// to [MaxDataPerPacket] bytes of payload. The zero value is invalid;
// use [NewPacket].
type Packet struct {
	// Header is this packet's DATA header. Retransmit and CutoffVersion
	// are rewritten on every send.
	Header DataHeader

	// Payload holds this packet's message bytes (at most
	// MaxDataPerPacket of them; the last packet of a message may be
	// shorter).
	Payload []byte

	// Priority is the link-layer priority most recently tagged onto
	// this buffer.
	Priority uint8

	// refcount tracks how many holders reference this buffer beyond its
	// owning [Message]: 0 means only the message holds it.
	refcount atomic.Int32
}

// NewPacket allocates a [Packet] with a payload capacity of size bytes.
func NewPacket(size int) *Packet {
	return &Packet{Payload: make([]byte, size)}
}

// HeldElsewhere reports whether some holder other than the owning
// [Message] is currently transmitting this buffer. Callers use this to
// implement the shared-buffer guard of §4.E step 4 and §4.F: a buffer
// that is still in flight from a prior call must not be retagged or
// resent.
func (p *Packet) HeldElsewhere() bool {
	return p.refcount.Load() > 0
}

// Acquire marks the buffer as held by one more concurrent transmit
// attempt. Callers must pair every Acquire with a Release.
func (p *Packet) Acquire() {
	p.refcount.Add(1)
}

// Release drops one hold acquired via Acquire.
func (p *Packet) Release() {
	p.refcount.Add(-1)
}

// HeapAllocator is a [BufferAllocator] that allocates from the Go heap.
// It never fails; it exists so production code and tests share the
// same [BufferAllocator] seam without every caller hand-rolling one.
type HeapAllocator struct{}

// Alloc implements BufferAllocator.
func (HeapAllocator) Alloc(size int) (*Packet, error) {
	return NewPacket(size), nil
}

var _ BufferAllocator = HeapAllocator{}
