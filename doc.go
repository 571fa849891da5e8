// Package homa implements the outbound side of a Homa-style low-latency
// datagram RPC transport: message fragmentation, paced transmission
// governed by a NIC-queue model, priority assignment, retransmission of
// byte ranges, and a central pacer that serializes transmission across
// competing RPCs in SRPT (shortest-remaining-processing-time) order.
//
// The receive path, grant generation, RPC lifecycle bookkeeping beyond
// what the sender mutates, socket binding, and the IP-layer transmit
// primitive itself are external collaborators; this package only
// specifies the contracts it requires from them (see [IPTransmitter],
// [Peer], [Clock] and [BufferAllocator]).
//
// A [Message] owns the packet buffers for one outbound RPC message and
// tracks the next-to-send offset and the granted window. [DataSender]
// drains a [Message] either directly, by calling an [IPTransmitter], or
// by placing the owning RPC onto a [ThrottledList] when the NIC queue
// (modeled by [IdleClock]) is backed up beyond tolerance. A [Pacer]
// drains the head of the [ThrottledList] whenever the clock catches up.
// [Retransmitter] re-emits a byte range outside of pacing, and
// [ControlSender] emits fixed-size control packets at the highest
// priority, also outside of pacing.
//
// [Context] is the process-wide state container that owns the clock,
// the throttled list, the pacer goroutine and the configuration knobs,
// and is the type most callers construct first.
package homa
