package homa

//
// Core data model: the contracts this package requires from its
// collaborators, and the wire-level constants shared by every component.
//

import "context"

// MaxDataPerPacket is the maximum number of payload bytes carried by a
// single DATA packet.
const MaxDataPerPacket = 1400

// MaxMessageLength is the largest message [Message.Init] accepts.
const MaxMessageLength = 1 << 20

// MaxHeader is the size, in bytes, control packets are zero-padded to.
const MaxHeader = 88

// MaxPriority is the highest priority value a packet may carry (0..7).
const MaxPriority = 7

// PacketType identifies the kind of packet a header describes.
type PacketType uint8

const (
	// PacketTypeData identifies a DATA packet.
	PacketTypeData PacketType = iota + 1

	// PacketTypeGrant identifies a GRANT control packet.
	PacketTypeGrant

	// PacketTypeResend identifies a RESEND control packet.
	PacketTypeResend

	// PacketTypeAck identifies an ACK control packet.
	PacketTypeAck

	// PacketTypeBusy identifies a BUSY control packet.
	PacketTypeBusy
)

// String returns a human-readable name for the packet type, used as the
// label of the packets_sent metric.
func (t PacketType) String() string {
	switch t {
	case PacketTypeData:
		return "data"
	case PacketTypeGrant:
		return "grant"
	case PacketTypeResend:
		return "resend"
	case PacketTypeAck:
		return "ack"
	case PacketTypeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Role tells [ControlSender] which port to stamp as the header's source
// port: an RPC is either the client or the server side of the exchange.
type Role int

const (
	// RoleClient means the owning RPC is the client side.
	RoleClient Role = iota

	// RoleServer means the owning RPC is the server side.
	RoleServer
)

// Route is the minimal routing information pinned onto a packet before
// transmission. Implementers of [Peer] own the real route cache; this
// is only the subset the sender core reads.
type Route struct {
	// Dest is the destination address, in whatever form the caller's
	// [IPTransmitter] expects (e.g. "host:port").
	Dest string
}

// Peer is the read-only collaborator that owns the destination route,
// the cutoff version, and the unscheduled-priority cutoff table for one
// remote endpoint. The sender core never mutates a [Peer].
type Peer interface {
	// CutoffVersion returns the peer's current cutoff generation number,
	// stamped on every packet so the receiver can detect stale priority
	// decisions.
	CutoffVersion() uint16

	// UnschedPriority selects the priority for an unscheduled packet of
	// a message of the given total length, based on peer-advertised
	// cutoffs.
	UnschedPriority(length uint32) uint8

	// Route returns the route to use for this peer. Callers pin it once
	// per transmission.
	Route() Route
}

// Clock abstracts the monotonic tick clock and CPU frequency the
// link-idle model is built on, so tests can supply a fake.
type Clock interface {
	// Cycles returns the current tick count (get_cycles()).
	Cycles() uint64

	// CPUKHz returns the TSC frequency used to convert nanoseconds to
	// cycles and back.
	CPUKHz() uint64
}

// BufferAllocator allocates and frees packet buffers. Production
// callers back this with whatever pool the host process already uses
// for socket buffers; tests can use [HeapAllocator].
type BufferAllocator interface {
	// Alloc reserves a buffer able to hold size payload bytes plus
	// headers. It returns a non-nil error on exhaustion, which
	// [Message.Init] reports as ErrNoMemory and [ControlSender] as
	// ErrNoBuffers.
	Alloc(size int) (*Packet, error)
}

// IPTransmitter is the IP-layer transmit primitive this package submits
// finished wire frames to. On error the primitive is expected to free
// the buffer; see [Packet.HeldElsewhere] for the anomaly this package
// detects when that contract is violated.
type IPTransmitter interface {
	// TransmitPacket hands wire, the fully-serialized frame for pkt, to
	// the IP layer addressed at peer's route.
	TransmitPacket(ctx context.Context, peer Peer, pkt *Packet, wire []byte) error
}

// Logger is the logger this package uses for diagnostics and anomalies.
// It intentionally mirrors the narrow, allocation-free interface shape
// used throughout the rest of this module's ecosystem.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}
