package homa

//
// Link-Idle Clock (§4.A): atomically tracks the future instant at which
// the NIC queue will next drain.
//

import (
	"sync/atomic"

	"github.com/homa-transport/homacore/internal"
)

// wireOverheadBytes is the per-packet framing overhead (IP header, VLAN
// tag, Ethernet preamble/IFG/FCS) Advance adds before converting bytes
// to cycles, matching the reference formula.
const wireOverheadBytes = 20 + 4 + 24 // IP_HDR + VLAN_HDR + ETH_OVERHEAD

// IdleClock models the NIC queue's drain time as a tick count on a
// monotonic clock. Advance is lock-free: it reads the current value,
// computes the candidate next value, and retries a compare-and-swap
// until it wins.
type IdleClock struct {
	clock Clock

	// linkIdleCycles is the tick count at which the NIC is expected to
	// next be idle. Monotonically non-decreasing across all updaters.
	linkIdleCycles atomic.Uint64

	// cyclesPerKByte and maxNicQueueCycles are derived from link_mbps
	// and max_nic_queue_ns via RecomputeParams.
	cyclesPerKByte    atomic.Uint64
	maxNicQueueCycles atomic.Uint64
}

// NewIdleClock creates an [IdleClock] backed by clock, with parameters
// derived from the given link speed and queue tolerance.
func NewIdleClock(clock Clock, linkMbps int, maxNicQueueNs int64) *IdleClock {
	ic := &IdleClock{clock: clock}
	ic.RecomputeParams(linkMbps, maxNicQueueNs)
	return ic
}

// RecomputeParams recomputes cycles_per_kbyte and max_nic_queue_cycles
// when link_mbps or max_nic_queue_ns changes. The order of operations
// mirrors the reference formulas exactly, which were chosen to avoid
// 64-bit overflow at expected link speeds and queue tolerances;
// reordering them is not safe without re-proving that bound.
func (ic *IdleClock) RecomputeParams(linkMbps int, maxNicQueueNs int64) {
	khz := ic.clock.CPUKHz()
	cyclesPerKByte := 8 * khz / uint64(linkMbps)
	maxNicQueueCycles := uint64(maxNicQueueNs) * khz / 1_000_000
	ic.cyclesPerKByte.Store(cyclesPerKByte)
	ic.maxNicQueueCycles.Store(maxNicQueueCycles)
}

// MaxNicQueueCycles returns the current max-NIC-queue tolerance, in
// cycles.
func (ic *IdleClock) MaxNicQueueCycles() uint64 {
	return ic.maxNicQueueCycles.Load()
}

// Peek returns the current (now, link_idle) pair. Callers test
// now+max_nic_queue_cycles < link_idle to decide whether the NIC is
// backed up beyond tolerance.
func (ic *IdleClock) Peek() (now, linkIdle uint64) {
	return ic.clock.Cycles(), ic.linkIdleCycles.Load()
}

// Backlogged reports whether the NIC queue is backed up beyond the
// configured tolerance at this instant.
func (ic *IdleClock) Backlogged() bool {
	now, linkIdle := ic.Peek()
	return now+ic.maxNicQueueCycles.Load() < linkIdle
}

// Advance accounts wireBytes, the wire size of a packet just handed to
// the IP layer, against the link-idle clock: it atomically sets
// link_idle to max(now, link_idle) + cycles. Safe for concurrent
// callers.
func (ic *IdleClock) Advance(wireBytes int) {
	cycles := uint64(wireBytes+wireOverheadBytes) * ic.cyclesPerKByte.Load() / 1000
	now := ic.clock.Cycles()
	internal.CASUpdate(&ic.linkIdleCycles, func(cur uint64) uint64 {
		base := cur
		if now > base {
			base = now
		}
		return base + cycles
	})
}
