package homa

//
// Concrete Clock (§6): get_cycles()/cpu_khz replaced with Go's
// monotonic time source. A [SystemClock] fixes cpu_khz at a nominal
// 1GHz-equivalent (1_000_000 kHz) so that one "cycle" equals one
// nanosecond, keeping the cycle arithmetic in §4.A exact without a
// platform-specific TSC read.
//

import (
	"time"
)

// SystemClock is a [Clock] backed by [time.Now], monotonic within a
// single process. Use [NewSystemClock]: the zero value has no start
// time, so its Cycles saturates at a constant and never advances.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a [SystemClock] whose cycle counter starts at
// zero at construction time.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Cycles implements Clock.
func (c *SystemClock) Cycles() uint64 {
	return uint64(time.Since(c.start).Nanoseconds())
}

// CPUKHz implements Clock.
func (c *SystemClock) CPUKHz() uint64 {
	return 1_000_000
}

var _ Clock = &SystemClock{}

// FakeClock is a [Clock] with a manually-advanced cycle counter, used
// by tests that need deterministic control over "now".
type FakeClock struct {
	cycles uint64
	khz    uint64
}

// NewFakeClock creates a [FakeClock] starting at cycle 0.
func NewFakeClock(khz uint64) *FakeClock {
	return &FakeClock{khz: khz}
}

// Cycles implements Clock.
func (c *FakeClock) Cycles() uint64 {
	return c.cycles
}

// CPUKHz implements Clock.
func (c *FakeClock) CPUKHz() uint64 {
	return c.khz
}

// Set moves the fake clock to an absolute cycle count.
func (c *FakeClock) Set(cycles uint64) {
	c.cycles = cycles
}

// Advance moves the fake clock forward by delta cycles.
func (c *FakeClock) Advance(delta uint64) {
	c.cycles += delta
}

var _ Clock = &FakeClock{}
